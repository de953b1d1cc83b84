package models

import (
	"fmt"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExpiresIn 分享链接的相对有效期
type ExpiresIn string

const (
	ExpiresInHour  ExpiresIn = "1h"
	ExpiresInDay   ExpiresIn = "1d"
	ExpiresInWeek  ExpiresIn = "1w"
	ExpiresInNever ExpiresIn = "never"
)

func (e ExpiresIn) Valid() bool {
	switch e {
	case ExpiresInHour, ExpiresInDay, ExpiresInWeek, ExpiresInNever:
		return true
	}
	return false
}

// ShareMode 接收者看到整张清单还是其中一部分
type ShareMode string

const (
	ShareModeAll      ShareMode = "all"
	ShareModeSelected ShareMode = "selected"
)

func (m ShareMode) Valid() bool {
	return m == ShareModeAll || m == ShareModeSelected
}

// SharePermissions 四个相互独立的能力开关，彼此之间没有隐含关系
type SharePermissions struct {
	CanView        bool `gorm:"not null" json:"canView"`
	CanAddItems    bool `gorm:"not null" json:"canAddItems"`
	CanEditItems   bool `gorm:"not null" json:"canEditItems"`
	CanDeleteItems bool `gorm:"not null" json:"canDeleteItems"`
}

// ShareSettings 创建分享时的配置，按值复制进 ShareToken
type ShareSettings struct {
	Permissions    SharePermissions            `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	ExpiresIn      ExpiresIn                   `gorm:"type:varchar(8);not null" json:"expiresIn"`
	ShareMode      ShareMode                   `gorm:"type:varchar(16);not null" json:"shareMode"`
	SelectedItems  datatypes.JSONSlice[string] `json:"selectedItems"` // 创建时的快照，不随清单变化
	AllowAnonymous bool                        `gorm:"not null" json:"allowAnonymous"`
	MaxUses        *int                        `json:"maxUses,omitempty"` // nil 表示不限次数
}

// Validate 检查枚举取值、使用上限以及 selected 模式下的条目列表
func (s *ShareSettings) Validate() error {
	if !s.ExpiresIn.Valid() {
		return fmt.Errorf("%w: 未知的有效期 %q", xerr.ErrInvalidShareSettings, s.ExpiresIn)
	}
	if !s.ShareMode.Valid() {
		return fmt.Errorf("%w: 未知的分享模式 %q", xerr.ErrInvalidShareSettings, s.ShareMode)
	}
	if s.ShareMode == ShareModeSelected && len(s.SelectedItems) == 0 {
		return fmt.Errorf("%w: selected 模式至少需要一个条目", xerr.ErrInvalidShareSettings)
	}
	if s.MaxUses != nil && *s.MaxUses < 1 {
		return fmt.Errorf("%w: maxUses 必须大于 0", xerr.ErrInvalidShareSettings)
	}
	return nil
}

// ShareToken 对应 share_tokens 表
// 记录只做软失效：IsActive 一旦置为 false 就不会再恢复
type ShareToken struct {
	ID         string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Token      string        `gorm:"type:varchar(32);not null;uniqueIndex" json:"token"`
	ListID     string        `gorm:"type:varchar(36);not null;index" json:"listId"`
	CreatedBy  string        `gorm:"type:varchar(36);not null" json:"createdBy"`
	Settings   ShareSettings `gorm:"embedded" json:"settings"`
	CreatedAt  time.Time     `gorm:"not null" json:"createdAt"`
	ExpiresAt  *time.Time    `gorm:"index" json:"expiresAt,omitempty"`
	UsageCount int           `gorm:"not null;default:0" json:"usageCount"`
	IsActive   bool          `gorm:"not null;index" json:"isActive"`
}

// TableName 指定 GORM 使用的表名
func (ShareToken) TableName() string {
	return "share_tokens"
}

func (t *ShareToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Settings.SelectedItems == nil {
		t.Settings.SelectedItems = datatypes.JSONSlice[string]{}
	}
	return nil
}

// IsExpired expiresAt 不为空且不晚于 now 时视为过期
func (t *ShareToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// IsExhausted 设置了使用上限且已用完
func (t *ShareToken) IsExhausted() bool {
	return t.Settings.MaxUses != nil && t.UsageCount >= *t.Settings.MaxUses
}

// Redeemable 可兑换：有效、未过期、未用完
func (t *ShareToken) Redeemable(now time.Time) bool {
	return t.IsActive && !t.IsExpired(now) && !t.IsExhausted()
}
