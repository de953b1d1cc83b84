package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JoinMethod 成员获得访问权限的来源
type JoinMethod string

const (
	JoinViaToken JoinMethod = "token"
	JoinViaEmail JoinMethod = "email"
	JoinViaQR    JoinMethod = "qr"
)

// ShareMember 对应 list_members 表
// Permissions 是加入时从分享 token 复制的快照，之后与 token 不再关联
type ShareMember struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListID      string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_list_user" json:"listId"`
	UserID      string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_list_user;index" json:"userId"`
	JoinedAt    time.Time        `gorm:"not null" json:"joinedAt"`
	JoinedVia   JoinMethod       `gorm:"type:varchar(8);not null" json:"joinedVia"`
	Permissions SharePermissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	IsGuest     bool             `gorm:"not null" json:"isGuest"`
	GuestName   *string          `gorm:"type:varchar(64)" json:"guestName,omitempty"`
}

// TableName 指定 GORM 使用的表名
func (ShareMember) TableName() string {
	return "list_members"
}

func (m *ShareMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
