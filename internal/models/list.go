package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GroceryList 对应 lists 表
// AllowedUsers 是早于成员表存在的旧版访问名单，加入/移除成员时同步维护
type GroceryList struct {
	ID           string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string                      `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID      string                      `gorm:"type:varchar(36);not null;index" json:"ownerId"`
	AllowedUsers datatypes.JSONSlice[string] `json:"allowedUsers"`
	Archived     bool                        `gorm:"not null" json:"archived"`
	Version      int64                       `gorm:"not null;default:0" json:"-"` // 乐观锁版本号，每次改写 AllowedUsers 时递增
	CreatedAt    time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time                   `gorm:"not null" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (GroceryList) TableName() string {
	return "lists"
}

func (l *GroceryList) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.AllowedUsers == nil {
		l.AllowedUsers = datatypes.JSONSlice[string]{}
	}
	return nil
}

// HasAllowedUser 判断用户是否在旧版访问名单中
func (l *GroceryList) HasAllowedUser(userID string) bool {
	for _, id := range l.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
