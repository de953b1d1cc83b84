package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 对应 users 表
// 匿名用户没有用户名/邮箱/密码，绑定凭据后 IsAnonymous 变为 false，ID 保持不变
type User struct {
	ID           string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     *string `gorm:"type:varchar(64);uniqueIndex" json:"username,omitempty"`
	Email        *string `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	PasswordHash string  `gorm:"type:varchar(255)" json:"-"` // - 表示不输出到 JSON
	DisplayName  string  `gorm:"type:varchar(64)" json:"displayName,omitempty"`
	IsAnonymous  bool    `gorm:"not null" json:"isAnonymous"`
	Status       uint8   `gorm:"type:smallint;not null;default:1" json:"status"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
