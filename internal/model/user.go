// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// DefaultUserName 新用户的占位昵称
// 用户自定义昵称后，登录时不会再被微信资料覆盖
const DefaultUserName = "微信用户"

// User 用户模型
// 对应数据库表 users
// 通过微信 openid 识别，不保存任何密码
type User struct {
	// ID 用户唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// OpenID 微信小程序返回的用户标识，全局唯一
	OpenID string `gorm:"column:openid;size:100;uniqueIndex;not null" json:"openid"`

	// Name 昵称，默认为占位昵称
	Name string `gorm:"size:100;not null" json:"name"`

	// AvatarURL 头像地址，每次登录时刷新
	AvatarURL string `gorm:"size:500" json:"avatarUrl"`

	// Gender / Age / Phone 由用户在资料页填写，可以为 NULL
	Gender *string `gorm:"size:10" json:"gender"`
	Age    *int    `json:"age"`
	Phone  *string `gorm:"size:20" json:"phone"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// HasCustomName 判断用户是否已经设置过自己的昵称
func (u *User) HasCustomName() bool {
	return u.Name != "" && u.Name != DefaultUserName
}
