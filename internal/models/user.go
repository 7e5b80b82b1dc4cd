package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role 角色 - 封闭类型，按等级构成层级
type Role string

const (
	RoleMember     Role = "member"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
	RoleSuperAdmin Role = "super_admin" // 平台级，可跨租户
)

// 角色等级表，数值越大权限越高
var roleLevels = map[Role]int{
	RoleMember:     1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleOwner:      4,
	RoleSuperAdmin: 5,
}

// Level 角色等级，无效角色返回0
func (r Role) Level() int {
	return roleLevels[r]
}

// IsValid 检查角色是否有效
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast 当前角色等级是否不低于目标角色
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

// CanAssign 操作者角色能否授予目标角色：不得授予高于自身的角色，
// 且 super_admin 仅能由 super_admin 授予
func (r Role) CanAssign(target Role) bool {
	if !target.IsValid() {
		return false
	}
	if target == RoleSuperAdmin {
		return r == RoleSuperAdmin
	}
	return r.Level() >= target.Level()
}

// UserStatus 用户状态 - 封闭类型
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// IsValid 检查用户状态是否有效
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	default:
		return false
	}
}

// User 用户模型
type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"unique;not null;size:100;index"` // 平台全局唯一，存储统一小写
	FirstName    string     `json:"first_name" gorm:"not null;size:50"`
	LastName     string     `json:"last_name" gorm:"not null;size:50"`
	Role         Role       `json:"role" gorm:"not null;size:20"`
	Status       UserStatus `json:"status" gorm:"default:'active';size:20"`
	BusinessID   *uint      `json:"business_id" gorm:"index"` // 仅 super_admin 为 null
	PasswordHash string     `json:"-" gorm:"not null;size:255"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	Business *Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// SetPassword 设置密码 - 仅存储加盐哈希，明文不落任何存储
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsActive 用户是否处于活跃状态
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsSuperAdmin 是否平台超级管理员
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// BelongsTo 用户是否属于指定企业
func (u *User) BelongsTo(businessID uint) bool {
	return u.BusinessID != nil && *u.BusinessID == businessID
}
