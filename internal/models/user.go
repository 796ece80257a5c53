package models

import (
	"time"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:191;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Role      UserRole  `json:"role" gorm:"default:MEMBER"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "ADMIN"
	UserRoleMember UserRole = "MEMBER"
	UserRoleViewer UserRole = "VIEWER"
)

type Capability string

const (
	CapEditPosts     Capability = "edit_posts"
	CapManageOptions Capability = "manage_options"
)

var roleCapabilities = map[UserRole][]Capability{
	UserRoleAdmin:  {CapEditPosts, CapManageOptions},
	UserRoleMember: {CapEditPosts},
	UserRoleViewer: {},
}

// Can reports whether the user's role grants cap.
func (u *User) Can(cap Capability) bool {
	if u == nil {
		return false
	}
	for _, c := range roleCapabilities[u.Role] {
		if c == cap {
			return true
		}
	}
	return false
}
