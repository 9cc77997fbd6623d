package models

import "time"

type Role string

const (
	RoleCreator      Role = "CREATOR"
	RoleCollaborator Role = "COLLABORATOR"
)

func (r Role) Valid() bool {
	return r == RoleCreator || r == RoleCollaborator
}

// User is an account that can create, join and vote on projects.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
