package models

import "time"

// Vote records that a user upvoted a project. Unique per (project, user).
type Vote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;uniqueIndex:idx_vote_project_user,priority:1" json:"project_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_vote_project_user,priority:2;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Vote) TableName() string { return "votes" }
