package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "OPEN"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusClosed     ProjectStatus = "CLOSED"
)

// ProjectStatuses lists every status in display order.
var ProjectStatuses = []ProjectStatus{ProjectStatusOpen, ProjectStatusInProgress, ProjectStatusClosed}

func (s ProjectStatus) Valid() bool {
	return slices.Contains(ProjectStatuses, s)
}

// Project is a collaborative project published by a creator.
type Project struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	Title          string                      `gorm:"size:100;not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description"`
	Goals          datatypes.JSONSlice[string] `json:"goals"`
	RequiredSkills datatypes.JSONSlice[string] `json:"required_skills"`
	Status         ProjectStatus               `gorm:"size:20;not null;index:idx_project_status_votes,priority:1" json:"status"`
	CreatorID      string                      `gorm:"size:36;not null;index" json:"creator_id"`
	Collaborators  datatypes.JSONSlice[string] `json:"collaborators"` // approved user ids, append-only
	Votes          int                         `gorm:"not null;default:0;index:idx_project_status_votes,priority:2,sort:desc" json:"votes"`
	Revision       int64                       `gorm:"not null;default:0" json:"-"` // guards collaborator appends
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// HasSkill reports whether skill is one of the required skills.
func (p *Project) HasSkill(skill string) bool {
	return slices.Contains(p.RequiredSkills, skill)
}

// HasCollaborator reports whether userID is an approved collaborator.
func (p *Project) HasCollaborator(userID string) bool {
	return slices.Contains(p.Collaborators, userID)
}
