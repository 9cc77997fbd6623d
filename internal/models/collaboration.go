package models

import "time"

type CollaborationStatus string

const (
	CollaborationPending  CollaborationStatus = "PENDING"
	CollaborationApproved CollaborationStatus = "APPROVED"
	CollaborationRejected CollaborationStatus = "REJECTED"
)

func (s CollaborationStatus) Valid() bool {
	switch s {
	case CollaborationPending, CollaborationApproved, CollaborationRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s CollaborationStatus) Terminal() bool {
	return s == CollaborationApproved || s == CollaborationRejected
}

// Collaboration is a user's request to join a project. There is at most one
// record per (project, user); a rejected record is reused by a later request.
type Collaboration struct {
	ID          string              `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string              `gorm:"size:36;not null;uniqueIndex:idx_collab_project_user,priority:1;index:idx_collab_project_status,priority:1" json:"project_id"`
	UserID      string              `gorm:"size:36;not null;uniqueIndex:idx_collab_project_user,priority:2;index" json:"user_id"`
	Status      CollaborationStatus `gorm:"size:20;not null;index:idx_collab_project_status,priority:2" json:"status"`
	RequestedAt time.Time           `gorm:"not null" json:"requested_at"`
	RespondedAt *time.Time          `json:"responded_at"`
}

func (Collaboration) TableName() string { return "collaborations" }
