package repository

import (
	"context"

	"github.com/nezhub/backend/internal/models"
	"gorm.io/gorm"
)

type gormCollaborationRepository struct {
	db *gorm.DB
}

func (r *gormCollaborationRepository) Get(ctx context.Context, id string) (*models.Collaboration, error) {
	var c models.Collaboration
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCollaborationRepository) GetByProjectAndUser(ctx context.Context, projectID, userID string) (*models.Collaboration, error) {
	var c models.Collaboration
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCollaborationRepository) Find(ctx context.Context, q CollaborationQuery) ([]models.Collaboration, error) {
	query := r.db.WithContext(ctx).Model(&models.Collaboration{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var list []models.Collaboration
	err := query.Order("requested_at ASC").Order("id ASC").Find(&list).Error
	return list, err
}

func (r *gormCollaborationRepository) Create(ctx context.Context, c *models.Collaboration) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *gormCollaborationRepository) Transition(ctx context.Context, c *models.Collaboration, from models.CollaborationStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Collaboration{}).
		Where("id = ? AND status = ?", c.ID, from).
		Updates(map[string]interface{}{
			"status":       c.Status,
			"requested_at": c.RequestedAt,
			"responded_at": c.RespondedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	if _, err := r.Get(ctx, c.ID); err != nil {
		return err
	}
	return ErrConflict
}

func (r *gormCollaborationRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Collaboration{})
	return result.RowsAffected, result.Error
}

func (r *gormCollaborationRepository) ProjectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Collaboration{}).Distinct().Pluck("project_id", &ids).Error
	return ids, err
}
