package repository

import (
	"context"

	"github.com/nezhub/backend/internal/models"
	"gorm.io/gorm"
)

type gormVoteRepository struct {
	db *gorm.DB
}

func (r *gormVoteRepository) Exists(ctx context.Context, projectID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormVoteRepository) Create(ctx context.Context, vote *models.Vote) error {
	return translate(r.db.WithContext(ctx).Create(vote).Error)
}

func (r *gormVoteRepository) Delete(ctx context.Context, projectID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.Vote{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormVoteRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Vote{})
	return result.RowsAffected, result.Error
}

func (r *gormVoteRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vote{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, err
}

func (r *gormVoteRepository) ProjectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Vote{}).Distinct().Pluck("project_id", &ids).Error
	return ids, err
}
