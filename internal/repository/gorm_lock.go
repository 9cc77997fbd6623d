package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nezhub/backend/internal/models"
	"gorm.io/gorm"
)

type gormLockRepository struct {
	db *gorm.DB
}

// Acquire takes the lease (name, key) for owner until ttl elapses. An
// expired lease held by someone else is taken over.
func (r *gormLockRepository) Acquire(ctx context.Context, name, key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expires := now.Add(ttl)

	result := r.db.WithContext(ctx).Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND (expires_at < ? OR locked_by = ?)", name, key, now, owner).
		Updates(map[string]interface{}{
			"locked_by":  owner,
			"locked_at":  now,
			"expires_at": expires,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: expires,
	}
	err := translate(r.db.WithContext(ctx).Create(&lock).Error)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormLockRepository) Release(ctx context.Context, name, key, owner string) error {
	return r.db.WithContext(ctx).
		Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, owner).
		Delete(&models.SchedulerLock{}).Error
}
