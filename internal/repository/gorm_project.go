package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/nezhub/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxRevisionAttempts bounds the optimistic retry loop of AddCollaborator.
const maxRevisionAttempts = 5

const voteCountExpr = "(SELECT COUNT(*) FROM votes v WHERE v.project_id = projects.id)"

type gormProjectRepository struct {
	db *gorm.DB
}

func (r *gormProjectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

// Find runs q. Skill matching narrows candidates with LIKE on the JSON text
// and then checks membership exactly, so paging is applied after the check.
func (r *gormProjectRepository) Find(ctx context.Context, q ProjectQuery) ([]models.Project, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.CreatorID != "" {
		query = query.Where("creator_id = ?", q.CreatorID)
	}
	if q.Skill != "" && likeSafe(q.Skill) {
		query = query.Where(r.textColumn("required_skills")+" LIKE ?", "%"+q.Skill+"%")
	}

	switch q.Sort {
	case SortVotesDesc:
		query = query.Order("votes DESC").Order("created_at ASC").Order("id ASC")
	default:
		query = query.Order("created_at DESC").Order("id ASC")
	}

	if q.Skill == "" {
		if q.Offset > 0 {
			query = query.Offset(q.Offset)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, err
	}

	if q.Skill == "" {
		return projects, nil
	}

	matched := projects[:0]
	for _, p := range projects {
		if p.HasSkill(q.Skill) {
			matched = append(matched, p)
		}
	}
	return page(matched, q.Offset, q.Limit), nil
}

func (r *gormProjectRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).Count(&total).Error
	return total, err
}

func (r *gormProjectRepository) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Project{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (r *gormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return translate(r.db.WithContext(ctx).Create(project).Error)
}

func (r *gormProjectRepository) Save(ctx context.Context, project *models.Project) error {
	result := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", project.ID).
		Updates(map[string]interface{}{
			"title":           project.Title,
			"description":     project.Description,
			"goals":           project.Goals,
			"required_skills": project.RequiredSkills,
			"status":          project.Status,
			"updated_at":      project.UpdatedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProjectRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Project{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProjectRepository) RecountVotes(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touch the row first: the count below then runs after any
		// concurrent voter holding the row lock has committed.
		result := tx.Model(&models.Project{}).Where("id = ?", id).Update("updated_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// mysql reports zero rows when updated_at is unchanged
			var n int64
			if err := tx.Model(&models.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
		}
		return tx.Model(&models.Project{}).Where("id = ?", id).
			UpdateColumn("votes", gorm.Expr(voteCountExpr)).Error
	})
}

func (r *gormProjectRepository) AddCollaborator(ctx context.Context, id, userID string, now time.Time) error {
	for attempt := 0; attempt < maxRevisionAttempts; attempt++ {
		project, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if project.HasCollaborator(userID) {
			return nil
		}

		next := append(slices.Clone([]string(project.Collaborators)), userID)
		result := r.db.WithContext(ctx).Model(&models.Project{}).
			Where("id = ? AND revision = ?", id, project.Revision).
			Updates(map[string]interface{}{
				"collaborators": datatypes.NewJSONSlice(next),
				"revision":      project.Revision + 1,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}
	return ErrConflict
}

func (r *gormProjectRepository) Repair(ctx context.Context, id string, revision int64, collaborators []string) error {
	if collaborators == nil {
		collaborators = []string{}
	}
	result := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND revision = ?", id, revision).
		Updates(map[string]interface{}{
			"votes":         gorm.Expr(voteCountExpr),
			"collaborators": datatypes.NewJSONSlice(collaborators),
			"revision":      revision + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *gormProjectRepository) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

func (r *gormProjectRepository) SkillCounts(ctx context.Context) ([]SkillCount, error) {
	var skillSets []datatypes.JSONSlice[string]
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Pluck("required_skills", &skillSets).Error; err != nil {
		return nil, err
	}

	tally := make(map[string]int64)
	for _, skills := range skillSets {
		seen := make(map[string]bool, len(skills))
		for _, skill := range skills {
			if seen[skill] {
				continue
			}
			seen[skill] = true
			tally[skill]++
		}
	}

	counts := make([]SkillCount, 0, len(tally))
	for skill, n := range tally {
		counts = append(counts, SkillCount{Skill: skill, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Skill < counts[j].Skill
	})
	return counts, nil
}

// textColumn renders a JSON column as text for LIKE matching.
func (r *gormProjectRepository) textColumn(column string) string {
	if r.db.Dialector.Name() == "mysql" {
		return "CAST(" + column + " AS CHAR)"
	}
	return "CAST(" + column + " AS TEXT)"
}

// likeSafe reports whether skill appears verbatim in its JSON encoding and
// carries no LIKE wildcards.
func likeSafe(skill string) bool {
	if strings.ContainsAny(skill, `%_\"<>&`) {
		return false
	}
	for _, r := range skill {
		if r < 0x20 || r == 0x2028 || r == 0x2029 {
			return false
		}
	}
	return true
}

func page(projects []models.Project, offset, limit int) []models.Project {
	if offset > 0 {
		if offset >= len(projects) {
			return []models.Project{}
		}
		projects = projects[offset:]
	}
	if limit > 0 && limit < len(projects) {
		projects = projects[:limit]
	}
	return projects
}
