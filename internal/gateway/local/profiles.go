package local

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/db"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

// FetchProfiles returns discovery candidates for a viewer.
//
// Behavior:
//   - Excludes the viewer, every id in q.ExcludeIDs, and every profile
//     the viewer already swiped or archived (durable exclusion via
//     NOT EXISTS, session exclusion via NOT IN).
//   - Applies the active filter predicates (age range, gender,
//     province, relationship goal); zero values mean "any".
func (g *Gateway) FetchProfiles(ctx context.Context, viewerID string, q model.FilterQuery) ([]model.Profile, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := g.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("profiles.id <> ?", viewerID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s
				WHERE s.viewer_id = ?
				  AND s.target_id = profiles.id
			)`, viewerID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM archives a
				WHERE a.viewer_id = ?
				  AND a.target_id = profiles.id
			)`, viewerID)

	if len(q.ExcludeIDs) > 0 {
		query = query.Where("profiles.id NOT IN ?", q.ExcludeIDs)
	}
	if q.AgeMin > 0 {
		query = query.Where("profiles.age >= ?", q.AgeMin)
	}
	if q.AgeMax > 0 {
		query = query.Where("profiles.age <= ?", q.AgeMax)
	}
	if q.Gender != "" {
		query = query.Where("profiles.gender = ?", q.Gender)
	}
	if q.Province != "" {
		query = query.Where("profiles.province = ?", q.Province)
	}
	if q.RelationshipGoal != "" {
		query = query.Where("profiles.relationship_goal = ?", q.RelationshipGoal)
	}

	var rows []db.Profile
	if err := query.Order("profiles.created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}

	out := make([]model.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelProfile(r))
	}
	return out, nil
}

// GetProfile loads one profile snapshot by id.
func (g *Gateway) GetProfile(ctx context.Context, profileID string) (model.Profile, error) {
	var row db.Profile
	err := g.db.WithContext(ctx).First(&row, "id = ?", profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Profile{}, fmt.Errorf("%w: profile %s", svcErr.ErrNotFound, profileID)
	}
	if err != nil {
		return model.Profile{}, err
	}
	return toModelProfile(row), nil
}
