package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoradev/amora/internal/db"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
	"github.com/amoradev/amora/internal/utils/pagination"
)

// RecordLike upserts the viewer's like and detects a mutual match
// atomically with the write: if the reverse like exists, the match row
// is created (or found) inside the same transaction.
func (g *Gateway) RecordLike(ctx context.Context, viewerID, targetID string) (gateway.LikeResult, error) {
	if viewerID == targetID {
		return gateway.LikeResult{}, svcErr.Validationf("cannot like yourself")
	}

	var result gateway.LikeResult
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertSwipe(tx, viewerID, targetID, string(model.ActionLike)); err != nil {
			return err
		}

		var reverse int64
		if err := tx.Model(&db.Swipe{}).
			Where("viewer_id = ? AND target_id = ? AND action = ?", targetID, viewerID, string(model.ActionLike)).
			Count(&reverse).Error; err != nil {
			return err
		}
		if reverse == 0 {
			return nil
		}

		a, b := pairKey(viewerID, targetID)
		match := db.Match{ID: uuid.NewString(), UserA: a, UserB: b}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
			DoNothing: true,
		}).Create(&match).Error; err != nil {
			return err
		}
		// re-read: on conflict the existing row keeps its id
		var existing db.Match
		if err := tx.First(&existing, "user_a = ? AND user_b = ?", a, b).Error; err != nil {
			return err
		}
		result = gateway.LikeResult{IsMatch: true, MatchID: existing.ID}
		return nil
	})
	if err != nil {
		return gateway.LikeResult{}, fmt.Errorf("record like: %w", err)
	}

	// best-effort cache bump for the "liked you" badge
	if g.cache != nil {
		key := g.cache.KeyForLikeCount(targetID)
		if _, err := g.cache.Incr(ctx, key); err == nil {
			_ = g.cache.Client.Expire(ctx, key, time.Hour).Err()
		}
	}
	return result, nil
}

// RecordDislike upserts the viewer's pass on the target.
func (g *Gateway) RecordDislike(ctx context.Context, viewerID, targetID string) error {
	if viewerID == targetID {
		return svcErr.Validationf("cannot dislike yourself")
	}
	if err := upsertSwipe(g.db.WithContext(ctx), viewerID, targetID, string(model.ActionDislike)); err != nil {
		return fmt.Errorf("record dislike: %w", err)
	}
	return nil
}

// RecordArchive sets a profile aside. Idempotent per pair: repeating
// the call returns the existing archive id.
func (g *Gateway) RecordArchive(ctx context.Context, viewerID, targetID string) (string, error) {
	row := db.Archive{ID: uuid.NewString(), ViewerID: viewerID, TargetID: targetID}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "target_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("record archive: %w", err)
	}

	var existing db.Archive
	if err := g.db.WithContext(ctx).First(&existing, "viewer_id = ? AND target_id = ?", viewerID, targetID).Error; err != nil {
		return "", err
	}
	return existing.ID, nil
}

// RemoveArchive deletes one archive entry of the viewer.
func (g *Gateway) RemoveArchive(ctx context.Context, viewerID, archiveID string) error {
	res := g.db.WithContext(ctx).Delete(&db.Archive{}, "id = ? AND viewer_id = ?", archiveID, viewerID)
	if res.Error != nil {
		return fmt.Errorf("remove archive: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: archive %s", svcErr.ErrNotFound, archiveID)
	}
	return nil
}

// ListArchived returns the viewer's archived profiles, newest first.
func (g *Gateway) ListArchived(ctx context.Context, viewerID string) ([]model.ArchivedProfile, error) {
	var rows []db.Archive
	if err := g.db.WithContext(ctx).
		Where("viewer_id = ?", viewerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list archived: %w", err)
	}

	out := make([]model.ArchivedProfile, 0, len(rows))
	for _, r := range rows {
		var p db.Profile
		if err := g.db.WithContext(ctx).First(&p, "id = ?", r.TargetID).Error; err != nil {
			continue // target deleted their account
		}
		out = append(out, model.ArchivedProfile{ArchiveID: r.ID, Profile: toModelProfile(p)})
	}
	return out, nil
}

// GetMatch looks up the match row of an unordered pair.
func (g *Gateway) GetMatch(ctx context.Context, userA, userB string) (model.Match, error) {
	a, b := pairKey(userA, userB)
	var row db.Match
	err := g.db.WithContext(ctx).First(&row, "user_a = ? AND user_b = ?", a, b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Match{}, fmt.Errorf("%w: no match for pair", svcErr.ErrNotFound)
	}
	if err != nil {
		return model.Match{}, err
	}
	return model.Match{ID: row.ID, UserA: row.UserA, UserB: row.UserB, CreatedAt: row.CreatedAt}, nil
}

// ListMatches returns every match the viewer is part of, newest first.
func (g *Gateway) ListMatches(ctx context.Context, viewerID string) ([]model.Match, error) {
	var rows []db.Match
	if err := g.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", viewerID, viewerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Match{ID: r.ID, UserA: r.UserA, UserB: r.UserB, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// ListLikers returns users who liked the viewer, excluding anyone the
// viewer already passed. Cursor-paginated, newest first.
func (g *Gateway) ListLikers(ctx context.Context, viewerID string, paginationToken *string, limit int) ([]model.Liker, *string, error) {
	cursor, err := pagination.Decode(derefString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := g.db.WithContext(ctx).
		Table("swipes d").
		Where("d.target_id = ? AND d.action = ?", viewerID, string(model.ActionLike)).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes d2
				WHERE d2.viewer_id = ?
				  AND d2.target_id = d.viewer_id
				  AND d2.action = ?
			)`, viewerID, string(model.ActionDislike)).
		Order("d.updated_at DESC, d.viewer_id DESC").
		Limit(limit + 1)

	if cursor.ProfileID != "" && cursor.LikedUnix > 0 {
		ts := time.UnixMilli(cursor.LikedUnix)
		query = query.Where(
			"(d.updated_at < ? OR (d.updated_at = ? AND d.viewer_id < ?))",
			ts, ts, cursor.ProfileID,
		)
	}

	var rows []db.Swipe
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("list likers: %w", err)
	}

	var nextToken *string
	if len(rows) > limit {
		last := rows[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ProfileID: last.ViewerID,
			LikedUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		rows = rows[:limit]
	}

	out := make([]model.Liker, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Liker{ProfileID: r.ViewerID, LikedAt: r.UpdatedAt})
	}
	return out, nextToken, nil
}

// CountLikers counts likes received, with the same pass exclusion as
// ListLikers.
func (g *Gateway) CountLikers(ctx context.Context, viewerID string) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Table("swipes d").
		Where("d.target_id = ? AND d.action = ?", viewerID, string(model.ActionLike)).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes d2
				WHERE d2.viewer_id = ?
				  AND d2.target_id = d.viewer_id
				  AND d2.action = ?
			)`, viewerID, string(model.ActionDislike)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count likers: %w", err)
	}
	return count, nil
}

// upsertSwipe writes one decision row per (viewer, target) pair; the
// latest action wins.
func upsertSwipe(tx *gorm.DB, viewerID, targetID, action string) error {
	row := db.Swipe{ViewerID: viewerID, TargetID: targetID, Action: action}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
	}).Create(&row).Error
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
