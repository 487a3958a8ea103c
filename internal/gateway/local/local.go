// Package local is the reference Gateway implementation backing
// development and tests: gorm for rows and procedures, redis pub/sub
// for realtime inserts, and a pluggable uploader for media. Production
// deployments may substitute any other gateway.Gateway.
package local

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
)

// Uploader stores image bytes and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
}

type Gateway struct {
	db       *gorm.DB
	cache    *cache.RedisCache
	uploader Uploader
	log      *slog.Logger
	now      func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

func New(gdb *gorm.DB, c *cache.RedisCache, uploader Uploader, log *slog.Logger) *Gateway {
	return &Gateway{
		db:       gdb,
		cache:    c,
		uploader: uploader,
		log:      log,
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (g *Gateway) SetNow(now func() time.Time) { g.now = now }

func toModelProfile(p db.Profile) model.Profile {
	return model.Profile{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		Age:              p.Age,
		Gender:           p.Gender,
		AvatarURL:        p.AvatarURL,
		PhotoURLs:        p.PhotoURLs,
		Bio:              p.Bio,
		Province:         p.Province,
		Occupation:       p.Occupation,
		Education:        p.Education,
		Smokes:           p.Smokes,
		Drinks:           p.Drinks,
		HasChildren:      p.HasChildren,
		Interests:        p.Interests,
		Languages:        p.Languages,
		Religion:         p.Religion,
		Politics:         p.Politics,
		RelationshipGoal: p.RelationshipGoal,
		CreatedAt:        p.CreatedAt,
	}
}

func toModelMessage(m db.Message) model.Message {
	return model.Message{
		ID:         m.ID,
		MatchID:    m.MatchID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		ImageURL:   m.ImageURL,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
}

// pairKey normalizes an unordered user pair so one unique index covers
// both directions.
func pairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// UploadImage stores the bytes and issues the public address.
func (g *Gateway) UploadImage(ctx context.Context, data []byte, path string) (string, error) {
	if g.uploader == nil {
		return "", gateway.ErrUnavailable
	}
	return g.uploader.Upload(ctx, data, path)
}
