package app

import (
	"log/slog"

	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/config"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/gateway"
)

// AppContext holds shared dependencies (Gateway, Redis, Logger, config).
type AppContext struct {
	Gateway gateway.Gateway
	Cache   *cache.RedisCache
	Logger  *slog.Logger
	Cfg     *config.Config
}

// New creates a new AppContext.
func New(gw gateway.Gateway, rdb *cache.RedisCache, logger *slog.Logger, cfg *config.Config) *AppContext {
	return &AppContext{
		Gateway: gw,
		Cache:   rdb,
		Logger:  logger,
		Cfg:     cfg,
	}
}

// Session is the viewer-scoped state injected into every engine
// component. Queue and usage counters hang off a Session, never off a
// package-level singleton, so tests can run isolated fake sessions.
type Session struct {
	ViewerID string
	Tier     entitlement.Tier

	// The viewer's own attributes double as the forced filter defaults
	// when the tier lacks custom filters.
	Gender           string
	InterestedIn     string
	Province         string
	RelationshipGoal string
	AgeMin           int
	AgeMax           int
}

// DefaultFilters returns the viewer's own-attribute filter predicate.
func (s *Session) DefaultFilters() (ageMin, ageMax int, gender, province, goal string) {
	return s.AgeMin, s.AgeMax, s.InterestedIn, s.Province, s.RelationshipGoal
}
