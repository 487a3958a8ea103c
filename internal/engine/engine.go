// Package engine assembles the viewer-session components: discovery
// queue, entitlement evaluator, swipe orchestrator, conversation
// adapters, inboxes, and the stories feed. One Engine per signed-in
// viewer; nothing here is shared across sessions except indirectly
// through the gateway's durable state.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/conversation"
	"github.com/amoradev/amora/internal/discovery"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/inbox"
	"github.com/amoradev/amora/internal/model"
	"github.com/amoradev/amora/internal/stories"
	"github.com/amoradev/amora/internal/swipe"
)

type Engine struct {
	Session      *app.Session
	Queue        *discovery.Queue
	Entitlements *entitlement.Evaluator
	Orchestrator *swipe.Orchestrator
	Inbox        *inbox.Service
	Stories      *stories.Service

	appCtx *app.AppContext

	mu            sync.Mutex
	filters       model.FilterQuery
	conversations map[string]*conversation.Adapter
}

// New builds the engine for one viewer session and primes the queue
// with a first replenish.
func New(ctx context.Context, appCtx *app.AppContext, session *app.Session) *Engine {
	ent := entitlement.NewEvaluator(ctx, session.ViewerID, session.Tier, appCtx.Cache, nil)

	e := &Engine{
		Session:       session,
		Entitlements:  ent,
		appCtx:        appCtx,
		conversations: make(map[string]*conversation.Adapter),
	}
	e.filters = e.defaultFilters()

	log := appCtx.Logger.With("viewer", session.ViewerID)

	prefetcher := discovery.NewImagePrefetcher()
	e.Queue = discovery.NewQueue(e.fetchCandidates, prefetcher.Prefetch, discovery.Options{
		LowWater:      appCtx.Cfg.Engine.QueueLowWater,
		BatchSize:     appCtx.Cfg.Engine.QueueBatchSize,
		HistoryDepth:  appCtx.Cfg.Engine.HistoryDepth,
		PrefetchDepth: appCtx.Cfg.Engine.PrefetchDepth,
	}, log)

	e.Orchestrator = swipe.NewOrchestrator(session, e.Queue, appCtx.Gateway, ent, log)
	e.Orchestrator.SetMatchPolling(appCtx.Cfg.Engine.MatchPollAttempts, appCtx.Cfg.Engine.MatchPollInterval)

	e.Inbox = inbox.NewService(appCtx, session, appCtx.Gateway)
	e.Stories = stories.NewService(session, appCtx.Gateway, ent, log)

	go func() {
		if err := e.Queue.Replenish(context.Background()); err != nil {
			log.Warn("initial replenish failed", "err", err)
		}
	}()
	return e
}

// SetFilters stores the requested discovery predicate. Tiers without
// the custom-filters capability are forced back onto the viewer's own
// defaults the next time candidates are fetched.
func (e *Engine) SetFilters(q model.FilterQuery) {
	e.mu.Lock()
	e.filters = q
	e.mu.Unlock()
}

// Filters returns the predicate discovery actually uses right now,
// with entitlement gating applied.
func (e *Engine) Filters() model.FilterQuery {
	e.mu.Lock()
	requested := e.filters
	e.mu.Unlock()
	return e.Entitlements.EffectiveFilters(requested, e.defaultFilters())
}

// Conversation returns the open adapter for a match, creating and
// opening it on first use.
func (e *Engine) Conversation(ctx context.Context, matchID string) (*conversation.Adapter, error) {
	e.mu.Lock()
	if a, ok := e.conversations[matchID]; ok {
		e.mu.Unlock()
		return a, nil
	}
	e.mu.Unlock()

	peerID, err := e.peerOf(ctx, matchID)
	if err != nil {
		return nil, err
	}

	a := conversation.NewAdapter(e.Session, matchID, peerID, e.appCtx.Gateway, e.Entitlements,
		e.appCtx.Logger.With("viewer", e.Session.ViewerID, "match", matchID))
	if err := a.Open(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if existing, ok := e.conversations[matchID]; ok {
		e.mu.Unlock()
		a.Close()
		return existing, nil
	}
	e.conversations[matchID] = a
	e.mu.Unlock()
	return a, nil
}

// CloseConversation detaches the realtime feed of one match.
func (e *Engine) CloseConversation(matchID string) {
	e.mu.Lock()
	a, ok := e.conversations[matchID]
	delete(e.conversations, matchID)
	e.mu.Unlock()
	if ok {
		a.Close()
	}
}

// Shutdown closes every open conversation and drains background
// persists.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	adapters := make([]*conversation.Adapter, 0, len(e.conversations))
	for _, a := range e.conversations {
		adapters = append(adapters, a)
	}
	e.conversations = make(map[string]*conversation.Adapter)
	e.mu.Unlock()

	for _, a := range adapters {
		a.Close()
	}
	e.Orchestrator.Wait()
}

func (e *Engine) defaultFilters() model.FilterQuery {
	ageMin, ageMax, gender, province, goal := e.Session.DefaultFilters()
	return model.FilterQuery{
		AgeMin:           ageMin,
		AgeMax:           ageMax,
		Gender:           gender,
		Province:         province,
		RelationshipGoal: goal,
	}
}

// fetchCandidates feeds the discovery queue: the queue supplies the
// session exclusion set, the engine supplies the gated filter state.
func (e *Engine) fetchCandidates(ctx context.Context, excludeIDs []string, limit int) ([]model.Profile, error) {
	q := e.Filters()
	q.ExcludeIDs = excludeIDs
	q.Limit = limit
	return e.appCtx.Gateway.FetchProfiles(ctx, e.Session.ViewerID, q)
}

func (e *Engine) peerOf(ctx context.Context, matchID string) (string, error) {
	matches, err := e.appCtx.Gateway.ListMatches(ctx, e.Session.ViewerID)
	if err != nil {
		return "", fmt.Errorf("resolve match: %w", err)
	}
	for _, m := range matches {
		if m.ID != matchID {
			continue
		}
		if m.UserA == e.Session.ViewerID {
			return m.UserB, nil
		}
		return m.UserA, nil
	}
	return "", fmt.Errorf("%w: match %s", errors.ErrNotFound, matchID)
}
