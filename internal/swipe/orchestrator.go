// Package swipe turns gestures and button presses on the discovery
// screen into queue mutations, durable writes, and match events.
package swipe

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/discovery"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
	"github.com/amoradev/amora/internal/utils/retry"
)

// PolicyKeepAdvanceOnWriteFailure names the deliberate tradeoff of this
// screen: the queue advance is never rolled back when the durable write
// behind it fails. The viewer will not see the candidate again locally
// even though the backend may not have recorded the action. Fluidity
// over strict consistency.
const PolicyKeepAdvanceOnWriteFailure = "keep_advance_on_write_failure"

// persistTimeout bounds background writes that outlive the request that
// triggered them.
const persistTimeout = 15 * time.Second

// Recorder is the slice of the gateway the orchestrator consumes.
type Recorder interface {
	RecordLike(ctx context.Context, viewerID, targetID string) (gateway.LikeResult, error)
	RecordDislike(ctx context.Context, viewerID, targetID string) error
	RecordArchive(ctx context.Context, viewerID, targetID string) (string, error)
	SendPreMatchMessage(ctx context.Context, senderID, targetID, content string) error
	DeletePreMatchMessage(ctx context.Context, messageID string) error
	ConfirmMatchOnReply(ctx context.Context, viewerID, targetID string) (gateway.LikeResult, error)
	GetMatch(ctx context.Context, userA, userB string) (model.Match, error)
}

// MatchEvent carries everything the shell needs for the celebration
// modal: the new conversation id and the matched candidate.
type MatchEvent struct {
	MatchID string
	Target  model.Profile
}

// Orchestrator consumes queue heads for one viewer session. Queue
// mutation is synchronous and optimistic; persistence is fire and
// forget, with its result used only for match detection and logging.
type Orchestrator struct {
	session *app.Session
	queue   *discovery.Queue
	gw      Recorder
	ent     *entitlement.Evaluator
	log     *slog.Logger

	pollAttempts int
	pollInterval time.Duration

	matches chan MatchEvent
	wg      sync.WaitGroup
}

func NewOrchestrator(session *app.Session, queue *discovery.Queue, gw Recorder, ent *entitlement.Evaluator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		session:      session,
		queue:        queue,
		gw:           gw,
		ent:          ent,
		log:          log,
		pollAttempts: 5,
		pollInterval: 2 * time.Second,
		matches:      make(chan MatchEvent, 8),
	}
}

// SetMatchPolling overrides the reply-fallback polling parameters.
func (o *Orchestrator) SetMatchPolling(attempts int, interval time.Duration) {
	if attempts > 0 {
		o.pollAttempts = attempts
	}
	if interval > 0 {
		o.pollInterval = interval
	}
}

// Matches streams match celebrations detected by background persists.
func (o *Orchestrator) Matches() <-chan MatchEvent { return o.matches }

// Wait blocks until all in-flight background persists finish. Used at
// shutdown and by tests; the UI path never calls it.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Like advances the queue immediately and records the like in the
// background. A mutual match surfaces on the Matches channel.
func (o *Orchestrator) Like(ctx context.Context) (model.Profile, error) {
	head, ok := o.queue.Advance(model.ActionLike)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: no candidate presented", errors.ErrNotFound)
	}
	o.persist(func(ctx context.Context) {
		res, err := o.gw.RecordLike(ctx, o.session.ViewerID, head.ID)
		if err != nil {
			o.log.Warn("like write failed", "target", head.ID, "policy", PolicyKeepAdvanceOnWriteFailure, "err", err)
			return
		}
		if res.IsMatch {
			o.emitMatch(MatchEvent{MatchID: res.MatchID, Target: head})
		}
	})
	return head, nil
}

// Dislike advances immediately and records the dislike in the
// background. No match is possible on this path.
func (o *Orchestrator) Dislike(ctx context.Context) (model.Profile, error) {
	head, ok := o.queue.Advance(model.ActionDislike)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: no candidate presented", errors.ErrNotFound)
	}
	o.persist(func(ctx context.Context) {
		if err := o.gw.RecordDislike(ctx, o.session.ViewerID, head.ID); err != nil {
			o.log.Warn("dislike write failed", "target", head.ID, "policy", PolicyKeepAdvanceOnWriteFailure, "err", err)
		}
	})
	return head, nil
}

// Archive is entitlement-gated before the optimistic advance: a denial
// leaves the queue untouched and the caller opens the upgrade prompt.
// The local usage counter is debited immediately, not on confirmation.
func (o *Orchestrator) Archive(ctx context.Context) (model.Profile, error) {
	if _, ok := o.queue.Current(); !ok {
		return model.Profile{}, fmt.Errorf("%w: no candidate presented", errors.ErrNotFound)
	}
	res := o.ent.Consume(ctx, entitlement.ActionArchive, 1)
	if !res.Allowed {
		return model.Profile{}, fmt.Errorf("%w: archive limit %d reached", errors.ErrEntitlementDenied, res.Limit)
	}

	head, _ := o.queue.Advance(model.ActionArchive)
	o.persist(func(ctx context.Context) {
		if _, err := o.gw.RecordArchive(ctx, o.session.ViewerID, head.ID); err != nil {
			o.log.Warn("archive write failed", "target", head.ID, "policy", PolicyKeepAdvanceOnWriteFailure, "err", err)
		}
	})
	return head, nil
}

// MessagePreMatch sends a direct message to the current head before any
// match exists. Tier-gated (boolean, no numeric limit). Sending implies
// interest, so the queue advances as a like and the like is recorded
// alongside the message; that is also what lets the recipient's reply
// materialize the match later.
func (o *Orchestrator) MessagePreMatch(ctx context.Context, content string) (model.Profile, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Profile{}, errors.Validationf("message content required")
	}
	if !o.ent.CanPreMatchMessage() {
		return model.Profile{}, fmt.Errorf("%w: pre-match messaging requires a higher plan", errors.ErrEntitlementDenied)
	}

	head, ok := o.queue.Advance(model.ActionMessaged)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: no candidate presented", errors.ErrNotFound)
	}
	o.persist(func(ctx context.Context) {
		if err := o.gw.SendPreMatchMessage(ctx, o.session.ViewerID, head.ID, content); err != nil {
			o.log.Warn("pre-match message write failed", "target", head.ID, "policy", PolicyKeepAdvanceOnWriteFailure, "err", err)
			return
		}
		res, err := o.gw.RecordLike(ctx, o.session.ViewerID, head.ID)
		if err != nil {
			o.log.Warn("implied like write failed", "target", head.ID, "err", err)
			return
		}
		if res.IsMatch {
			o.emitMatch(MatchEvent{MatchID: res.MatchID, Target: head})
		}
	})
	return head, nil
}

// Gesture resolves a drag release against the configured thresholds and
// applies the resulting action, if any.
func (o *Orchestrator) Gesture(ctx context.Context, dx, vx float64, t Thresholds) (model.Profile, Gesture, error) {
	g := Resolve(dx, vx, t)
	switch g {
	case GestureLike:
		p, err := o.Like(ctx)
		return p, g, err
	case GestureDislike:
		p, err := o.Dislike(ctx)
		return p, g, err
	default:
		return model.Profile{}, GestureNone, nil
	}
}

// ReplyToPreMatch is the inbox entry point: replying to a pre-match
// message consumes it. The dedicated confirm procedure is tried first;
// if it is unavailable or inconclusive the fallback likes the sender
// back and polls for the match with bounded retries. The original
// message is deleted exactly once regardless of the match outcome.
func (o *Orchestrator) ReplyToPreMatch(ctx context.Context, msg model.PreMatchMessage) (model.Match, bool, error) {
	viewer := o.session.ViewerID
	target := msg.SenderID

	// the sender was acted on outside the swipe screen; never re-offer
	o.queue.MarkSeen(target)

	defer func() {
		if err := o.gw.DeletePreMatchMessage(context.WithoutCancel(ctx), msg.ID); err != nil {
			o.log.Warn("pre-match message delete failed", "message", msg.ID, "err", err)
		}
	}()

	res, err := o.gw.ConfirmMatchOnReply(ctx, viewer, target)
	if err == nil && res.IsMatch {
		m, gerr := o.gw.GetMatch(ctx, viewer, target)
		if gerr != nil {
			m = model.Match{ID: res.MatchID, UserA: viewer, UserB: target}
		}
		return m, true, nil
	}
	if err != nil && !stderrors.Is(err, gateway.ErrUnavailable) {
		o.log.Warn("confirm-match procedure failed, falling back", "err", err)
	}

	if _, err := o.gw.RecordLike(ctx, viewer, target); err != nil {
		o.log.Warn("reply like write failed", "target", target, "err", err)
	}

	m, found, err := retry.Poll(ctx, o.pollAttempts, o.pollInterval, func(ctx context.Context) (model.Match, bool, error) {
		m, err := o.gw.GetMatch(ctx, viewer, target)
		if err != nil {
			return model.Match{}, false, err
		}
		return m, true, nil
	})
	if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
		o.log.Debug("match poll gave up", "target", target, "err", err)
	}
	return m, found, nil
}

// persist runs a durable write in the background with its own deadline;
// navigating away never cancels it.
func (o *Orchestrator) persist(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (o *Orchestrator) emitMatch(ev MatchEvent) {
	select {
	case o.matches <- ev:
	default:
		o.log.Warn("match event dropped, no listener", "match", ev.MatchID)
	}
}
