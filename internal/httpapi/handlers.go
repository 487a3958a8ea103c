package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/amoradev/amora/internal/entitlement"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
	"github.com/amoradev/amora/internal/swipe"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		PIN   string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	token, profile, err := s.auth.Authenticate(r.Context(), req.Phone, req.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "profile": profile})
}

// handleCurrent reports the queue head. The empty state is a normal
// payload, not an error.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	current, ok := eng.Queue.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"empty": true, "queued": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"empty":   false,
		"queued":  eng.Queue.Len(),
		"profile": current,
	})
}

// handleReplenish is the manual "try again" from the empty state.
func (s *Server) handleReplenish(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	if err := eng.Queue.Replenish(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"queued": eng.Queue.Len()})
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string  `json:"action,omitempty"`
		DX       float64 `json:"dx,omitempty"`
		VX       float64 `json:"vx,omitempty"`
		Gestured bool    `json:"gestured,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	cfg := s.appCtx.Cfg.Engine

	var (
		consumed model.Profile
		err      error
	)
	switch {
	case req.Gestured:
		var g swipe.Gesture
		consumed, g, err = eng.Orchestrator.Gesture(r.Context(), req.DX, req.VX, swipe.Thresholds{
			Distance:      cfg.SwipeDistance,
			FlickDistance: cfg.FlickDistance,
			FlickVelocity: cfg.FlickVelocity,
		})
		if err == nil && g == swipe.GestureNone {
			writeJSON(w, http.StatusOK, map[string]any{"committed": false})
			return
		}
	case req.Action == string(model.ActionLike):
		consumed, err = eng.Orchestrator.Like(r.Context())
	case req.Action == string(model.ActionDislike):
		consumed, err = eng.Orchestrator.Dislike(r.Context())
	case req.Action == string(model.ActionArchive):
		consumed, err = eng.Orchestrator.Archive(r.Context())
	default:
		err = svcErr.Validationf("unknown action %q", req.Action)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"committed": true,
		"consumed":  consumed,
		"queued":    eng.Queue.Len(),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	profile, action, ok := eng.Queue.Undo()
	if !ok {
		writeError(w, svcErr.Validationf("nothing to undo"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "reverted": action})
}

func (s *Server) handlePreMatchMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	consumed, err := eng.Orchestrator.MessagePreMatch(r.Context(), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consumed": consumed, "queued": eng.Queue.Len()})
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"filters": eng.Filters(),
		"custom":  eng.Entitlements.CanCustomFilters(),
	})
}

func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgeMin           int    `json:"age_min"`
		AgeMax           int    `json:"age_max"`
		Gender           string `json:"gender"`
		Province         string `json:"province"`
		RelationshipGoal string `json:"relationship_goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}
	if req.AgeMin > req.AgeMax {
		writeError(w, svcErr.Validationf("age range inverted"))
		return
	}

	eng := s.engineOf(r)
	eng.SetFilters(model.FilterQuery{
		AgeMin:           req.AgeMin,
		AgeMax:           req.AgeMax,
		Gender:           req.Gender,
		Province:         req.Province,
		RelationshipGoal: req.RelationshipGoal,
	})
	// echo the effective (gated) state back
	writeJSON(w, http.StatusOK, map[string]any{
		"filters": eng.Filters(),
		"custom":  eng.Entitlements.CanCustomFilters(),
	})
}

func (s *Server) handleLikedYou(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	var token *string
	if t := r.URL.Query().Get("token"); t != "" {
		token = &t
	}
	entries, next, err := eng.Inbox.LikedYou(r.Context(), token, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"likers": entries}
	if next != nil {
		resp["next_token"] = *next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLikedYouCount(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	count, err := eng.Inbox.CountLikedYou(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	archived, err := eng.Inbox.Archived(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archived": archived})
}

func (s *Server) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	if err := eng.Inbox.Unarchive(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleAnonComments(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	comments, err := eng.Inbox.AnonymousComments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) handlePreMatchInbox(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	msgs, err := eng.Inbox.PreMatchMessages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handlePreMatchReply consumes a pre-match message: confirm-or-poll
// for the match, delete the message exactly once, then send the reply
// into the new conversation when one materialized.
func (s *Server) handlePreMatchReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	msgs, err := eng.Inbox.PreMatchMessages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	var target *model.PreMatchMessage
	for i := range msgs {
		if msgs[i].ID == id {
			target = &msgs[i]
			break
		}
	}
	if target == nil {
		writeError(w, svcErr.ErrNotFound)
		return
	}

	match, found, err := eng.Orchestrator.ReplyToPreMatch(r.Context(), *target)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"matched": found}
	if found {
		resp["match"] = match
		if req.Content != "" {
			// the match is already durable; a failed reply send must not
			// look like a sent message
			adapter, aerr := eng.Conversation(r.Context(), match.ID)
			if aerr != nil {
				resp["send_error"] = aerr.Error()
			} else if sent, serr := adapter.Send(r.Context(), req.Content, nil); serr != nil {
				resp["send_error"] = serr.Error()
				if errors.Is(serr, svcErr.ErrEntitlementDenied) {
					resp["upgrade"] = "true"
				}
			} else {
				resp["message"] = sent
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	matches, err := s.appCtx.Gateway.ListMatches(r.Context(), eng.Session.ViewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	type matchEntry struct {
		model.Match
		Unread int64 `json:"unread"`
	}
	entries := make([]matchEntry, 0, len(matches))
	for _, m := range matches {
		unread, err := s.appCtx.Gateway.CountUnread(r.Context(), m.ID, eng.Session.ViewerID)
		if err != nil {
			unread = 0
		}
		entries = append(entries, matchEntry{Match: m, Unread: unread})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": entries})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	adapter, err := eng.Conversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": adapter.Messages()})
}

// handleCloseConversation is the REST counterpart of a stream
// disconnect: leaving the conversation screen detaches its realtime
// feed.
func (s *Server) handleCloseConversation(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	eng.CloseConversation(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text        string `json:"text"`
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, svcErr.Validationf("invalid image encoding"))
			return
		}
		image = decoded
	}

	eng := s.engineOf(r)
	adapter, err := eng.Conversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	sent, err := adapter.Send(r.Context(), req.Text, image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": sent,
		"balance": eng.Entitlements.Balance(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	adapter, err := eng.Conversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := adapter.MarkRead(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handlePostAnonComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	err := s.appCtx.Gateway.PostAnonymousComment(r.Context(), eng.Session.ViewerID, mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleStoriesFeed(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	feed, err := eng.Stories.Feed(r.Context(), 20)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": feed})
}

func (s *Server) handlePostSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	story, err := eng.Stories.PostSecret(r.Context(), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"story": story})
}

func (s *Server) handleStoryReaction(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	reacted, err := eng.Stories.ToggleReaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reacted": reacted})
}

func (s *Server) handleStoryComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, svcErr.Validationf("invalid request body"))
		return
	}

	eng := s.engineOf(r)
	comment, err := eng.Stories.Comment(r.Context(), mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	state, err := s.appCtx.Gateway.GetBalance(r.Context(), eng.Session.ViewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	eng.Entitlements.RecordBalance(state)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	limits := eng.Entitlements.Limits()
	writeJSON(w, http.StatusOK, map[string]any{
		"tier": eng.Session.Tier.String(),
		"limits": map[string]any{
			"archives_per_day":   limits.ArchivesPerDay,
			"secrets_per_day":    limits.SecretsPerDay,
			"daily_batidas":      limits.DailyBatidas,
			"custom_filters":     limits.CustomFilters,
			"pre_match_messages": limits.PreMatchMessages,
		},
		"usage": map[string]int{
			"archive": eng.Entitlements.Usage(entitlement.ActionArchive),
			"secret":  eng.Entitlements.Usage(entitlement.ActionSecret),
		},
	})
}
