// Package httpapi exposes the engine to the UI shell: REST for state
// and actions, websockets for the realtime streams.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/engine"
	"github.com/amoradev/amora/internal/entitlement"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

// authRedirect is where the shell sends the user on the fatal
// unauthenticated class.
const authRedirect = "/auth/login"

// Authenticator is the session surface of the gateway.
type Authenticator interface {
	Authenticate(ctx context.Context, phone, pin string) (string, model.Profile, error)
	ResolveSession(ctx context.Context, token string) (model.Profile, entitlement.Tier, error)
}

type Server struct {
	appCtx *app.AppContext
	auth   Authenticator
	log    *slog.Logger

	mu      sync.Mutex
	engines map[string]*engine.Engine

	upgrader websocket.Upgrader
}

func NewServer(appCtx *app.AppContext, auth Authenticator) *Server {
	return &Server{
		appCtx:  appCtx,
		auth:    auth,
		log:     appCtx.Logger.With("component", "httpapi"),
		engines: make(map[string]*engine.Engine),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the full route table with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Welcome to Amora"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireSession)

	// discovery + swipe
	api.HandleFunc("/discovery/current", s.handleCurrent).Methods(http.MethodGet)
	api.HandleFunc("/discovery/replenish", s.handleReplenish).Methods(http.MethodPost)
	api.HandleFunc("/discovery/swipe", s.handleSwipe).Methods(http.MethodPost)
	api.HandleFunc("/discovery/undo", s.handleUndo).Methods(http.MethodPost)
	api.HandleFunc("/discovery/message", s.handlePreMatchMessage).Methods(http.MethodPost)
	api.HandleFunc("/discovery/filters", s.handleGetFilters).Methods(http.MethodGet)
	api.HandleFunc("/discovery/filters", s.handleSetFilters).Methods(http.MethodPut)
	api.HandleFunc("/discovery/events", s.handleMatchEvents).Methods(http.MethodGet)

	// inboxes
	api.HandleFunc("/inbox/likes", s.handleLikedYou).Methods(http.MethodGet)
	api.HandleFunc("/inbox/likes/count", s.handleLikedYouCount).Methods(http.MethodGet)
	api.HandleFunc("/inbox/archived", s.handleArchived).Methods(http.MethodGet)
	api.HandleFunc("/inbox/archived/{id}", s.handleUnarchive).Methods(http.MethodDelete)
	api.HandleFunc("/inbox/comments", s.handleAnonComments).Methods(http.MethodGet)
	api.HandleFunc("/inbox/premessages", s.handlePreMatchInbox).Methods(http.MethodGet)
	api.HandleFunc("/inbox/premessages/{id}/reply", s.handlePreMatchReply).Methods(http.MethodPost)

	// matches + conversations
	api.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/messages", s.handleMessages).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/stream", s.handleConversationStream).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/conversation", s.handleCloseConversation).Methods(http.MethodDelete)

	// profiles + stories
	api.HandleFunc("/profiles/{id}/comments", s.handlePostAnonComment).Methods(http.MethodPost)
	api.HandleFunc("/stories", s.handleStoriesFeed).Methods(http.MethodGet)
	api.HandleFunc("/stories", s.handlePostSecret).Methods(http.MethodPost)
	api.HandleFunc("/stories/{id}/reaction", s.handleStoryReaction).Methods(http.MethodPost)
	api.HandleFunc("/stories/{id}/comments", s.handleStoryComment).Methods(http.MethodPost)

	// viewer state
	api.HandleFunc("/me/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/me/entitlements", s.handleEntitlements).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

// Start serves the API until ctx is cancelled, then stops accepting
// connections and drains every viewer engine.
func (s *Server) Start(ctx context.Context) error {
	addr := s.appCtx.Cfg.HTTP.Host + ":" + s.appCtx.Cfg.HTTP.Port
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("starting http server", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.drainEngines()
	return err
}

// drainEngines shuts down every viewer engine, closing open
// conversations and waiting out background persists.
func (s *Server) drainEngines() {
	s.mu.Lock()
	engines := make([]*engine.Engine, 0, len(s.engines))
	for _, eng := range s.engines {
		engines = append(engines, eng)
	}
	s.engines = make(map[string]*engine.Engine)
	s.mu.Unlock()

	for _, eng := range engines {
		eng.Shutdown()
	}
}

type ctxKey int

const engineKey ctxKey = iota

// requireSession resolves the bearer token and attaches the viewer's
// engine. Missing or invalid sessions abort with a redirect to auth,
// the only fatal error class.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		profile, tier, err := s.auth.ResolveSession(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "session required",
				"redirect": authRedirect,
			})
			return
		}

		eng := s.engineFor(r.Context(), profile, tier)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), engineKey, eng)))
	})
}

func (s *Server) engineOf(r *http.Request) *engine.Engine {
	return r.Context().Value(engineKey).(*engine.Engine)
}

// engineFor returns the viewer's engine, building it on first sight.
func (s *Server) engineFor(ctx context.Context, profile model.Profile, tier entitlement.Tier) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[profile.ID]; ok {
		return eng
	}

	session := &app.Session{
		ViewerID:         profile.ID,
		Tier:             tier,
		Gender:           profile.Gender,
		InterestedIn:     oppositeOf(profile.Gender),
		Province:         profile.Province,
		RelationshipGoal: profile.RelationshipGoal,
		AgeMin:           18,
		AgeMax:           99,
	}
	eng := engine.New(ctx, s.appCtx, session)
	s.engines[profile.ID] = eng
	return eng
}

// oppositeOf is the seed default for InterestedIn when the profile
// carries no explicit preference.
func oppositeOf(gender string) string {
	switch gender {
	case "male":
		return "female"
	case "female":
		return "male"
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := svcErr.HTTPStatus(err)
	body := map[string]string{"error": err.Error()}
	if status == http.StatusUnauthorized {
		body["redirect"] = authRedirect
	}
	if status == http.StatusPaymentRequired {
		body["upgrade"] = "true"
	}
	writeJSON(w, status, body)
}
