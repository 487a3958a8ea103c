package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/amoradev/amora/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// handleConversationStream pushes new messages of one conversation
// over a websocket. The connection stays open until the client goes
// away; message history comes from the REST endpoint. When the last
// stream of a conversation detaches, the realtime feed is closed so
// navigating away stops the subscription.
func (s *Server) handleConversationStream(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)
	matchID := mux.Vars(r)["id"]

	adapter, err := eng.Conversation(r.Context(), matchID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	outbox := make(chan model.Message, 32)
	detach := adapter.AddListener(func(m model.Message) {
		select {
		case outbox <- m:
		default:
			s.log.Warn("conversation stream backpressure, dropping", "match_id", matchID)
		}
	})

	go s.writePump(conn, outbox, matchID)
	s.readPump(conn)
	detach()
	if adapter.Listeners() == 0 {
		eng.CloseConversation(matchID)
	}
}

// handleMatchEvents streams "it's a match" moments so the shell can
// show the celebration as soon as a mutual like lands.
func (s *Server) handleMatchEvents(w http.ResponseWriter, r *http.Request) {
	eng := s.engineOf(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump(conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-eng.Orchestrator.Matches():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// writePump drains the outbox to the peer and keeps the connection
// alive with pings.
func (s *Server) writePump(conn *websocket.Conn, outbox <-chan model.Message, matchID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case m, ok := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(m); err != nil {
				s.log.Debug("conversation stream closed", "match_id", matchID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only consumes control frames; clients never send data on
// these streams.
func (s *Server) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
