package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// ErrSessionNotFound is returned for unknown or evicted HTTP sessions.
var ErrSessionNotFound = errors.New("webchat: session not found")

// httpSession is a chat session driven by plain HTTP requests. The client
// polls for delayed replies.
type httpSession struct {
	id         string
	orgID      string
	dispatcher *chatbot.Dispatcher
	commands   *commandLog

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *httpSession) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *httpSession) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// CreateSessionRequest is the optional body of POST /chat/sessions.
type CreateSessionRequest struct {
	OrgID string `json:"org_id"`
}

// SubmitOptionRequest is the body of POST /chat/sessions/{id}/options.
type SubmitOptionRequest struct {
	Label string `json:"label"`
}

// SessionResponse is the view of an HTTP session. Commands holds the host
// commands issued since the previous response.
type SessionResponse struct {
	SessionID  string            `json:"session_id"`
	OrgID      string            `json:"org_id"`
	State      chatbot.State     `json:"state"`
	Typing     bool              `json:"typing"`
	Transcript []chatbot.Message `json:"transcript"`
	Commands   []chatbot.Command `json:"commands"`
}

// CreateSession starts a closed HTTP session.
// POST /chat/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	orgID := h.orgID(req.OrgID)
	if orgID == "" {
		http.Error(w, `{"error": "org_id is required"}`, http.StatusBadRequest)
		return
	}

	commands := &commandLog{}
	s := &httpSession{
		id:         generateSessionID(),
		orgID:      orgID,
		dispatcher: h.factory.NewSession(r.Context(), orgID, nil, commands),
		commands:   commands,
		lastSeen:   h.now(),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	h.observer.SessionStarted(transportHTTP)

	h.logger.Info("webchat: http session created", "org_id", orgID, "session_id", s.id)
	h.writeSession(w, http.StatusCreated, s)
}

// GetSession returns state, transcript and pending commands.
// GET /chat/sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(*httpSession) {})
}

// OpenSession shows the widget.
// POST /chat/sessions/{sessionID}/open
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *httpSession) { s.dispatcher.Open() })
}

// CloseSession hides the widget.
// POST /chat/sessions/{sessionID}/close
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *httpSession) { s.dispatcher.Close() })
}

// ToggleSession flips widget visibility.
// POST /chat/sessions/{sessionID}/toggle
func (h *Handler) ToggleSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *httpSession) { s.dispatcher.Toggle() })
}

// SubmitOption handles an option click or typed text.
// POST /chat/sessions/{sessionID}/options
func (h *Handler) SubmitOption(w http.ResponseWriter, r *http.Request) {
	var req SubmitOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	h.withSession(w, r, func(s *httpSession) { s.dispatcher.SubmitOption(req.Label) })
}

// DebugSession returns the session's diagnostic snapshot.
// GET /chat/sessions/{sessionID}/debug
func (h *Handler) DebugSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	s.touch(h.now())
	writeJSON(w, h.logger, http.StatusOK, s.dispatcher.Debug())
}

// DeleteSession ends an HTTP session.
// DELETE /chat/sessions/{sessionID}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}

	s.dispatcher.Stop()
	h.observer.SessionEnded(transportHTTP)
	h.logger.Info("webchat: http session ended", "org_id", s.orgID, "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(*httpSession)) {
	s, err := h.lookup(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	s.touch(h.now())
	fn(s)
	h.writeSession(w, http.StatusOK, s)
}

func (h *Handler) lookup(id string) (*httpSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, s *httpSession) {
	writeJSON(w, h.logger, status, SessionResponse{
		SessionID:  s.id,
		OrgID:      s.orgID,
		State:      s.dispatcher.State(),
		Typing:     s.dispatcher.Debug().Typing,
		Transcript: s.dispatcher.Transcript(),
		Commands:   s.commands.drain(),
	})
}

// EvictIdle stops and removes HTTP sessions idle for longer than the TTL.
func (h *Handler) EvictIdle() int {
	now := h.now()

	h.mu.Lock()
	var evicted []*httpSession
	for id, s := range h.sessions {
		if s.idleSince(now) > h.idleTTL {
			evicted = append(evicted, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, s := range evicted {
		s.dispatcher.Stop()
		h.observer.SessionEnded(transportHTTP)
		h.logger.Debug("webchat: http session evicted", "org_id", s.orgID, "session_id", s.id)
	}
	return len(evicted)
}

// RunJanitor evicts idle HTTP sessions every interval until ctx is done.
func (h *Handler) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = h.idleTTL / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.EvictIdle(); n > 0 {
				h.logger.Info("webchat: evicted idle sessions", "count", n)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
