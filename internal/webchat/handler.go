package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/pkg/logging"
	"golang.org/x/net/websocket"
)

// Inbound frame types.
const (
	FrameOpen   = "open"
	FrameClose  = "close"
	FrameToggle = "toggle"
	FrameOption = "option"
	FramePing   = "ping"
	FrameDebug  = "debug"
)

// Outbound frame types.
const (
	FrameSession = "session"
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameCommand = "command"
	FrameBadge   = "badge"
	FrameState   = "state"
	FramePong    = "pong"
	FrameError   = "error"
)

const (
	transportWebSocket = "websocket"
	transportHTTP      = "http"
)

// DefaultIdleTTL is how long an HTTP session lives without requests.
const DefaultIdleTTL = 30 * time.Minute

// SessionFactory builds a dispatcher for a clinic.
type SessionFactory interface {
	NewSession(ctx context.Context, orgID string, r chatbot.Renderer, h chatbot.Host) *chatbot.Dispatcher
}

// Observer receives transport-level observations.
type Observer interface {
	SessionStarted(transport string)
	SessionEnded(transport string)
	ObserveFrame(direction, frameType string)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string)        {}
func (nopObserver) SessionEnded(string)          {}
func (nopObserver) ObserveFrame(string, string) {}

// Options configures a Handler.
type Options struct {
	// DefaultOrgID is used when a client does not name a clinic.
	DefaultOrgID string
	IdleTTL      time.Duration
	Observer     Observer
}

// Handler serves chat sessions over WebSocket, with an HTTP fallback.
type Handler struct {
	factory      SessionFactory
	observer     Observer
	logger       *logging.Logger
	defaultOrgID string
	idleTTL      time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	sockets  map[string]*socket      // sessionID -> live connection
	sessions map[string]*httpSession // sessionID -> HTTP fallback session
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "open", "close", "toggle", "option", "ping", "debug"
	Text string `json:"text,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id,omitempty"`
	Message   *chatbot.Message   `json:"message,omitempty"`
	Active    *bool              `json:"active,omitempty"` // typing and badge frames
	Command   *chatbot.Command   `json:"command,omitempty"`
	State     *chatbot.State     `json:"state,omitempty"`
	Debug     *chatbot.DebugInfo `json:"debug,omitempty"`
	Text      string             `json:"text,omitempty"` // error frames
}

// NewHandler creates a web chat handler.
func NewHandler(factory SessionFactory, opts Options, logger *logging.Logger) *Handler {
	if factory == nil {
		panic("webchat: session factory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Handler{
		factory:      factory,
		observer:     opts.Observer,
		logger:       logger,
		defaultOrgID: opts.DefaultOrgID,
		idleTTL:      opts.IdleTTL,
		now:          time.Now,
		sockets:      make(map[string]*socket),
		sessions:     make(map[string]*httpSession),
	}
}

// Routes returns a chi router with the chat routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.HandleWebSocket)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/open", h.OpenSession)
		r.Post("/close", h.CloseSession)
		r.Post("/toggle", h.ToggleSession)
		r.Post("/options", h.SubmitOption)
		r.Get("/debug", h.DebugSession)
	})
	return r
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

func (h *Handler) orgID(requested string) string {
	if org := strings.TrimSpace(requested); org != "" {
		return org
	}
	return h.defaultOrgID
}

// HandleWebSocket upgrades to WebSocket and runs one chat session per connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	orgID := h.orgID(r.URL.Query().Get("org"))
	if orgID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: FrameError, Text: "missing org parameter"})
		return
	}

	sessionID := generateSessionID()
	sock := newSocket(conn, sessionID, h.observer, h.logger)
	go sock.writeLoop()

	d := h.factory.NewSession(r.Context(), orgID, sock, sock)
	defer teardown(sock, d)

	h.mu.Lock()
	h.sockets[sessionID] = sock
	h.mu.Unlock()
	h.observer.SessionStarted(transportWebSocket)
	defer func() {
		h.mu.Lock()
		delete(h.sockets, sessionID)
		h.mu.Unlock()
		h.observer.SessionEnded(transportWebSocket)
	}()

	h.logger.Info("webchat: connection opened", "org_id", orgID, "session_id", sessionID)

	sock.push(OutboundMessage{Type: FrameSession, SessionID: sessionID})
	sock.push(stateFrame(d))
	d.StartNudges()

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "org_id", orgID, "session_id", sessionID, "error", err)
			return
		}
		h.observer.ObserveFrame("in", msg.Type)

		switch msg.Type {
		case FrameOpen:
			d.Open()
			sock.push(stateFrame(d))
		case FrameClose:
			d.Close()
			sock.push(stateFrame(d))
		case FrameToggle:
			d.Toggle()
			sock.push(stateFrame(d))
		case FrameOption:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			d.SubmitOption(msg.Text)
		case FramePing:
			sock.push(OutboundMessage{Type: FramePong})
		case FrameDebug:
			info := d.Debug()
			sock.push(OutboundMessage{Type: FrameDebug, Debug: &info})
		default:
			sock.push(OutboundMessage{Type: FrameError, Text: "unknown frame type"})
		}
	}
}

// teardown closes the socket before stopping the dispatcher: a reply blocked on
// a full outbound queue holds the dispatcher lock until the socket is closed.
func teardown(sock *socket, d *chatbot.Dispatcher) {
	sock.close()
	d.Stop()
}

func stateFrame(d *chatbot.Dispatcher) OutboundMessage {
	state := d.State()
	return OutboundMessage{Type: FrameState, State: &state}
}

// ActiveConnections reports the number of live WebSocket sessions.
func (h *Handler) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sockets)
}

// Shutdown stops every HTTP session and closes live connections.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*httpSession)
	conns := make([]*socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		conns = append(conns, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.dispatcher.Stop()
		h.observer.SessionEnded(transportHTTP)
	}
	for _, s := range conns {
		_ = s.conn.Close()
	}
	h.logger.Info("webchat: shut down", "http_sessions", len(sessions), "connections", len(conns))
}
