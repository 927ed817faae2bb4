package webchat

import (
	"sync"

	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/pkg/logging"
	"golang.org/x/net/websocket"
)

const outboundBuffer = 64

// socket adapts a WebSocket connection to chatbot.Renderer and chatbot.Host.
// Frames are queued and written by a single goroutine so the dispatcher never
// blocks on the network while holding its lock.
type socket struct {
	conn      *websocket.Conn
	sessionID string
	observer  Observer
	logger    *logging.Logger

	out       chan OutboundMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(conn *websocket.Conn, sessionID string, observer Observer, logger *logging.Logger) *socket {
	return &socket{
		conn:      conn,
		sessionID: sessionID,
		observer:  observer,
		logger:    logger,
		out:       make(chan OutboundMessage, outboundBuffer),
		done:      make(chan struct{}),
	}
}

func (s *socket) Render(msg chatbot.Message) {
	s.push(OutboundMessage{Type: FrameMessage, Message: &msg})
}

func (s *socket) Typing(active bool) {
	s.push(OutboundMessage{Type: FrameTyping, Active: &active})
}

func (s *socket) Badge(visible bool) {
	s.push(OutboundMessage{Type: FrameBadge, Active: &visible})
}

func (s *socket) Execute(cmd chatbot.Command) {
	s.push(OutboundMessage{Type: FrameCommand, Command: &cmd})
}

// push queues a frame; frames pushed after close are dropped.
func (s *socket) push(msg OutboundMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- msg:
	case <-s.done:
	}
}

func (s *socket) writeLoop() {
	for {
		select {
		case msg := <-s.out:
			if err := websocket.JSON.Send(s.conn, msg); err != nil {
				s.logger.Debug("webchat: send failed", "session_id", s.sessionID, "error", err)
				// Unblocks the reader, which then closes the socket.
				_ = s.conn.Close()
				return
			}
			s.observer.ObserveFrame("out", msg.Type)
		case <-s.done:
			return
		}
	}
}

func (s *socket) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// commandLog is the chatbot.Host of an HTTP session: commands are kept until
// the client fetches them.
type commandLog struct {
	mu       sync.Mutex
	commands []chatbot.Command
}

func (c *commandLog) Execute(cmd chatbot.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
}

func (c *commandLog) drain() []chatbot.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.commands
	c.commands = nil
	if out == nil {
		out = []chatbot.Command{}
	}
	return out
}
