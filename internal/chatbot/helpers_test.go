package chatbot

import (
	"sync"
	"time"

	"github.com/wolfman30/clinic-chat/internal/clinic"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// fakeClock fires timers only when advanced, in due order, on the caller's goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

type recordingRenderer struct {
	mu       sync.Mutex
	messages []Message
	typing   []bool
	badges   []bool
}

func (r *recordingRenderer) Render(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingRenderer) Typing(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, active)
}

func (r *recordingRenderer) Badge(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badges = append(r.badges, visible)
}

type recordingHost struct {
	mu       sync.Mutex
	commands []Command
}

func (h *recordingHost) Execute(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
}

func (h *recordingHost) Commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Command(nil), h.commands...)
}

type recordingRecorder struct {
	mu       sync.Mutex
	opened   []bool
	stages   []string
	commands []string
	delays   []float64
}

func (r *recordingRecorder) ObserveSessionOpened(first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, first)
}

func (r *recordingRecorder) ObserveResolution(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recordingRecorder) ObserveCommand(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, kind)
}

func (r *recordingRecorder) ObserveReplyDelay(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, seconds)
}

type testSession struct {
	*Dispatcher
	clock    *fakeClock
	renderer *recordingRenderer
	host     *recordingHost
	recorder *recordingRecorder
	profile  clinic.Profile
}

func newTestSession(kb *KnowledgeBase) *testSession {
	s := &testSession{
		clock:    newFakeClock(),
		renderer: &recordingRenderer{},
		host:     &recordingHost{},
		recorder: &recordingRecorder{},
		profile:  clinic.DefaultProfile("test-org"),
	}
	s.Dispatcher = New(Options{
		Profile:   s.profile,
		Knowledge: kb,
		Renderer:  s.renderer,
		Host:      s.host,
		Recorder:  s.recorder,
		Logger:    logging.New("error"),
		Clock:     s.clock,
		Location:  time.UTC,
	})
	return s
}

func countBySender(msgs []Message) (bot, user int) {
	for _, m := range msgs {
		switch m.Sender {
		case SenderBot:
			bot++
		case SenderUser:
			user++
		}
	}
	return bot, user
}
