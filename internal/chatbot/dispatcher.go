package chatbot

import (
	"sync"
	"time"

	"github.com/wolfman30/clinic-chat/internal/clinic"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

const (
	DefaultGreetingDelay = 600 * time.Millisecond
	DefaultTypingDelay   = 800 * time.Millisecond
	DefaultNudgeInterval = 25 * time.Second
)

// Resolution stages reported to the Recorder.
const (
	ResolutionSpecial   = "special"
	ResolutionKnowledge = "knowledge"
	ResolutionFallback  = "fallback"
)

// Renderer shows session output. Calls happen while the dispatcher holds its
// lock, in transcript order, so implementations must not call back into the
// Dispatcher.
type Renderer interface {
	Render(msg Message)
	Typing(active bool)
	Badge(visible bool)
}

// Host carries out side-effect commands (open link, navigate, dial).
type Host interface {
	Execute(cmd Command)
}

// Recorder receives chat flow observations.
type Recorder interface {
	ObserveSessionOpened(first bool)
	ObserveResolution(stage string)
	ObserveCommand(kind string)
	ObserveReplyDelay(seconds float64)
}

// Options configures a Dispatcher. Zero durations use the defaults.
type Options struct {
	Profile        clinic.Profile
	Knowledge      *KnowledgeBase
	SpecialOptions *OptionTable

	Renderer Renderer
	Host     Host
	Recorder Recorder
	Logger   *logging.Logger
	Clock    Clock
	Location *time.Location

	GreetingDelay time.Duration
	TypingDelay   time.Duration
	NudgeInterval time.Duration
}

// State is the visibility and greeting latch of a session.
type State struct {
	IsOpen     bool `json:"is_open"`
	HasGreeted bool `json:"has_greeted"`
}

// Dispatcher owns one chat session: its open/closed state, the one-shot
// greeting latch and the append-only transcript. It is safe for concurrent use.
type Dispatcher struct {
	profile   clinic.Profile
	knowledge *KnowledgeBase
	special   *OptionTable
	renderer  Renderer
	host      Host
	recorder  Recorder
	logger    *logging.Logger
	clock     Clock
	location  *time.Location

	greetingDelay time.Duration
	typingDelay   time.Duration
	nudgeInterval time.Duration

	mu           sync.Mutex
	isOpen       bool
	hasGreeted   bool
	transcript   []Message
	pending      map[uint64]Timer
	nextTimerID  uint64
	typing       int
	nudge        Timer
	badgeVisible bool
	stopped      bool
}

// New creates a closed session.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		profile:       opts.Profile,
		knowledge:     opts.Knowledge,
		special:       opts.SpecialOptions,
		renderer:      opts.Renderer,
		host:          opts.Host,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		clock:         opts.Clock,
		location:      opts.Location,
		greetingDelay: orDefault(opts.GreetingDelay, DefaultGreetingDelay),
		typingDelay:   orDefault(opts.TypingDelay, DefaultTypingDelay),
		nudgeInterval: orDefault(opts.NudgeInterval, DefaultNudgeInterval),
		pending:       make(map[uint64]Timer),
	}
	if d.knowledge == nil {
		d.knowledge = DefaultKnowledgeBase(d.profile)
	}
	if d.special == nil {
		d.special = DefaultOptionTable(d.profile)
	}
	if d.logger == nil {
		d.logger = logging.Default()
	}
	if d.clock == nil {
		d.clock = SystemClock
	}
	if d.location == nil {
		d.location = time.Local
	}
	return d
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Open shows the widget. The first open of a session schedules the welcome
// message with the greeting options; later opens only change visibility.
func (d *Dispatcher) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openLocked()
}

func (d *Dispatcher) openLocked() {
	if d.stopped {
		return
	}

	wasOpen := d.isOpen
	d.isOpen = true
	d.hideBadgeLocked()

	first := !d.hasGreeted
	if first {
		// Latched before the delay so a second Open cannot greet twice.
		d.hasGreeted = true
		d.scheduleLocked(d.greetingDelay, func() {
			d.appendLocked(newMessage(SenderBot, greetingText(d.profile), GreetingOptions, d.now()))
		})
	}
	if !wasOpen {
		if d.recorder != nil {
			d.recorder.ObserveSessionOpened(first)
		}
		d.logger.Debug("chat: opened", "org_id", d.profile.OrgID, "first", first)
	}
}

// Close hides the widget. Nothing is cleared and pending replies still land
// in the transcript.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dispatcher) closeLocked() {
	if d.isOpen {
		d.logger.Debug("chat: closed", "org_id", d.profile.OrgID)
	}
	d.isOpen = false
}

// Toggle closes an open widget and opens a closed one.
func (d *Dispatcher) Toggle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isOpen {
		d.closeLocked()
		return
	}
	d.openLocked()
}

// SubmitOption handles an option click or typed text. The user message is
// appended immediately. Special options reply synchronously; anything else is
// matched against the knowledge base after the typing delay, falling back to
// the contact offer. Each call yields exactly one bot reply.
func (d *Dispatcher) SubmitOption(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.appendLocked(newMessage(SenderUser, label, nil, d.now()))

	if opt, ok := d.special.Lookup(label); ok {
		if opt.Command != nil {
			d.executeLocked(*opt.Command)
		}
		d.appendLocked(newMessage(SenderBot, opt.Reply, opt.Options, d.now()))
		d.observeResolution(ResolutionSpecial)
		return
	}

	d.typing++
	if d.typing == 1 {
		d.renderLocked(func(r Renderer) { r.Typing(true) })
	}
	submitted := d.clock.Now()
	d.scheduleLocked(d.typingDelay, func() {
		d.typing--
		if d.typing == 0 {
			d.renderLocked(func(r Renderer) { r.Typing(false) })
		}

		stage := ResolutionFallback
		reply := newMessage(SenderBot, fallbackText, FallbackOptions, d.now())
		if entry, ok := d.knowledge.Match(label); ok {
			stage = ResolutionKnowledge
			reply = newMessage(SenderBot, entry.Response, entry.Options, d.now())
			d.logger.Debug("chat: knowledge match", "org_id", d.profile.OrgID, "topic", entry.Topic)
		}
		d.appendLocked(reply)
		d.observeResolution(stage)
		if d.recorder != nil {
			d.recorder.ObserveReplyDelay(d.clock.Now().Sub(submitted).Seconds())
		}
	})
}

// StartNudges shows the notification badge every nudge interval for as long
// as the session stays closed and has never been opened.
func (d *Dispatcher) StartNudges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.nudge != nil || d.hasGreeted || d.isOpen {
		return
	}
	d.nudge = d.clock.AfterFunc(d.nudgeInterval, d.nudgeFired)
}

func (d *Dispatcher) nudgeFired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.nudge == nil || d.hasGreeted || d.isOpen {
		return
	}
	d.badgeVisible = true
	d.renderLocked(func(r Renderer) { r.Badge(true) })
	d.nudge = d.clock.AfterFunc(d.nudgeInterval, d.nudgeFired)
}

func (d *Dispatcher) hideBadgeLocked() {
	if d.nudge != nil {
		d.nudge.Stop()
		d.nudge = nil
	}
	if d.badgeVisible {
		d.badgeVisible = false
		d.renderLocked(func(r Renderer) { r.Badge(false) })
	}
}

// Stop ends the session: pending replies and nudges are cancelled and later
// calls are ignored. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for id, t := range d.pending {
		t.Stop()
		delete(d.pending, id)
	}
	if d.nudge != nil {
		d.nudge.Stop()
		d.nudge = nil
	}
	d.typing = 0
}

// State reports visibility and the greeting latch.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{IsOpen: d.isOpen, HasGreeted: d.hasGreeted}
}

// Transcript returns a copy of the messages so far.
func (d *Dispatcher) Transcript() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneMessages(d.transcript)
}

// Profile returns the clinic profile the session was built with.
func (d *Dispatcher) Profile() clinic.Profile {
	return d.profile
}

func (d *Dispatcher) scheduleLocked(delay time.Duration, fn func()) {
	id := d.nextTimerID
	d.nextTimerID++
	// The callback needs d.mu, which is held until the entry below is stored.
	d.pending[id] = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.pending[id]; !ok {
			return
		}
		delete(d.pending, id)
		fn()
	})
}

func (d *Dispatcher) appendLocked(msg Message) {
	d.transcript = append(d.transcript, msg)
	d.renderLocked(func(r Renderer) { r.Render(msg) })
}

func (d *Dispatcher) renderLocked(fn func(Renderer)) {
	if d.renderer == nil {
		return
	}
	d.guard("renderer", func() { fn(d.renderer) })
}

func (d *Dispatcher) executeLocked(cmd Command) {
	if d.recorder != nil {
		d.recorder.ObserveCommand(string(cmd.Kind))
	}
	if d.host == nil {
		d.logger.Debug("chat: no host for command", "kind", cmd.Kind, "target", cmd.Target)
		return
	}
	d.guard("host", func() { d.host.Execute(cmd) })
}

// guard runs a collaborator call; a panicking collaborator is logged and the
// session carries on.
func (d *Dispatcher) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("chat: collaborator failed", "collaborator", name, "panic", r)
		}
	}()
	fn()
}

func (d *Dispatcher) observeResolution(stage string) {
	if d.recorder != nil {
		d.recorder.ObserveResolution(stage)
	}
}

func (d *Dispatcher) now() time.Time {
	return d.clock.Now().In(d.location)
}
