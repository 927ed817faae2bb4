package chatbot

import "github.com/wolfman30/clinic-chat/internal/clinic"

// DebugInfo is a read-only snapshot of a session for diagnostics.
type DebugInfo struct {
	State          State          `json:"state"`
	Messages       int            `json:"messages"`
	BotMessages    int            `json:"bot_messages"`
	UserMessages   int            `json:"user_messages"`
	PendingReplies int            `json:"pending_replies"`
	Typing         bool           `json:"typing"`
	Topics         []string       `json:"topics"`
	SpecialLabels  []string       `json:"special_labels"`
	Shadowed       []Shadow       `json:"shadowed,omitempty"`
	HasRenderer    bool           `json:"has_renderer"`
	HasHost        bool           `json:"has_host"`
	BadgeVisible   bool           `json:"badge_visible"`
	Stopped        bool           `json:"stopped"`
	Profile        clinic.Profile `json:"profile"`
}

// Debug reports counts and presence flags without changing the session.
func (d *Dispatcher) Debug() DebugInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := DebugInfo{
		State:          State{IsOpen: d.isOpen, HasGreeted: d.hasGreeted},
		Messages:       len(d.transcript),
		PendingReplies: len(d.pending),
		Typing:         d.typing > 0,
		Topics:         d.knowledge.Topics(),
		SpecialLabels:  d.special.Labels(),
		Shadowed:       d.knowledge.Shadowed(),
		HasRenderer:    d.renderer != nil,
		HasHost:        d.host != nil,
		BadgeVisible:   d.badgeVisible,
		Stopped:        d.stopped,
		Profile:        d.profile,
	}
	for _, m := range d.transcript {
		if m.Sender == SenderBot {
			info.BotMessages++
		} else {
			info.UserMessages++
		}
	}
	return info
}
