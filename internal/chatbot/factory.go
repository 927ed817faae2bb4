package chatbot

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/clinic-chat/internal/clinic"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

// ProfileSource looks up a clinic profile.
type ProfileSource interface {
	GetOrDefault(ctx context.Context, orgID string, fallback clinic.Profile) (clinic.Profile, error)
}

// KnowledgeSource looks up a clinic's stored topics.
type KnowledgeSource interface {
	Get(ctx context.Context, orgID string) ([]KnowledgeEntry, error)
}

// Factory builds sessions for a clinic. Stored profile and knowledge win over
// the fallbacks; lookup failures are logged and the fallbacks are used, so a
// session can always be created.
type Factory struct {
	Profiles  ProfileSource
	Knowledge KnowledgeSource

	FallbackProfile clinic.Profile
	// FallbackKnowledge is an unbound knowledge base; nil means DefaultKnowledge.
	FallbackKnowledge *KnowledgeBase

	Recorder Recorder
	Logger   *logging.Logger
	Clock    Clock
	Location *time.Location

	GreetingDelay time.Duration
	TypingDelay   time.Duration
	NudgeInterval time.Duration
}

// NewSession creates a closed session for orgID wired to r and h.
func (f *Factory) NewSession(ctx context.Context, orgID string, r Renderer, h Host) *Dispatcher {
	logger := f.Logger
	if logger == nil {
		logger = logging.Default()
	}

	profile := f.profile(ctx, orgID, logger)
	kb, err := f.knowledge(ctx, orgID, logger).Bind(profile)
	if err != nil {
		logger.Warn("chat: knowledge does not bind to profile, using defaults", "org_id", orgID, "error", err)
		kb = DefaultKnowledgeBase(profile)
	}

	return New(Options{
		Profile:        profile,
		Knowledge:      kb,
		SpecialOptions: DefaultOptionTable(profile),
		Renderer:       r,
		Host:           h,
		Recorder:       f.Recorder,
		Logger:         logger,
		Clock:          f.Clock,
		Location:       f.Location,
		GreetingDelay:  f.GreetingDelay,
		TypingDelay:    f.TypingDelay,
		NudgeInterval:  f.NudgeInterval,
	})
}

func (f *Factory) profile(ctx context.Context, orgID string, logger *logging.Logger) clinic.Profile {
	fallback := f.FallbackProfile
	if orgID != "" {
		fallback.OrgID = orgID
	}
	if f.Profiles == nil {
		return fallback
	}
	p, err := f.Profiles.GetOrDefault(ctx, orgID, fallback)
	if err != nil {
		logger.Warn("chat: profile lookup failed, using fallback", "org_id", orgID, "error", err)
		return fallback
	}
	return p
}

func (f *Factory) knowledge(ctx context.Context, orgID string, logger *logging.Logger) *KnowledgeBase {
	fallback := f.FallbackKnowledge
	if fallback == nil {
		kb, err := NewKnowledgeBase(DefaultKnowledge())
		if err != nil {
			panic(err)
		}
		fallback = kb
	}
	if f.Knowledge == nil {
		return fallback
	}

	entries, err := f.Knowledge.Get(ctx, orgID)
	if errors.Is(err, ErrKnowledgeNotFound) {
		return fallback
	}
	if err != nil {
		logger.Warn("chat: knowledge lookup failed, using fallback", "org_id", orgID, "error", err)
		return fallback
	}
	kb, err := NewKnowledgeBase(entries)
	if err != nil {
		logger.Warn("chat: stored knowledge invalid, using fallback", "org_id", orgID, "error", err)
		return fallback
	}
	return kb
}
