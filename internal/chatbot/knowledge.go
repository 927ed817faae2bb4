package chatbot

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/wolfman30/clinic-chat/internal/clinic"
)

// ErrInvalidKnowledge is returned when a knowledge base breaks its invariants.
var ErrInvalidKnowledge = errors.New("chatbot: invalid knowledge base")

// KnowledgeEntry is one topic: the trigger keywords that select it, the reply
// and the follow-up options shown under the reply, in display order.
//
// Response is a text/template rendered against the clinic profile, e.g.
// "Call us at {{.Phone}}".
type KnowledgeEntry struct {
	Topic    string   `json:"topic" yaml:"topic"`
	Triggers []string `json:"triggers" yaml:"triggers"`
	Response string   `json:"response" yaml:"response"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// KnowledgeBase is an ordered, immutable list of topics. Order is match order.
type KnowledgeBase struct {
	entries []KnowledgeEntry
}

// NewKnowledgeBase validates entries and builds a knowledge base. Triggers are
// lowercased and trimmed; every entry needs a topic, a response and at least
// one trigger, and no trigger may appear twice in the whole base.
func NewKnowledgeBase(entries []KnowledgeEntry) (*KnowledgeBase, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrInvalidKnowledge)
	}
	topics := make(map[string]struct{}, len(entries))
	triggers := make(map[string]string)
	out := make([]KnowledgeEntry, 0, len(entries))

	for i, e := range entries {
		topic := strings.TrimSpace(e.Topic)
		if topic == "" {
			return nil, fmt.Errorf("%w: entry %d has no topic", ErrInvalidKnowledge, i)
		}
		if _, dup := topics[topic]; dup {
			return nil, fmt.Errorf("%w: duplicate topic %q", ErrInvalidKnowledge, topic)
		}
		topics[topic] = struct{}{}

		if strings.TrimSpace(e.Response) == "" {
			return nil, fmt.Errorf("%w: topic %q has an empty response", ErrInvalidKnowledge, topic)
		}
		if len(e.Triggers) == 0 {
			return nil, fmt.Errorf("%w: topic %q has no triggers", ErrInvalidKnowledge, topic)
		}

		normalized := make([]string, 0, len(e.Triggers))
		for _, t := range e.Triggers {
			t = normalizeTrigger(t)
			if t == "" {
				return nil, fmt.Errorf("%w: topic %q has a blank trigger", ErrInvalidKnowledge, topic)
			}
			if owner, dup := triggers[t]; dup {
				return nil, fmt.Errorf("%w: trigger %q used by %q and %q", ErrInvalidKnowledge, t, owner, topic)
			}
			triggers[t] = topic
			normalized = append(normalized, t)
		}

		out = append(out, KnowledgeEntry{
			Topic:    topic,
			Triggers: normalized,
			Response: e.Response,
			Options:  cloneStrings(e.Options),
		})
	}
	return &KnowledgeBase{entries: out}, nil
}

func normalizeTrigger(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Bind renders every response template against the clinic profile and returns
// the resulting knowledge base.
func (kb *KnowledgeBase) Bind(p clinic.Profile) (*KnowledgeBase, error) {
	bound := make([]KnowledgeEntry, len(kb.entries))
	for i, e := range kb.entries {
		tmpl, err := template.New(e.Topic).Option("missingkey=error").Parse(e.Response)
		if err != nil {
			return nil, fmt.Errorf("%w: topic %q: %v", ErrInvalidKnowledge, e.Topic, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, p); err != nil {
			return nil, fmt.Errorf("%w: topic %q: %v", ErrInvalidKnowledge, e.Topic, err)
		}
		e.Triggers = cloneStrings(e.Triggers)
		e.Options = cloneStrings(e.Options)
		e.Response = sb.String()
		bound[i] = e
	}
	return &KnowledgeBase{entries: bound}, nil
}

// Match lowercases input and returns the first entry, in base order, that has
// any trigger contained in it. There is no scoring: earlier topics win.
func (kb *KnowledgeBase) Match(input string) (KnowledgeEntry, bool) {
	normalized := strings.ToLower(input)
	for _, e := range kb.entries {
		for _, t := range e.Triggers {
			if strings.Contains(normalized, t) {
				return e, true
			}
		}
	}
	return KnowledgeEntry{}, false
}

// Entries returns a copy of the topics in order.
func (kb *KnowledgeBase) Entries() []KnowledgeEntry {
	out := make([]KnowledgeEntry, len(kb.entries))
	for i, e := range kb.entries {
		e.Triggers = cloneStrings(e.Triggers)
		e.Options = cloneStrings(e.Options)
		out[i] = e
	}
	return out
}

// Topics lists topic names in match order.
func (kb *KnowledgeBase) Topics() []string {
	out := make([]string, len(kb.entries))
	for i, e := range kb.entries {
		out[i] = e.Topic
	}
	return out
}

// Len returns the number of topics.
func (kb *KnowledgeBase) Len() int { return len(kb.entries) }

// Shadow reports a trigger that can never select its topic because an earlier
// topic's trigger is a substring of it.
type Shadow struct {
	Topic      string `json:"topic"`
	Trigger    string `json:"trigger"`
	ShadowedBy string `json:"shadowed_by"`
	ByTrigger  string `json:"by_trigger"`
}

// Shadowed lists every shadowed trigger. Matching is left as is; this is a
// diagnostic for whoever maintains the topic order.
func (kb *KnowledgeBase) Shadowed() []Shadow {
	var out []Shadow
	for j := 1; j < len(kb.entries); j++ {
		later := kb.entries[j]
		for _, t := range later.Triggers {
			if s, ok := kb.firstShadow(j, t); ok {
				s.Topic = later.Topic
				out = append(out, s)
			}
		}
	}
	return out
}

func (kb *KnowledgeBase) firstShadow(before int, trigger string) (Shadow, bool) {
	for i := 0; i < before; i++ {
		for _, earlier := range kb.entries[i].Triggers {
			if strings.Contains(trigger, earlier) {
				return Shadow{Trigger: trigger, ShadowedBy: kb.entries[i].Topic, ByTrigger: earlier}, true
			}
		}
	}
	return Shadow{}, false
}
