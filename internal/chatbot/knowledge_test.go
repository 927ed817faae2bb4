package chatbot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-chat/internal/clinic"
)

func TestNewKnowledgeBaseValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []KnowledgeEntry
		wantErr string
	}{
		{name: "empty", entries: nil, wantErr: "no topics"},
		{
			name:    "missing topic",
			entries: []KnowledgeEntry{{Triggers: []string{"a"}, Response: "r"}},
			wantErr: "has no topic",
		},
		{
			name: "duplicate topic",
			entries: []KnowledgeEntry{
				{Topic: "x", Triggers: []string{"a"}, Response: "r"},
				{Topic: "x", Triggers: []string{"b"}, Response: "r"},
			},
			wantErr: "duplicate topic",
		},
		{
			name:    "empty response",
			entries: []KnowledgeEntry{{Topic: "x", Triggers: []string{"a"}, Response: "  "}},
			wantErr: "empty response",
		},
		{
			name:    "no triggers",
			entries: []KnowledgeEntry{{Topic: "x", Response: "r"}},
			wantErr: "no triggers",
		},
		{
			name:    "blank trigger",
			entries: []KnowledgeEntry{{Topic: "x", Triggers: []string{"a", " "}, Response: "r"}},
			wantErr: "blank trigger",
		},
		{
			name: "trigger reused across topics",
			entries: []KnowledgeEntry{
				{Topic: "x", Triggers: []string{"Cita"}, Response: "r"},
				{Topic: "y", Triggers: []string{"cita "}, Response: "r"},
			},
			wantErr: `trigger "cita" used by "x" and "y"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb, err := NewKnowledgeBase(tt.entries)
			require.Error(t, err)
			assert.Nil(t, kb)
			assert.True(t, errors.Is(err, ErrInvalidKnowledge))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewKnowledgeBaseNormalizesTriggers(t *testing.T) {
	kb, err := NewKnowledgeBase([]KnowledgeEntry{
		{Topic: " hours ", Triggers: []string{"  Horario ", "OPEN"}, Response: "r"},
	})
	require.NoError(t, err)

	entries := kb.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hours", entries[0].Topic)
	assert.Equal(t, []string{"horario", "open"}, entries[0].Triggers)
}

func TestDefaultKnowledgeIsValidAndOrdered(t *testing.T) {
	kb, err := NewKnowledgeBase(DefaultKnowledge())
	require.NoError(t, err)
	assert.Equal(t, []string{"services", "pricing", "appointments", "location", "emergencies"}, kb.Topics())
	assert.Equal(t, 5, kb.Len())
	assert.Empty(t, kb.Shadowed())
}

func TestMatch(t *testing.T) {
	kb := DefaultKnowledgeBase(clinic.DefaultProfile("org"))

	tests := []struct {
		input string
		topic string
	}{
		{"What SERVICES do you offer?", "services"},
		{"¿Cuánto cuesta un blanqueamiento?", "pricing"},
		{"quiero agendar", "appointments"},
		{"Book appointment", "appointments"},
		{"¿Dónde están?", "location"},
		{"me duele una muela", "emergencies"},
		{"HOW MUCH for implants, where are you?", "pricing"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := kb.Match(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.topic, got.Topic)
		})
	}

	for _, miss := range []string{"", "asdkjasnd", "More info", "Not urgent"} {
		_, ok := kb.Match(miss)
		assert.False(t, ok, "expected no match for %q", miss)
	}
}

func TestBindRendersProfile(t *testing.T) {
	p := clinic.DefaultProfile("org")
	kb := DefaultKnowledgeBase(p)

	for _, e := range kb.Entries() {
		assert.NotContains(t, e.Response, "{{", "topic %s left a template action", e.Topic)
	}
	emergencies, ok := kb.Match("emergency")
	require.True(t, ok)
	assert.Contains(t, emergencies.Response, p.Phone)

	location, ok := kb.Match("address")
	require.True(t, ok)
	assert.Contains(t, location.Response, p.Address)
	assert.Contains(t, location.Response, p.Hours)
}

func TestBindRejectsUnknownFields(t *testing.T) {
	kb, err := NewKnowledgeBase([]KnowledgeEntry{
		{Topic: "x", Triggers: []string{"a"}, Response: "Fax: {{.Fax}}"},
	})
	require.NoError(t, err)

	_, err = kb.Bind(clinic.DefaultProfile("org"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKnowledge))

	kb, err = NewKnowledgeBase([]KnowledgeEntry{
		{Topic: "x", Triggers: []string{"a"}, Response: "{{.Phone"},
	})
	require.NoError(t, err)
	_, err = kb.Bind(clinic.DefaultProfile("org"))
	assert.True(t, errors.Is(err, ErrInvalidKnowledge))
}

func TestEntriesReturnsCopy(t *testing.T) {
	kb := DefaultKnowledgeBase(clinic.DefaultProfile("org"))

	entries := kb.Entries()
	entries[0].Triggers[0] = "mutated"
	entries[0].Options[0] = "mutated"

	fresh := kb.Entries()
	assert.Equal(t, "services", fresh[0].Triggers[0])
	assert.Equal(t, "Aesthetic dentistry", fresh[0].Options[0])
}

func TestShadowedReportsUnreachableTriggers(t *testing.T) {
	kb, err := NewKnowledgeBase([]KnowledgeEntry{
		{Topic: "pain", Triggers: []string{"dolor"}, Response: "r"},
		{Topic: "muscles", Triggers: []string{"dolores musculares", "espalda"}, Response: "r"},
		{Topic: "teeth", Triggers: []string{"muela"}, Response: "r"},
	})
	require.NoError(t, err)

	assert.Equal(t, []Shadow{
		{Topic: "muscles", Trigger: "dolores musculares", ShadowedBy: "pain", ByTrigger: "dolor"},
	}, kb.Shadowed())

	got, ok := kb.Match("tengo dolores musculares")
	require.True(t, ok)
	assert.Equal(t, "pain", got.Topic)
}

func TestLoadKnowledgeYAML(t *testing.T) {
	doc := `
topics:
  - topic: hours
    triggers: [horario, hours, "open"]
    response: "We are open {{.Hours}}."
    options: [Call]
  - topic: insurance
    triggers:
      - seguro
      - insurance
    response: We accept most plans.
`
	kb, err := LoadKnowledgeYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"hours", "insurance"}, kb.Topics())

	bound, err := kb.Bind(clinic.DefaultProfile("org"))
	require.NoError(t, err)
	got, ok := bound.Match("What are your HOURS?")
	require.True(t, ok)
	assert.Equal(t, "We are open Mon-Fri: 8AM-6PM.", got.Response)
	assert.Equal(t, []string{"Call"}, got.Options)
}

func TestLoadKnowledgeYAMLErrors(t *testing.T) {
	_, err := LoadKnowledgeYAML(strings.NewReader("topics:\n  - topic: x\n    keywords: [a]\n    response: r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse knowledge yaml")

	_, err = LoadKnowledgeYAML(strings.NewReader("topics: []\n"))
	assert.True(t, errors.Is(err, ErrInvalidKnowledge))
}

func TestLoadKnowledgeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("topics:\n  - topic: x\n    triggers: [hola]\n    response: hi\n"), 0o600))

	kb, err := LoadKnowledgeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Len())

	_, err = LoadKnowledgeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open knowledge file")
}
