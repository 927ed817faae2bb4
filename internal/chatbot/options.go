package chatbot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/clinic-chat/internal/clinic"
)

// CommandKind names a side effect carried out by the host page.
type CommandKind string

const (
	CommandOpenExternalLink CommandKind = "open_external_link"
	CommandNavigate         CommandKind = "navigate"
	CommandInvokeDialer     CommandKind = "invoke_dialer"
)

// Command is an instruction for the host. The dispatcher issues it and never
// checks whether it succeeded.
type Command struct {
	Kind   CommandKind `json:"kind"`
	Target string      `json:"target"`
}

// SpecialOption is an action label resolved by exact match before any keyword
// matching. Command is nil for options that only reply.
type SpecialOption struct {
	Labels  []string
	Command *Command
	Reply   string
	Options []string
}

// OptionTable maps normalized labels to special options.
type OptionTable struct {
	byLabel map[string]SpecialOption
}

// NewOptionTable indexes options by every label, lowercased and trimmed.
func NewOptionTable(opts []SpecialOption) (*OptionTable, error) {
	t := &OptionTable{byLabel: make(map[string]SpecialOption)}
	for _, o := range opts {
		if strings.TrimSpace(o.Reply) == "" {
			return nil, fmt.Errorf("chatbot: special option %v has an empty reply", o.Labels)
		}
		for _, label := range o.Labels {
			key := normalizeLabel(label)
			if key == "" {
				return nil, fmt.Errorf("chatbot: special option %v has a blank label", o.Labels)
			}
			if _, dup := t.byLabel[key]; dup {
				return nil, fmt.Errorf("chatbot: duplicate special option label %q", key)
			}
			t.byLabel[key] = o
		}
	}
	return t, nil
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Lookup finds the option for label, ignoring case and surrounding space.
func (t *OptionTable) Lookup(label string) (SpecialOption, bool) {
	o, ok := t.byLabel[normalizeLabel(label)]
	return o, ok
}

// Labels returns the normalized labels, sorted.
func (t *OptionTable) Labels() []string {
	out := make([]string, 0, len(t.byLabel))
	for k := range t.byLabel {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultOptionTable builds the clinic site's action labels for profile p.
func DefaultOptionTable(p clinic.Profile) *OptionTable {
	t, err := NewOptionTable(DefaultSpecialOptions(p))
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultSpecialOptions lists the stock action labels with Spanish aliases.
func DefaultSpecialOptions(p clinic.Profile) []SpecialOption {
	return []SpecialOption{
		{
			Labels:  []string{"View on Google Maps", "Google Maps", "Ver en Google Maps"},
			Command: &Command{Kind: CommandOpenExternalLink, Target: p.MapURL},
			Reply:   "🗺️ Opening Google Maps...\n\nDo you need anything else?",
			Options: []string{"WhatsApp", "Call", "Contact page", "More services"},
		},
		{
			Labels:  []string{"Contact page", "Página de contacto", "Pagina de contacto"},
			Command: &Command{Kind: CommandNavigate, Target: p.ContactPath},
			Reply:   "📋 Opening the contact page with the interactive map...\n\nCan I help you with anything else?",
			Options: []string{"WhatsApp", "Call", "More services"},
		},
		{
			Labels:  []string{"WhatsApp directions", "Indicaciones WhatsApp"},
			Command: &Command{Kind: CommandOpenExternalLink, Target: p.WhatsAppURL(p.DirectionsMessage())},
			Reply:   "📱 Sending the location over WhatsApp...\n\nAnything else I can help you with?",
			Options: []string{"Book appointment", "More services"},
		},
		{
			Labels:  []string{"WhatsApp"},
			Command: &Command{Kind: CommandOpenExternalLink, Target: p.WhatsAppURL(p.OutreachMessage)},
			Reply:   "💬 Opening WhatsApp...\n\nWe'll be right with you!",
		},
		{
			Labels:  []string{"Call", "Call now", "Call URGENT", "Llamar", "Llamar ahora", "Llamar urgente"},
			Command: &Command{Kind: CommandInvokeDialer, Target: p.Phone},
			Reply:   "📞 Starting the call...\n\nWe look forward to hearing from you!",
		},
		{
			Labels:  []string{"Form", "Web form", "Formulario", "Formulario web"},
			Command: &Command{Kind: CommandNavigate, Target: p.ContactPath},
			Reply:   "📝 Opening the contact form...",
		},
		{
			Labels:  []string{"Aesthetic dentistry", "Estética dental", "Estetica dental"},
			Reply:   "✨ Aesthetic dentistry:\n\n• Professional whitening\n• Porcelain veneers\n• Smile design\n• Aesthetic resins\n\nAre you interested in a specific treatment?",
			Options: []string{"Whitening", "Veneers", "Smile design", "Book consultation"},
		},
		{
			Labels:  []string{"Implants", "Implantology", "Implantes", "Implantología"},
			Reply:   "🦷 Implantology:\n\n• Single implants\n• Implant-supported prostheses\n• All-on-4\n• Immediate loading\n\nDo you need to replace a tooth?",
			Options: []string{"Single tooth", "Several teeth", "All-on-4", "Evaluation consultation"},
		},
		{
			Labels:  []string{"Orthodontics", "Ortodoncia"},
			Reply:   "🦷 Orthodontics:\n\n• Metal braces\n• Aesthetic braces\n• Invisalign\n• Interceptive orthodontics\n\nWhich kind of treatment are you interested in?",
			Options: []string{"Invisible braces", "Invisalign", "For kids", "Evaluation consultation"},
		},
		{
			Labels:  []string{"More services", "Más servicios", "Mas servicios", "More info", "Más info", "Mas info"},
			Reply:   "🦷 Other services:\n\n• Endodontics\n• Oral surgery\n• Periodontics\n• Pediatric dentistry\n• Prophylaxis\n\nAre you interested in any of them?",
			Options: []string{"Endodontics", "Oral surgery", "Dental cleaning", "Kids"},
		},
		{
			Labels:  []string{"Personalized consultation", "Evaluation consultation", "Book consultation", "Consulta personalizada", "Consulta evaluación", "Agendar consulta"},
			Reply:   "📅 Great! Book your personalized consultation:\n\n✨ First consultation FREE\n📋 Full evaluation\n💡 Treatment plan\n\nHow would you like to book?",
			Options: []string{"WhatsApp", "Call", "Web form"},
		},
		{
			Labels:  []string{"Symptoms", "Síntomas", "Sintomas"},
			Reply:   "🚨 Dental emergency symptoms:\n\n• Intense pain\n• Facial swelling\n• Heavy bleeding\n• Dental trauma\n• Fractured tooth\n\nDo you have any of these?",
			Options: []string{"Yes, it's urgent", "Not urgent", "Call now", "WhatsApp"},
		},
	}
}
