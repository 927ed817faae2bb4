package chatbot

import (
	"fmt"

	"github.com/wolfman30/clinic-chat/internal/clinic"
)

// GreetingOptions are offered with the welcome message on first open.
var GreetingOptions = []string{"Services", "Book appointment", "Pricing", "Location"}

// FallbackOptions are offered when nothing matched the visitor's input.
var FallbackOptions = []string{"WhatsApp", "Call", "More services"}

const fallbackText = "🤔 Let me connect you with our team for better information.\n\nDo you prefer WhatsApp or a call?"

func greetingText(p clinic.Profile) string {
	return fmt.Sprintf("Hi! 👋 I'm the virtual assistant of %s.\n\nWhat can I help you with?", p.Name)
}

// DefaultKnowledge returns the stock topics of the clinic site. Triggers cover
// English and Spanish visitors.
func DefaultKnowledge() []KnowledgeEntry {
	return []KnowledgeEntry{
		{
			Topic:    "services",
			Triggers: []string{"services", "treatments", "specialties", "what do you do", "servicios", "tratamientos", "que hacen", "especialidades"},
			Response: "🦷 Our main services:\n\n• Aesthetic dentistry\n• Implantology\n• Orthodontics\n• General dentistry\n\nAre you interested in any of them?",
			Options:  []string{"Aesthetic dentistry", "Implants", "Orthodontics", "More info"},
		},
		{
			Topic:    "pricing",
			Triggers: []string{"price", "pricing", "cost", "how much", "rates", "precio", "costo", "cuesta", "cuánto", "cuanto", "tarifa"},
			Response: "💰 Prices are tailored to each treatment.\n\n✨ Book a personalized consultation!\n\nShall we schedule an evaluation?",
			Options:  []string{"Personalized consultation", "Call now", "WhatsApp"},
		},
		{
			Topic:    "appointments",
			Triggers: []string{"appointment", "book", "schedule", "reserve", "cita", "agendar", "reservar", "turno"},
			Response: "📅 Book your appointment:\n\n📱 WhatsApp (fastest)\n📞 {{.Phone}}\n💻 Web form\n\n⏰ {{.Hours}}",
			Options:  []string{"WhatsApp", "Call", "Form"},
		},
		{
			Topic:    "location",
			Triggers: []string{"location", "where", "address", "directions", "how to get", "donde", "dónde", "ubicacion", "ubicación", "direccion", "dirección", "como llegar"},
			Response: "📍 You can find us at:\n\n🏥 {{.Address}}\n\n🚗 Easy access\n🕒 {{.Hours}}\n\nHow would you like to get here?",
			Options:  []string{"View on Google Maps", "Contact page", "WhatsApp directions", "Call"},
		},
		{
			Topic:    "emergencies",
			Triggers: []string{"emergency", "pain", "hurts", "toothache", "urgencia", "emergencia", "dolor", "duele"},
			Response: "🚨 Emergencies:\n\n📞 CALL: {{.Phone}}\n💬 WhatsApp 24/7\n\n⚡ Urgent care available",
			Options:  []string{"Call URGENT", "WhatsApp", "Symptoms"},
		},
	}
}

// DefaultKnowledgeBase returns the stock topics bound to the given profile.
func DefaultKnowledgeBase(p clinic.Profile) *KnowledgeBase {
	kb, err := NewKnowledgeBase(DefaultKnowledge())
	if err != nil {
		panic(err)
	}
	bound, err := kb.Bind(p)
	if err != nil {
		panic(err)
	}
	return bound
}
