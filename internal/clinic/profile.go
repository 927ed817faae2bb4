// Package clinic holds the clinic profile the chat widget quotes and links to.
package clinic

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidProfile is returned when a profile is missing required fields.
var ErrInvalidProfile = errors.New("clinic: invalid profile")

// DefaultOrgID identifies the clinic the site ships with.
const DefaultOrgID = "diamond-smiles"

// Profile is the static clinic record used to build chat replies and commands.
// It is treated as read-only once handed to a chat session.
type Profile struct {
	OrgID   string `json:"org_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Hours   string `json:"hours,omitempty"`
	// OutreachMessage pre-fills the WhatsApp chat opened from the widget.
	OutreachMessage string `json:"outreach_message,omitempty"`
	MapURL          string `json:"map_url,omitempty"`
	// ContactPath is the site path of the contact page / web form.
	ContactPath string `json:"contact_path,omitempty"`
}

// DefaultProfile returns the Diamond Smiles clinic data.
func DefaultProfile(orgID string) Profile {
	if strings.TrimSpace(orgID) == "" {
		orgID = DefaultOrgID
	}
	return Profile{
		OrgID:           orgID,
		Name:            "Diamond Smiles",
		Phone:           "+573168866812",
		Email:           "dra.patriciamunozop@gmail.com",
		Address:         "Carrera 55 # 9-88 Camino Real, Cali",
		Hours:           "Mon-Fri: 8AM-6PM",
		OutreachMessage: "Hi, I'd like some information about your dental services",
		MapURL:          "https://maps.google.com/?q=Carrera+55+9-88+Camino+Real,+Cali,+Colombia",
		ContactPath:     "/pages/contacto.html",
	}
}

// Merge returns p with every non-empty field of o applied on top.
func (p Profile) Merge(o Profile) Profile {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&p.OrgID, o.OrgID)
	set(&p.Name, o.Name)
	set(&p.Phone, o.Phone)
	set(&p.Email, o.Email)
	set(&p.Address, o.Address)
	set(&p.Hours, o.Hours)
	set(&p.OutreachMessage, o.OutreachMessage)
	set(&p.MapURL, o.MapURL)
	set(&p.ContactPath, o.ContactPath)
	return p
}

// Validate checks the fields the chat flows cannot work without.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.OrgID) == "" {
		return fmt.Errorf("%w: org_id is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.PhoneDigits() == "" {
		return fmt.Errorf("%w: phone must contain digits", ErrInvalidProfile)
	}
	if p.MapURL != "" {
		u, err := url.Parse(p.MapURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: map_url must be an absolute URL", ErrInvalidProfile)
		}
	}
	return nil
}

// PhoneDigits strips everything but digits from the phone number.
func (p Profile) PhoneDigits() string {
	var b strings.Builder
	for _, r := range p.Phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppURL builds a wa.me link that opens a chat pre-filled with text.
func (p Profile) WhatsAppURL(text string) string {
	link := "https://wa.me/" + p.PhoneDigits()
	if text == "" {
		return link
	}
	// wa.me expects %20 rather than '+' for spaces.
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// DirectionsMessage is the WhatsApp text used when a visitor asks for directions.
func (p Profile) DirectionsMessage() string {
	return fmt.Sprintf("Hi! Could you send me the exact location of %s? I need directions to %s", p.Name, p.Address)
}
