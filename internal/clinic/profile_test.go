package clinic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfileIsValid(t *testing.T) {
	p := DefaultProfile("")
	require.NoError(t, p.Validate())
	assert.Equal(t, DefaultOrgID, p.OrgID)
	assert.Equal(t, "573168866812", p.PhoneDigits())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"missing org", func(p *Profile) { p.OrgID = " " }},
		{"missing name", func(p *Profile) { p.Name = "" }},
		{"phone without digits", func(p *Profile) { p.Phone = "call us" }},
		{"relative map url", func(p *Profile) { p.MapURL = "/maps" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile("org")
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
		})
	}
}

func TestMergeOnlyOverridesNonEmpty(t *testing.T) {
	base := DefaultProfile("org")
	merged := base.Merge(Profile{Name: "Bright Teeth", Phone: "  ", Hours: "Sat: 9AM-1PM"})

	assert.Equal(t, "Bright Teeth", merged.Name)
	assert.Equal(t, base.Phone, merged.Phone)
	assert.Equal(t, "Sat: 9AM-1PM", merged.Hours)
	assert.Equal(t, base.MapURL, merged.MapURL)
}

func TestWhatsAppURL(t *testing.T) {
	p := DefaultProfile("org")
	assert.Equal(t, "https://wa.me/573168866812", p.WhatsAppURL(""))
	assert.Equal(t, "https://wa.me/573168866812?text=hola%20%26%20adi%C3%B3s", p.WhatsAppURL("hola & adiós"))
}

