// Package contact normalizes tenant phone numbers and builds WhatsApp links.
package contact

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalizer parses numbers written in local or international format.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer that assumes region (ISO 3166 alpha-2)
// for numbers without a country code.
func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "ID"
	}
	return Normalizer{region: region}
}

// Normalize returns the E.164 form of raw.
func (n Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	if strings.ContainsAny(raw, "@") {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// WhatsAppLink returns a click-to-chat link for an E.164 number, or "" when
// the number cannot be normalized.
func (n Normalizer) WhatsAppLink(phone string) string {
	e164, err := n.Normalize(phone)
	if err != nil {
		return ""
	}
	return "https://wa.me/" + strings.TrimPrefix(e164, "+")
}
