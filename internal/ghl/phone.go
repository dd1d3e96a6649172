package ghl

import (
	"strings"

	"github.com/yourorg/listing-sync/internal/canon"
	"github.com/yourorg/listing-sync/internal/listing"
)

// NormalizePhone returns the E.164 form of a US phone number. A 10-digit
// number gets +1, an 11-digit number starting with 1 gets +, and a value that
// already starts with + passes through. Sentinels and anything else yield
// ok=false so the payload carries null.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !listing.Known(raw) {
		return "", false
	}
	if strings.HasPrefix(raw, "+") {
		return raw, true
	}
	d := canon.Digits(raw)
	switch {
	case len(d) == 10:
		return "+1" + d, true
	case len(d) == 11 && d[0] == '1':
		return "+" + d, true
	}
	return "", false
}
