package canon

import (
	"regexp"
	"strings"
)

var reDigits = regexp.MustCompile(`\D`)

// State returns the two-letter USPS code for s. Full state names are
// abbreviated; anything unrecognized is returned upper-cased.
func State(s string) string {
	st := collapseSpaces(strings.ToUpper(strings.TrimSpace(s)))
	if len(st) > 2 {
		st = stateAbbrev(st)
	}
	return st
}

// Zip keeps the five-digit prefix of a ZIP or ZIP+4.
func Zip(z string) string {
	z = strings.TrimSpace(z)
	if i := strings.IndexByte(z, '-'); i >= 0 {
		z = z[:i]
	}
	if len(z) >= 5 {
		return z[:5]
	}
	return z
}

// Street collapses whitespace and title-cases an all-caps street line.
func Street(line string) string {
	s := collapseSpaces(line)
	if s != "" && s == strings.ToUpper(s) {
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		s = strings.Join(words, " ")
	}
	return s
}

// Digits strips everything but 0-9.
func Digits(s string) string {
	return reDigits.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stateAbbrev(s string) string {
	m := map[string]string{
		"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "DISTRICT OF COLUMBIA": "DC", "FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD", "MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS", "MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC", "SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
	}
	if v, ok := m[s]; ok {
		return v
	}
	return s
}
