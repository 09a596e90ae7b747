package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DefaultTimezone is the business timezone used when none is configured.
const DefaultTimezone = "America/El_Salvador"

// El Salvador has no DST, so a fixed offset is exact when tzdata is missing.
var fallbackLocation = time.FixedZone(DefaultTimezone, -6*60*60)

// LoadLocation resolves name, falling back to the business default for an
// empty name. An unknown name is an error.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == DefaultTimezone {
		return DefaultLocation(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DefaultLocation returns the business location.
func DefaultLocation() *time.Location {
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return fallbackLocation
}

var monthAbbrev = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// FormatDate renders t in loc as "5 mar 2024, 3:07 p. m.". A zero time
// yields the placeholder; a nil loc means the business location.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Placeholder
	}
	if loc == nil {
		loc = DefaultLocation()
	}
	t = t.In(loc)

	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "a. m."
	if t.Hour() >= 12 {
		meridiem = "p. m."
	}
	return fmt.Sprintf("%d %s %d, %d:%02d %s",
		t.Day(), monthAbbrev[t.Month()-1], t.Year(), hour, t.Minute(), meridiem)
}

// salvadorCode is the country dialing code prefixed to local numbers.
const salvadorCode = "503"

// NormalizePhoneForMessaging reduces a free-form phone number to the digits a
// messaging deep link expects. Numbers that fit no known local shape are
// returned as bare digits.
func NormalizePhoneForMessaging(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case digits == "":
		return ""
	case len(digits) == 8 && digits[0] != '0':
		return salvadorCode + digits
	case strings.HasPrefix(digits, salvadorCode):
		return digits
	case digits[0] == '0':
		return salvadorCode + digits[1:]
	default:
		return digits
	}
}

// isBlank reports whether s has no visible characters.
func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
