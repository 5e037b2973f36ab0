package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"loan-intake/internal/common/errors"
)

var (
	nonDigit        = regexp.MustCompile(`\D`)
	basicEmail      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	ipDomain        = regexp.MustCompile(`^[\d.]+$`)
	edgeSpecialChar = regexp.MustCompile(`^[._-]|[._-]$`)
)

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"yopmail.com":       {},
	"tempmail.com":      {},
	"guerrillamail.com": {},
	"throwawaymail.com": {},
	"10minutemail.com":  {},
	"mailnesia.com":     {},
	"trashmail.com":     {},
}

const (
	minAge = 18
	maxAge = 100
)

// Digits strips every non-digit rune.
func Digits(value string) string {
	return nonDigit.ReplaceAllString(value, "")
}

func nationalDigits(value string) string {
	return strings.TrimPrefix(Digits(value), "1")
}

// FormatPhoneNumber renders input as "(xxx) xxx-xxxx", formatting partial
// input progressively. A leading country code 1 is dropped.
func FormatPhoneNumber(value string) string {
	digits := nationalDigits(value)
	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return fmt.Sprintf("(%s) %s", digits[:3], digits[3:])
	default:
		end := len(digits)
		if end > 10 {
			end = 10
		}
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:end])
	}
}

// FormatE164 converts a US number to +1XXXXXXXXXX. Anything that does not
// reduce to exactly 10 national digits is rejected.
func FormatE164(phone string) (string, error) {
	digits := nationalDigits(phone)
	if len(digits) != 10 {
		return "", errors.NewPhoneFormatError(len(digits))
	}
	return "+1" + digits, nil
}

// ValidatePhone returns an error message or "" when phone is acceptable.
// Empty input is not an error.
func ValidatePhone(phone string) string {
	digits := Digits(phone)
	if len(digits) == 0 {
		return ""
	}
	if len(digits) != 10 {
		return "Please enter a valid 10-digit phone number"
	}
	return ""
}

// ValidateEmail returns an error message or "" when email is acceptable.
func ValidateEmail(email string) string {
	if strings.TrimSpace(email) == "" {
		return "Email address is required"
	}
	if !basicEmail.MatchString(email) {
		return "Please enter a valid email address"
	}
	if strings.Count(email, "@") != 1 {
		return "Email address should contain exactly one @ symbol"
	}

	parts := strings.Split(email, ".")
	if len(parts[len(parts)-1]) < 2 {
		return "Email address has an invalid domain extension"
	}

	at := strings.IndexByte(email, '@')
	local, domain := email[:at], strings.ToLower(email[at+1:])
	if _, ok := disposableDomains[domain]; ok {
		return "Please use a non-disposable email address"
	}
	if hasRepeatedSpecial(email) {
		return "Email address contains consecutive special characters"
	}
	if edgeSpecialChar.MatchString(local) {
		return "Email address contains special characters at invalid positions"
	}
	if ipDomain.MatchString(domain) {
		return "Email address cannot use an IP address as domain"
	}
	return ""
}

// hasRepeatedSpecial reports a run of the same '.', '_' or '-' character.
func hasRepeatedSpecial(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] && strings.IndexByte("._-", s[i]) >= 0 {
			return true
		}
	}
	return false
}

// ValidateBirthDate checks that date (YYYY-MM-DD) gives an age in [18, 100]
// on now's calendar day. Empty input is not an error.
func ValidateBirthDate(date string, now time.Time) string {
	if date == "" {
		return ""
	}
	birth, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "Please enter a valid birth date"
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}

	if age < minAge {
		return "You must be at least 18 years old"
	}
	if age > maxAge {
		return "Please enter a valid birth date"
	}
	return ""
}
