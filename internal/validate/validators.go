// Package validate holds the field validation rules for registration
// forms. Every function is pure: invalid input yields false or an
// error value, never a panic.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// MaxImageBytes is the upload size cap for avatar source photos.
const MaxImageBytes = 5 * 1024 * 1024

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Phone numbers that look syntactically fine but are known placeholders.
var placeholderPhones = map[string]bool{
	"9999999999": true,
	"1231231234": true,
	"1111111111": true,
	"2222222222": true,
}

// ValidPhoneNumber reports whether the input is a plausible 10-digit
// phone number. Formatting characters are stripped first; the cleaned
// number is then checked against a blacklist of throwaway patterns
// (all-same-digit, sequential runs, repeating pairs and blocks,
// alternating digits, known placeholders).
func ValidPhoneNumber(input string) bool {
	phone := stripNonDigits(input)
	if len(phone) != 10 {
		return false
	}

	switch {
	case allSameDigit(phone),
		phone == "1234567890",
		phone == "0987654321",
		phone == "0123456789",
		repeatedPair(phone),
		leadingRun(phone) >= 7,
		alternatingPair(phone),
		placeholderPhones[phone]:
		return false
	}

	if strings.HasPrefix(phone, "000") || strings.HasPrefix(phone, "111") {
		return false
	}
	return true
}

// ValidEmail performs an RFC-light shape check: a non-space local
// part, an "@", and a domain containing a dot.
func ValidEmail(input string) bool {
	return emailPattern.MatchString(input)
}

// CalculateAge returns the number of complete years between birth and
// today, accounting for a birthday that has not yet occurred this year.
func CalculateAge(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() ||
		(today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

// ValidDateOfBirth reports whether the input is an acceptable date of
// birth at time now. The input is parsed as a plain YYYY-MM-DD
// calendar date with no timezone shift. Dates in the future, more than
// 100 years in the past, or yielding an age under 10 are rejected.
func ValidDateOfBirth(input string, now time.Time) bool {
	birth, err := time.ParseInLocation("2006-01-02", input, now.Location())
	if err != nil {
		return false
	}

	minDate := time.Date(now.Year()-100, now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if birth.After(now) || birth.Before(minDate) {
		return false
	}
	return CalculateAge(birth, now) >= 10
}

// CapitalizeProperName trims the input, lowercases it, and uppercases
// only the first character. Empty input yields an empty string.
// Examples: "john" -> "John", "DOE" -> "Doe", "mCdONALD" -> "Mcdonald".
func CapitalizeProperName(input string) string {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ValidImageFile checks an uploaded avatar source image by MIME type
// and size. A nil error means the file is acceptable.
func ValidImageFile(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return errors.New("please upload a valid image file (JPG, PNG, etc.)")
	}
	if size > MaxImageBytes {
		return fmt.Errorf("image file is too large, the limit is %d MB", MaxImageBytes/(1024*1024))
	}
	return nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// repeatedPair reports whether the number is one two-digit pair
// repeated five times, e.g. "1212121212" or "4747474747".
func repeatedPair(s string) bool {
	pair := s[:2]
	for i := 2; i < len(s); i += 2 {
		if s[i:i+2] != pair {
			return false
		}
	}
	return true
}

// leadingRun returns the length of the run of the first digit at the
// start of the number.
func leadingRun(s string) int {
	n := 1
	for n < len(s) && s[n] == s[0] {
		n++
	}
	return n
}

// alternatingPair reports whether the digits strictly alternate
// between two values across the whole number, e.g. "3434343434".
func alternatingPair(s string) bool {
	for i := 2; i < len(s); i++ {
		if s[i] != s[i-2] {
			return false
		}
	}
	return true
}
