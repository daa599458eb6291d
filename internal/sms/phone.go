package sms

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhoneNumber is returned when a phone number is not in E.164 form.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// Raw length bounds for a destination number, counted before trimming.
const (
	MinPhoneLength = 9
	MaxPhoneLength = 16
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// ValidateE164 checks a destination number and returns it trimmed. The raw
// input must be 9 to 16 characters long; the trimmed value must be a plus
// sign followed by 8 to 15 digits with no leading zero.
func ValidateE164(raw string) (string, error) {
	if n := utf8.RuneCountInString(raw); n < MinPhoneLength || n > MaxPhoneLength {
		return "", ErrInvalidPhoneNumber
	}
	normalized := strings.TrimSpace(raw)
	if !e164Pattern.MatchString(normalized) {
		return "", ErrInvalidPhoneNumber
	}
	return normalized, nil
}

// MaskPhone redacts a phone number for logging. Numbers of six characters or
// fewer keep their first two; longer ones keep the first four and last two.
// Characters are counted as runes, so untrusted input is never split mid-rune.
func MaskPhone(number string) string {
	r := []rune(number)
	if len(r) <= 6 {
		return string(r[:min(2, len(r))]) + "***"
	}
	return string(r[:4]) + "***" + string(r[len(r)-2:])
}

// PhoneCountry returns the ISO 3166-1 alpha-2 country code for an E.164
// phone number, or "" if parsing fails.
func PhoneCountry(phone string) string {
	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}

// IsAllowedCountry checks whether the phone's country matches one of the
// allowed country codes. An empty allowed list permits all.
func IsAllowedCountry(phone string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	region := PhoneCountry(phone)
	if region == "" {
		return false
	}
	for _, code := range allowed {
		if code == region {
			return true
		}
	}
	return false
}
