package models

import (
	"regexp"
	"strings"

	"mpesa-gateway/internal/status"
)

var msisdnPattern = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhoneNumber converts a subscriber number to the 254XXXXXXXXX
// form Daraja expects. Accepted inputs are numbers already in that form
// (with or without a leading +) and local 10-digit numbers with a leading
// zero (07..., 01...). Anything else is rejected.
func NormalizePhoneNumber(phone string) (string, error) {
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, " ", "")

	switch {
	case msisdnPattern.MatchString(phone):
		return phone, nil
	case strings.HasPrefix(phone, "0") && len(phone) == 10 && isDigits(phone):
		return "254" + phone[1:], nil
	default:
		return "", status.ErrInvalidPhoneNumber
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
