package service

import (
	"strings"
	"time"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// AgeOfMajority is the age from which a person may be a guardian or answer for themselves.
const AgeOfMajority = 18

// AgeOn returns the completed years between birth and today, comparing calendar
// year, month and day. A person born on February 29 completes a year on March 1
// in non-leap years.
func AgeOn(birth models.Date, today time.Time) int {
	by, bm, bd := birth.Time.Date()
	ty, tm, td := today.Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	return age
}

// IsAdult reports whether a person born on birth is of age on today. An unset
// birth date is never adult.
func IsAdult(birth models.Date, today time.Time) bool {
	if !birth.IsSet() {
		return false
	}
	return AgeOn(birth, today) >= AgeOfMajority
}

// CleanDocument keeps only the digits of a document number.
func CleanDocument(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail trims and lowercases an e-mail for comparisons.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
