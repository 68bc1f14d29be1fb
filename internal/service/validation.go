package service

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"library-service/internal/apperror"
	"library-service/internal/models"

	"github.com/google/uuid"
)

const passwordSymbols = "!@#$%^&*()_+~`|}{[]:;?><,./-="

func isUUID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// canonicalID returns id in the lower-case hyphenated form the database
// returns, or id unchanged when it is not a UUID.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return parsed.String()
}

// validateSort checks every named sort parameter, reporting all bad ones.
func validateSort(orders map[string]models.SortOrder) error {
	var problems []string
	for name, order := range orders {
		if !order.Valid() {
			problems = append(problems, fmt.Sprintf("%s must be 'asc' or 'desc'", name))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return apperror.NewValidation("Invalid sort parameter.", problems...)
}

// validateEmail returns a reason the address is malformed, or "".
func validateEmail(email string) string {
	at := strings.Index(email, "@")
	lastDot := strings.LastIndex(email, ".")

	switch {
	case at < 0:
		return "Email must contain '@' symbol and it cannot be the first character."
	case at == 0:
		return "Email must contain valid characters before '@'."
	case lastDot < at:
		return "Email must contain '.' after '@'."
	case lastDot == at+1:
		return "Email must contain valid characters between '@' and '.'."
	case lastDot == len(email)-1:
		return "Email must have valid characters after the last '.'."
	}
	return ""
}

// validatePassword returns the first strength rule password breaks, or "".
func validatePassword(password string) string {
	if utf8.RuneCountInString(password) < 8 {
		return "Password must be at least 8 characters long."
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return "Password must contain an uppercase letter."
	case !lower:
		return "Password must contain a lowercase letter."
	case !digit:
		return "Password must contain a number."
	case !symbol:
		return "Password must contain a symbol."
	}
	return ""
}
