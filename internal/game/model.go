package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientGold     = errors.New("not enough gold")
	ErrInsufficientEnergy   = errors.New("not enough energy")
	ErrWrongLocation        = errors.New("you are not at the right location")
	ErrCooldown             = errors.New("action is on cooldown")
	ErrInventoryFull        = errors.New("inventory is full")
	ErrConflict             = errors.New("conflicting state")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, try again")
	ErrAlreadyRan           = errors.New("job already ran for this period")
)

// FieldError is an ErrInvalidInput carrying per-field messages.
type FieldError struct {
	Fields map[string][]string
}

func (e *FieldError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

func fieldError(field, msg string) error {
	return &FieldError{Fields: map[string][]string{field: {msg}}}
}

// renameField moves a field error reported under from to to.
func renameField(err error, from, to string) error {
	var fe *FieldError
	if !errors.As(err, &fe) {
		return err
	}
	msgs, ok := fe.Fields[from]
	if !ok {
		return err
	}
	return &FieldError{Fields: map[string][]string{to: msgs}}
}

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

var blockedNameFragments = []string{
	"admin",
	"moderator",
	"shit",
	"fuck",
	"bitch",
	"nazi",
}

func ValidateUsername(name string) error {
	name = strings.TrimSpace(name)
	if !usernameRE.MatchString(name) {
		return fieldError("username", "must be 3-24 letters, digits or underscores")
	}
	return validateEntityName(name)
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 || !strings.Contains(email[at:], ".") {
		return fieldError("email", "must be a valid email address")
	}
	return nil
}

// validateEntityName guards player-chosen names shown to others.
func validateEntityName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 48 {
		return fieldError("name", "must be 3-48 characters")
	}
	lower := strings.ToLower(name)
	for _, frag := range blockedNameFragments {
		if strings.Contains(lower, frag) {
			return fieldError("name", "contains a blocked word")
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
