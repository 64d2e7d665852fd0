package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"aldric_77", true},
		{"Bram", true},
		{"ab", false},
		{"with space", false},
		{"admin_guy", false},
		{"averyveryverylongusername_x", false},
	}
	for _, tc := range tests {
		err := ValidateUsername(tc.name)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"a@b.co", "maud.reeve@kingsport.example"} {
		if err := ValidateEmail(email); err != nil {
			t.Fatalf("%q: %v", email, err)
		}
	}
	for _, email := range []string{"", "nobody", "@b.co", "a@b", "a@@b.co", "a@b.co@"} {
		if err := ValidateEmail(email); err == nil {
			t.Fatalf("%q: expected error", email)
		}
	}
}

func TestFieldErrorUnwrapsToInvalidInput(t *testing.T) {
	err := fieldError("stake", "must be between 10 and 1000")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("field error should match ErrInvalidInput")
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Fields["stake"][0] != "must be between 10 and 1000" {
		t.Fatalf("unexpected fields %+v", fe)
	}
}

func TestRenameField(t *testing.T) {
	err := renameField(validateEntityName("no"), "name", "religion_name")
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected field error, got %v", err)
	}
	if _, ok := fe.Fields["religion_name"]; !ok {
		t.Fatalf("field not renamed: %+v", fe.Fields)
	}
	if _, ok := fe.Fields["name"]; ok {
		t.Fatalf("old field kept: %+v", fe.Fields)
	}

	plain := errors.New("boom")
	if got := renameField(plain, "name", "x"); got != plain {
		t.Fatalf("non-field errors must pass through")
	}
	if renameField(nil, "name", "x") != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestOptionalKeepsRealErrors(t *testing.T) {
	if err := optional(nil); err != nil {
		t.Fatalf("nil became %v", err)
	}
	if err := optional(pgx.ErrNoRows); err != nil {
		t.Fatalf("a missing row is not an error, got %v", err)
	}
	if err := optional(fmt.Errorf("scan: %w", pgx.ErrNoRows)); err != nil {
		t.Fatalf("a wrapped missing row is not an error, got %v", err)
	}
	boom := errors.New("connection reset")
	if err := optional(boom); !errors.Is(err, boom) {
		t.Fatalf("lost the real error: %v", err)
	}
}
