package errors

import (
	"errors"
	"fmt"
	"testing"
)

// TestCodeOf verifies code extraction through wrapping
func TestCodeOf(t *testing.T) {
	base := New(CodeCommandNotFound, "no such command")
	wrapped := fmt.Errorf("dispatch: %w", base)

	code, ok := CodeOf(wrapped)
	if !ok {
		t.Fatal("expected a code")
	}
	if code != CodeCommandNotFound {
		t.Errorf("CodeOf = %s, want %s", code, CodeCommandNotFound)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("expected no code on a plain error")
	}
}

// TestHasCode verifies code matching
func TestHasCode(t *testing.T) {
	err := Newf(CodeProviderNotFound, "no adapter registered for %q", "matrix")
	if !HasCode(err, CodeProviderNotFound) {
		t.Error("expected HasCode to match")
	}
	if HasCode(err, CodeCommandNotFound) {
		t.Error("expected HasCode to reject a different code")
	}
}

// TestWrapUnwrap verifies the cause chain survives wrapping
func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeClientNotProvided, "client unavailable", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() == "" {
		t.Error("expected a message")
	}
}

// TestWith verifies metadata accumulation
func TestWith(t *testing.T) {
	err := New(CodeInvalidContent, "bad payload").
		With("provider", "telegram").
		With("kind", "document")

	if err.Meta["provider"] != "telegram" || err.Meta["kind"] != "document" {
		t.Errorf("unexpected meta: %v", err.Meta)
	}
}
