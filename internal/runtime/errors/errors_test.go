package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrModuleRequired", ErrModuleRequired, "shardwire: handler module is required"},
		{"ErrHandlerRequired", ErrHandlerRequired, "shardwire: handler function is required"},
		{"ErrCapabilitiesRequired", ErrCapabilitiesRequired, "shardwire: capabilities must be computed from a catalog"},
		{"ErrTargetStarted", ErrTargetStarted, "shardwire: target already started"},
		{"ErrMalformedDeclaration", ErrMalformedDeclaration, "shardwire: malformed handler declaration"},
		{"ErrSignatureMismatch", ErrSignatureMismatch, "shardwire: handler signature does not match event"},
		{"ErrLoadFailure", ErrLoadFailure, "shardwire: handler module could not be loaded"},
		{"ErrNegotiationFailure", ErrNegotiationFailure, "shardwire: gateway negotiation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestWrappedKindsMatch(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrMalformedDeclaration, ErrUnknownEvent)
	if !errors.Is(err, ErrMalformedDeclaration) || !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected both sentinels to match %v", err)
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "shardwire: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
