package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain error", cause, KindInternal},
		{"not found", NotFound("project %s not found", "p1"), KindNotFound},
		{"wrapped typed", fmt.Errorf("handler: %w", AlreadyExists("dup")), KindAlreadyExists},
		{"partial failure", Wrap(KindPartialFailure, cause, "approve"), KindPartialFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause, "failed to save project")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Error() != "failed to save project: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if MessageOf(err) != "failed to save project" {
		t.Errorf("MessageOf() = %q", MessageOf(err))
	}
}

func TestIs(t *testing.T) {
	err := Unauthorized("only the creator can update this project")

	if !Is(err, KindUnauthorized) {
		t.Error("Is(err, KindUnauthorized) should be true")
	}
	if Is(err, KindNotFound) {
		t.Error("Is(err, KindNotFound) should be false")
	}
	if Is(nil, KindInternal) {
		t.Error("Is(nil, ...) should be false")
	}
}
