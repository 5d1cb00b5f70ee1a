package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidLockFile, "package %d has no name", 3)

	if err.Code != ErrCodeInvalidLockFile {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidLockFile)
	}

	if err.Message != "package 3 has no name" {
		t.Errorf("Message = %v, want %v", err.Message, "package 3 has no name")
	}

	expected := "INVALID_LOCK_FILE: package 3 has no name"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("toml: line 3: expected '='")
	err := Wrap(ErrCodeInvalidProjectFile, cause, "could not read pyproject.toml")

	if err.Code != ErrCodeInvalidProjectFile {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidProjectFile)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeUnknownFormat, "Unknown file format"),
			code:     ErrCodeUnknownFormat,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeUnknownFormat, "Unknown file format"),
			code:     ErrCodeInvalidID,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeNetwork, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeNetwork,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("upload: %w", New(ErrCodeInvalidEncoding, "not ascii")),
			code:     ErrCodeInvalidEncoding,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeInvalidVersionSpec, "test"), ErrCodeInvalidVersionSpec},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeUnknownFormat, "Unrecognized structured file"), "Unrecognized structured file"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsUserError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeUnknownFormat, "x"), true},
		{New(ErrCodeInvalidLockFile, "x"), true},
		{New(ErrCodeInvalidEncoding, "x"), true},
		{New(ErrCodeInvalidID, "x"), false},
		{New(ErrCodeNetwork, "x"), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := IsUserError(tt.err); got != tt.want {
			t.Errorf("IsUserError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
