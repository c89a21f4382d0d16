package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeImport, "bad row: %d", 3)

	if err.Code != ErrCodeImport {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeImport)
	}

	if err.Message != "bad row: 3" {
		t.Errorf("Message = %v, want %v", err.Message, "bad row: 3")
	}

	expected := "IMPORT_ERROR: bad row: 3"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeLegalize, cause, "region 2")

	if err.Code != ErrCodeLegalize {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeLegalize)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
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
			err:      New(ErrCodeDiverged, "test"),
			code:     ErrCodeDiverged,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeDiverged, "test"),
			code:     ErrCodeLegalize,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeCapacity, New(ErrCodeImport, "inner"), "outer"),
			code:     ErrCodeCapacity,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeImport,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeImport,
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
		{
			name:     "Error type",
			err:      New(ErrCodeConsistency, "test"),
			expected: ErrCodeConsistency,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
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
		{
			name:     "Error type",
			err:      New(ErrCodeImport, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeImport,
		ErrCodeImportRow,
		ErrCodeImportNode,
		ErrCodeImportPin,
		ErrCodeInvalidConfig,
		ErrCodeInvalidScript,
		ErrCodeLegalize,
		ErrCodeCapacity,
		ErrCodeDiverged,
		ErrCodeConsistency,
		ErrCodeInternal,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
