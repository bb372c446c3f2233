package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		wantErr     error
		wantOutput  string
	}{
		{
			name:        "within bounds and trimmed",
			input:       "  Hello World  ",
			constraints: StringConstraints{MinLength: 5, MaxLength: 20, TrimSpace: true},
			wantOutput:  "Hello World",
		},
		{
			name:        "too short",
			input:       "Hi",
			constraints: StringConstraints{MinLength: 5},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", 61),
			constraints: StringConstraints{MaxLength: 60},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "runes not bytes",
			input:       strings.Repeat("é", 60),
			constraints: StringConstraints{MaxLength: 60},
			wantOutput:  strings.Repeat("é", 60),
		},
		{
			name:        "empty rejected",
			input:       "",
			constraints: StringConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "whitespace only is empty after trim",
			input:       "   ",
			constraints: StringConstraints{AllowEmpty: true, TrimSpace: true},
			wantOutput:  "",
		},
		{
			name:        "pattern mismatch",
			input:       "abc!",
			constraints: StringConstraints{AllowedPattern: regexp.MustCompile(`^[a-z]+$`)},
			wantErr:     ErrInvalidCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("String() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("String() unexpected error: %v", err)
			}
			if got != tt.wantOutput {
				t.Errorf("String() = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestUsername(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"alice", "alice", nil},
		{"  bob.smith_2 ", "bob.smith_2", nil},
		{"ab", "", ErrStringTooShort},
		{strings.Repeat("a", 31), "", ErrStringTooLong},
		{"has space", "", ErrInvalidCharacters},
		{"emoji🙂", "", ErrInvalidCharacters},
		{"", "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Username(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Username(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Username(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
