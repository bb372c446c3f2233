// Package validate holds the input checks shared by the profile, sync and
// upload paths.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// Username limits, in characters.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// StringConstraints describes what String accepts. Zero lengths mean no bound.
type StringConstraints struct {
	MinLength      int
	MaxLength      int
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
}

// String checks s against c and returns it, trimmed when c.TrimSpace is set.
// Lengths count runes, not bytes.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

// Username checks a handle: 3 to 30 letters, digits, underscores or dots.
func Username(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      MinUsernameLength,
		MaxLength:      MaxUsernameLength,
		AllowedPattern: usernamePattern,
		TrimSpace:      true,
	})
}
