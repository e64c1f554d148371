package identity

import (
	"errors"
	"regexp"
)

// MaxLength bounds identity names so they stay usable as file names.
const MaxLength = 64

var ErrInvalidFormat = errors.New("invalid provision identity format")

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks that an identity is safe to use as a primary key and as a
// path component. It must run before any filesystem or queue interaction.
func Validate(identity string) error {
	if identity == "" || len(identity) > MaxLength {
		return ErrInvalidFormat
	}
	if !identityPattern.MatchString(identity) {
		return ErrInvalidFormat
	}
	return nil
}
