package config

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrMissingConfig is matched by MissingError.
	ErrMissingConfig = errors.New("missing required configuration")
	// ErrInvalidConfig is returned when a value cannot be parsed.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// MissingError lists every required variable that is not set.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	var b strings.Builder
	b.WriteString("missing required environment variables: ")
	b.WriteString(strings.Join(e.Names, ", "))
	b.WriteString("\nplease set them in your shell environment:")
	for _, name := range e.Names {
		b.WriteString("\nexport ")
		b.WriteString(name)
		b.WriteString("='your_value'")
	}
	return b.String()
}

// Is reports ErrMissingConfig.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingConfig
}
