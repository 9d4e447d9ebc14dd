// Package secret resolves operator secrets for the CLI tools.
package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a secret from a fixed value, an environment variable
// or an interactive prompt, in that order. The value is cached after the first
// successful retrieval.
type Source struct {
	label  string
	fixed  string
	envVar string

	prompt func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source for label (used in prompts and errors).
func NewSource(label, fixed, envVar string) *Source {
	return &Source{
		label:  strings.TrimSpace(label),
		fixed:  strings.TrimSpace(fixed),
		envVar: strings.TrimSpace(envVar),
		prompt: promptTerminal,
	}
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// secrets are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.fixed != "" {
			s.value = s.fixed
			return
		}
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = strings.TrimSpace(value)
				return
			}
		}
		value, err := s.prompt(s.label)
		if err != nil {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s required; set %s or run interactively: %w", s.label, s.envVar, err)
			} else {
				s.err = fmt.Errorf("%s required: %w", s.label, err)
			}
			return
		}
		if strings.TrimSpace(value) == "" {
			s.err = fmt.Errorf("%s cannot be empty", s.label)
			return
		}
		s.value = value
	})
	return s.value, s.err
}

var errNoTerminal = errors.New("no terminal available")

func promptTerminal(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	return readHidden(os.Stderr, fd, label)
}

func readHidden(out io.Writer, fd int, label string) (string, error) {
	fmt.Fprintf(out, "Enter %s: ", label)
	bytes, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return string(bytes), nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
