package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotImplemented marks operations every backend must override. Reaching
// it at runtime is a programming error in the backend, not a user error.
var ErrNotImplemented = errors.New("not implemented")

// ActionError reports that a backend does not support an optional action.
// Callers may branch on it with errors.As; it is always safe to treat as an
// expected limitation rather than a bug.
type ActionError struct {
	Action string
	Scheme string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s is not supported for %s remotes", e.Action, e.Scheme)
}

// ErrCrossBackend is returned when a transfer would span two different
// backends. This layer never stages content across backends; the caller has
// to route through a common one.
var ErrCrossBackend = errors.New("cross-backend transfer is not supported")

// MissingDepsError fails backend construction when required external
// dependencies cannot be resolved. It is fatal to that instance.
type MissingDepsError struct {
	URL     string
	Scheme  string
	Missing []string
	Hint    string
}

func (e *MissingDepsError) Error() string {
	return fmt.Sprintf(
		"URL %q is supported but requires these missing dependencies: [%s]. %s",
		e.URL, strings.Join(e.Missing, ", "), e.Hint,
	)
}

// CmdError reports an external command invoked by a backend that exited
// non-zero.
type CmdError struct {
	Scheme   string
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *CmdError) Error() string {
	return fmt.Sprintf(
		"%s command %q finished with non-zero return code %d: %s",
		e.Scheme, e.Cmd, e.ExitCode, strings.TrimSpace(e.Stderr),
	)
}
