// Package enginerr defines the typed error kinds the engine surfaces to its
// callers (see §7 of the design: NotConfigured, NotFound, Transport, Parse,
// Storage, Unavailable). Subsystems wrap the underlying cause with one of
// these sentinels so callers can branch with errors.Is without parsing
// strings.
package enginerr

import "errors"

var (
	// ErrNotConfigured means a required credential or setting is absent.
	// Recoverable by user action (e.g. supplying an API key).
	ErrNotConfigured = errors.New("not configured")

	// ErrNotFound means a file, game, or remote entity does not exist.
	// Usually recoverable by retry or the pending loop.
	ErrNotFound = errors.New("not found")

	// ErrTransport means a network call, or decoding its response, failed.
	// Calls are made once; nothing retries them.
	ErrTransport = errors.New("transport failure")

	// ErrParse means malformed source data; the affected entity is skipped
	// and surrounding work continues.
	ErrParse = errors.New("parse failure")

	// ErrStorage means a database failure. Fatal for the in-flight
	// operation, not for the engine.
	ErrStorage = errors.New("storage failure")

	// ErrUnavailable means the remote responded but has nothing for this
	// actor (private profile, unowned game). Callers should treat this as
	// a silent fallback, not a hard error.
	ErrUnavailable = errors.New("unavailable")
)

// Wrap annotates err with kind so errors.Is(wrapped, kind) succeeds while
// errors.Unwrap still reaches the original cause.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return &wrapped{kind: kind, cause: cause}
}

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() error {
	return w.cause
}

func (w *wrapped) Is(target error) bool {
	return target == w.kind
}
