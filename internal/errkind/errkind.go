// Package errkind defines the error taxonomy used across the cache
// protocol: sentinel values identifying why a request or frame failed,
// independent of the textual message carried alongside them. Callers
// compare against these with errors.Is; wrap them with a descriptive
// message via Wrap before handing them to
// github.com/roadrunner-server/errors' E/Op machinery.
package errkind

import (
	"errors"
	"fmt"
)

var (
	// InvalidData marks a malformed frame: bad op/code byte, inconsistent
	// lengths, or anything else the codec can't parse.
	InvalidData = errors.New("invalid data")
	// BadMessage marks a well-formed frame that is semantically wrong,
	// e.g. a SET request with no payload.
	BadMessage = errors.New("bad message")
	// UnknownOp marks an operation byte outside {0..3}.
	UnknownOp = errors.New("unknown operation")
	// Other marks a cache-internal failure unrelated to the request's
	// own shape (queue send, dropped reply channel).
	Other = errors.New("other")
)

// Wrap annotates kind with a human-readable message, preserving kind for
// errors.Is comparisons by callers further up the stack.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Is reports whether err (or any error it wraps) is kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
