// Package deltaerr defines the error taxonomy shared by every layer of the
// transaction log: log store, snapshot builder, checkpoint engine and
// transaction coordinator all wrap their causes with one of these sentinels
// so callers can branch with errors.Is instead of matching string messages.
package deltaerr

import (
	"errors"
	"fmt"
)

var (
	// CorruptLog means a commit line, checkpoint pointer or action
	// discriminant could not be parsed. Not retryable.
	CorruptLog = errors.New("corrupt log")
	// InvalidArgument means the caller passed a value the operation cannot
	// accept, e.g. checkpointing a negative version.
	InvalidArgument = errors.New("invalid argument")
	// InvalidState means the caller violated a lifecycle invariant, e.g.
	// adding an action to an already-committed transaction.
	InvalidState = errors.New("invalid state")
	// ConcurrentModification means an optimistic commit conflicted with a
	// commit made by another transaction. Retryable via CommitWithRetry.
	ConcurrentModification = errors.New("concurrent modification")
	// IoError wraps an underlying filesystem failure or an interrupted
	// retry backoff. Retryable at the caller's discretion.
	IoError = errors.New("io error")
)

// Wrap annotates cause with op and sentinel so that both
// errors.Is(err, sentinel) and errors.Is(err, cause) hold. Pass a nil cause
// when the sentinel alone describes the failure.
func Wrap(sentinel error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, cause)
}
