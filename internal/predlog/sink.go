package predlog

import (
	"context"
	"errors"
	"io"
)

// ErrLogNotFound is returned by readers when no log has been created yet.
var ErrLogNotFound = errors.New("prediction log not found")

// ErrBadHeader is returned when a CSV log's first line is not a log header.
var ErrBadHeader = errors.New("prediction log header is invalid")

// ErrClosed is returned by Serialized.Append after Close.
var ErrClosed = errors.New("prediction log closed")

// Sink appends entries to a log. Implementations need not be safe for
// concurrent use; wrap them in Serialized.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Reader reads a log back in append order.
type Reader interface {
	// All returns every entry, or ErrLogNotFound if the log does not exist.
	All(ctx context.Context) ([]Entry, error)
	// Tail returns at most the last n entries.
	Tail(ctx context.Context, n int) ([]Entry, error)
	// Export writes the whole log as CSV.
	Export(ctx context.Context, w io.Writer) error
}

// Store is a log that can be both written and read.
type Store interface {
	Sink
	Reader
}

// TailOf returns the last n entries, or all of them when there are fewer.
func TailOf(entries []Entry, n int) []Entry {
	if n < 0 {
		n = 0
	}
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
