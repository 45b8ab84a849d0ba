package stream

import (
	"context"
	"errors"

	"github.com/xraph/streampay/id"
)

// Storage errors.
var (
	ErrNotFound         = errors.New("streampay: stream not found")
	ErrAlreadyExists    = errors.New("streampay: stream already exists")
	ErrConcurrentUpdate = errors.New("streampay: stream modified concurrently")
)

// Store persists started streams. Rows are never removed: a cancelled stream
// stays as its settlement record, so a stream ID can be inserted only once.
// Each method touches exactly one row, so a stream transition is atomic on
// every backend.
type Store interface {
	// InsertStream persists a newly activated stream at version 1.
	InsertStream(ctx context.Context, s *Stream) error

	// GetStream returns the stream with the given ID or ErrNotFound.
	GetStream(ctx context.Context, streamID id.StreamID) (*Stream, error)

	// ListStreams returns streams matching opts, oldest first.
	ListStreams(ctx context.Context, opts ListOpts) ([]*Stream, error)

	// UpdateStream writes s if its stored version still equals s.Version and
	// increments s.Version. A stale version yields ErrConcurrentUpdate.
	UpdateStream(ctx context.Context, s *Stream) error
}
