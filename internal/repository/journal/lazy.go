package journal

import (
	"context"
	"sync"
)

// Lazy is a Recorder that opens the journal on the first record, so nothing
// touches the filesystem for operations that fail before recording.
type Lazy struct {
	path string

	mu      sync.Mutex
	journal *Journal
	err     error
	closed  bool
}

var _ Recorder = (*Lazy)(nil)

// NewLazy returns a Recorder for the journal at path without opening it.
func NewLazy(path string) *Lazy {
	return &Lazy{path: path}
}

// RecordWrap opens the journal if needed and stores entry.
func (l *Lazy) RecordWrap(ctx context.Context, entry *Wrap) error {
	journal, err := l.open()
	if err != nil {
		return err
	}

	return journal.RecordWrap(ctx, entry)
}

// RecordRun opens the journal if needed and stores entry.
func (l *Lazy) RecordRun(ctx context.Context, entry *Run) error {
	journal, err := l.open()
	if err != nil {
		return err
	}

	return journal.RecordRun(ctx, entry)
}

// Close closes the journal if it was opened. A failed open is not retried.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true

	if l.journal == nil {
		return nil
	}

	err := l.journal.Close()
	l.journal = nil

	return err
}

func (l *Lazy) open() (*Journal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return nil, ErrClosed
	case l.journal != nil:
		return l.journal, nil
	case l.err != nil:
		return nil, l.err
	}

	l.journal, l.err = Open(l.path)

	return l.journal, l.err
}
