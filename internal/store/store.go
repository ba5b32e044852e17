// Package store defines where leads are archived and the lazily initialized handle the backends share.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/forgehomes/lead-intake/internal/lead"
)

// Store archives leads.
type Store interface {
	// Add appends a new record and returns its identifier.
	Add(ctx context.Context, r lead.Record) (id string, err error)
	// Close releases the backend connection if it was opened.
	Close() error
}

// Backend names accepted in configuration.
const (
	BackendNone      = "none"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// ErrClosed is returned by Lazy.Get once the handle was closed.
var ErrClosed = errors.New("store is closed")

// Lazy is a connection handle created on first use and reused for the lifetime of the process.
//
// A failed initialization is not remembered: the next Get tries again. Get and Close are safe for
// concurrent use; initialization runs under the lock so that at most one handle is ever created.
type Lazy[T any] struct {
	openFn  func(context.Context) (T, error)
	closeFn func(T) error

	mu     sync.Mutex
	handle T
	ready  bool
	closed bool
}

// NewLazy returns a handle opened with openFn on first use and released with closeFn.
func NewLazy[T any](openFn func(context.Context) (T, error), closeFn func(T) error) *Lazy[T] {
	return &Lazy[T]{openFn: openFn, closeFn: closeFn}
}

// Get returns the handle, opening it if this is the first successful call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		var zero T
		return zero, ErrClosed
	}
	if l.ready {
		return l.handle, nil
	}

	h, err := l.openFn(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("could not initialize store connection: %w", err)
	}
	l.handle, l.ready = h, true
	return h, nil
}

// Close releases the handle if it was opened. Further Get calls fail.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if !l.ready || l.closeFn == nil {
		return nil
	}
	var zero T
	h := l.handle
	l.handle, l.ready = zero, false
	return l.closeFn(h)
}
