package nli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrModelUnavailable is returned when the model could not be loaded. It is
// fatal for every document: nothing is scored with a substitute model.
var ErrModelUnavailable = errors.New("nli model unavailable")

// Classifier is the contract the grading engine consumes.
type Classifier interface {
	Classify(ctx context.Context, premise string, hypotheses []string) ([]float64, error)
}

// Loader builds the classifier. It runs at most once per Lazy.
type Loader func(ctx context.Context) (Classifier, error)

// loadError marks load failures as fatal for callers that check
// `interface{ Fatal() bool }`.
type loadError struct{ err error }

func (e *loadError) Error() string   { return fmt.Sprintf("%v: %v", ErrModelUnavailable, e.err) }
func (e *loadError) Unwrap() []error { return []error{ErrModelUnavailable, e.err} }
func (e *loadError) Fatal() bool     { return true }

// Lazy holds a classifier that is loaded on first use. Concurrent first
// callers block on the same load; a failed load is remembered and returned
// to every later caller. A load cut short by the caller's own context is not
// remembered, and the next call loads again.
type Lazy struct {
	load Loader

	mu   sync.Mutex // serializes loads
	done atomic.Bool
	c    Classifier
	err  error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewLazy(load Loader) *Lazy { return &Lazy{load: load} }

// ErrClosed is returned by Get after Close when no model was ever loaded.
var ErrClosed = errors.New("nli model closed")

// Get loads the classifier if needed. The context of the calling goroutine
// bounds the load.
func (l *Lazy) Get(ctx context.Context) (Classifier, error) {
	if l.done.Load() {
		return l.c, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done.Load() {
		return l.c, l.err
	}
	if l.closed.Load() {
		return nil, &loadError{err: ErrClosed}
	}
	if l.load == nil {
		l.err = &loadError{err: errors.New("no loader configured")}
		l.done.Store(true)
		return nil, l.err
	}

	c, err := l.load(ctx)
	switch {
	case err != nil && ctx.Err() != nil && isContextErr(err):
		return nil, fmt.Errorf("loading nli model: %w", err)
	case err != nil:
		l.err = &loadError{err: err}
	case c == nil:
		l.err = &loadError{err: errors.New("loader returned no classifier")}
	default:
		l.c = c
	}
	l.done.Store(true)
	if l.closed.Load() {
		l.closeLoaded()
	}
	return l.c, l.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrLoading is returned by Ready while the first load is in progress or has
// not started.
var ErrLoading = errors.New("nli model loading")

// Ready reports the load outcome without triggering a load.
func (l *Lazy) Ready() error {
	if !l.done.Load() {
		return ErrLoading
	}
	return l.err
}

// Classify loads on first use and delegates.
func (l *Lazy) Classify(ctx context.Context, premise string, hypotheses []string) ([]float64, error) {
	c, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Classify(ctx, premise, hypotheses)
}

// Close releases the loaded classifier when it holds resources. A load still
// in flight is closed as soon as it finishes.
func (l *Lazy) Close() error {
	l.closed.Store(true)
	if !l.done.Load() {
		return nil
	}
	l.closeLoaded()
	return l.closeErr
}

func (l *Lazy) closeLoaded() {
	l.closeOnce.Do(func() {
		if cl, ok := l.c.(interface{ Close() error }); ok && l.c != nil {
			l.closeErr = cl.Close()
		}
	})
}
