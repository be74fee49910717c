package service

// gate.go serializes writes to the data file.
//
// The store rewrites the whole file on every mutation, so two concurrent
// writers would each read the old table and the last rename would win. The
// gate is a one-slot semaphore: a writer waits up to maxWait for the slot
// before failing with ErrBusy.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when another write holds the gate for longer than the
// configured wait. Clients should retry after a short delay.
var ErrBusy = errors.New("data file busy, another change is in progress")

// DefaultWriteWait is how long a writer waits for the gate.
const DefaultWriteWait = 5 * time.Second

// WriteGate allows one writer at a time.
type WriteGate struct {
	slot    chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewWriteGate creates a gate whose writers wait at most maxWait.
func NewWriteGate(maxWait time.Duration) *WriteGate {
	if maxWait <= 0 {
		maxWait = DefaultWriteWait
	}
	return &WriteGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the gate. The caller MUST call Release when done.
func (g *WriteGate) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
}

// Release frees the gate. Must be called exactly once per successful Acquire.
func (g *WriteGate) Release() {
	g.mu.Lock()
	g.active--
	g.mu.Unlock()

	<-g.slot
}

// Busy reports whether a writer currently holds the gate.
func (g *WriteGate) Busy() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active > 0
}

// WaitForDrain blocks until no writer holds the gate or ctx ends.
// Used on shutdown so an in-flight rewrite completes.
func (g *WriteGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
