// Package llm abstracts the text model behind a single Generate call and
// serializes access to it: the game runs one model instance, so at most
// one generation is in flight at a time.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a generation did not finish within the
// configured window, including time spent waiting for the slot.
var ErrTimeout = errors.New("llm: generation timed out")

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces model text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gate wraps a Generator with a capacity-one slot and a per-call
// deadline. Callers queue on the slot; the deadline covers the queueing
// wait as well, so a stuck generation cannot back the whole scheduler up
// indefinitely.
type Gate struct {
	inner   Generator
	slot    chan struct{}
	timeout time.Duration
}

// NewGate wraps inner with serialized access and the given per-call
// timeout.
func NewGate(inner Generator, timeout time.Duration) *Gate {
	return &Gate{
		inner:   inner,
		slot:    make(chan struct{}, 1),
		timeout: timeout,
	}
}

// Generate acquires the slot, runs the inner generator under a deadline
// and releases the slot. Deadline expiry maps to ErrTimeout.
func (g *Gate) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for slot: %v", ErrTimeout, ctx.Err())
	}
	defer func() { <-g.slot }()

	out, err := g.inner.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", err
	}
	return out, nil
}
