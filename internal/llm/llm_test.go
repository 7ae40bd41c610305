package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeGen blocks until released, counting concurrent calls.
type fakeGen struct {
	mu         sync.Mutex
	inFlight   int32
	maxSeen    int32
	delay      time.Duration
	reply      string
	err        error
	callsTotal atomic.Int32
}

func (f *fakeGen) Generate(ctx context.Context, req Request) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.mu.Unlock()
	f.callsTotal.Add(1)

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestGateSerializesCalls(t *testing.T) {
	inner := &fakeGen{delay: 20 * time.Millisecond, reply: "ok"}
	gate := NewGate(inner, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := gate.Generate(context.Background(), Request{Prompt: "p"})
			if err != nil || out != "ok" {
				t.Errorf("Generate: %q, %v", out, err)
			}
		}()
	}
	wg.Wait()

	if inner.maxSeen != 1 {
		t.Errorf("max concurrent calls = %d, want 1", inner.maxSeen)
	}
	if got := inner.callsTotal.Load(); got != 8 {
		t.Errorf("total calls = %d, want 8", got)
	}
}

func TestGateTimeoutWhileGenerating(t *testing.T) {
	inner := &fakeGen{delay: time.Second, reply: "late"}
	gate := NewGate(inner, 30*time.Millisecond)

	_, err := gate.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestGateTimeoutWhileQueued(t *testing.T) {
	inner := &fakeGen{delay: 500 * time.Millisecond, reply: "slow"}
	gate := NewGate(inner, 80*time.Millisecond)

	// Occupy the slot.
	go gate.Generate(context.Background(), Request{Prompt: "first"})
	time.Sleep(10 * time.Millisecond)

	_, err := gate.Generate(context.Background(), Request{Prompt: "second"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("queued call: got %v, want ErrTimeout", err)
	}
}

func TestGatePropagatesInnerError(t *testing.T) {
	wantErr := errors.New("backend down")
	inner := &fakeGen{err: wantErr}
	gate := NewGate(inner, time.Second)

	_, err := gate.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want inner error", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("inner error misreported as timeout")
	}
}

func TestGateReleasesSlotAfterError(t *testing.T) {
	inner := &fakeGen{err: errors.New("boom")}
	gate := NewGate(inner, time.Second)

	gate.Generate(context.Background(), Request{Prompt: "a"})

	inner.err = nil
	inner.reply = "recovered"
	out, err := gate.Generate(context.Background(), Request{Prompt: "b"})
	if err != nil || out != "recovered" {
		t.Errorf("slot not released: %q, %v", out, err)
	}
}
