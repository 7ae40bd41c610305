package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDailyAt(t *testing.T) {
	next := DailyAt(0, 0)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	got := next(now)
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("next = %s, want %s", got, want)
	}

	// Exactly at the boundary the fire moves to the next day.
	got = next(want)
	if !got.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("next at boundary = %s", got)
	}
}

func TestEveryOnGridAnchorsToGrid(t *testing.T) {
	next := EveryOnGrid(4 * time.Hour)
	now := time.Date(2026, 3, 10, 9, 17, 0, 0, time.UTC)
	got := next(now)
	want := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("next = %s, want %s", got, want)
	}

	// A late evaluation still lands on the grid, it does not drift by
	// the lateness.
	late := want.Add(3 * time.Minute)
	if got := next(late); !got.Equal(want.Add(4 * time.Hour)) {
		t.Errorf("next after late fire = %s", got)
	}
}

func TestRandomTimesDailyIsDeterministicPerDate(t *testing.T) {
	next := RandomTimesDaily(3, 7, 9, 21, 99)
	morning := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	var firstPass []time.Time
	at := morning
	for i := 0; i < 3; i++ {
		at = next(at)
		firstPass = append(firstPass, at)
	}
	at = morning
	for i := 0; i < 3; i++ {
		at = next(at)
		if !at.Equal(firstPass[i]) {
			t.Fatalf("re-evaluation diverged: %s vs %s", at, firstPass[i])
		}
	}
}

func TestRandomTimesDailyStaysInWindow(t *testing.T) {
	next := RandomTimesDaily(3, 7, 9, 21, 5)
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		at = next(at)
		h := at.Hour()
		if h < 9 || h >= 21 {
			t.Fatalf("fire at %s outside window", at)
		}
	}
}

func TestRandomTimesDailyCountPerDay(t *testing.T) {
	next := RandomTimesDaily(3, 7, 9, 21, 31)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := day
	count := 0
	for {
		at = next(at)
		if at.Day() != day.Day() {
			break
		}
		count++
	}
	if count < 3 || count > 7 {
		t.Errorf("fires on one day = %d", count)
	}
}

func TestForceRunRejectsWhileRunning(t *testing.T) {
	r := NewRunner()
	release := make(chan struct{})
	started := make(chan struct{})
	r.Register(Job{
		Name: "slow",
		Next: DailyAt(0, 0),
		Run: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- r.ForceRun(context.Background(), "slow") }()
	<-started

	if err := r.ForceRun(context.Background(), "slow"); !errors.Is(err, ErrJobBusy) {
		t.Errorf("concurrent ForceRun = %v, want ErrJobBusy", err)
	}
	close(release)
	if err := <-errCh; err != nil {
		t.Errorf("first ForceRun = %v", err)
	}
}

func TestForceRunUnknownJob(t *testing.T) {
	r := NewRunner()
	if err := r.ForceRun(context.Background(), "ghost"); err == nil {
		t.Fatal("want error")
	}
}

func TestForceRunContainsPanic(t *testing.T) {
	r := NewRunner()
	r.Register(Job{
		Name: "bomb",
		Next: DailyAt(0, 0),
		Run:  func(ctx context.Context) error { panic("boom") },
	})
	if err := r.ForceRun(context.Background(), "bomb"); err != nil {
		t.Errorf("ForceRun = %v", err)
	}
	// The job must be runnable again after the panic.
	if err := r.ForceRun(context.Background(), "bomb"); err != nil {
		t.Errorf("second ForceRun = %v", err)
	}
}

func TestRunnerFiresAndSkipsOverlap(t *testing.T) {
	r := NewRunner()
	var fires atomic.Int32
	release := make(chan struct{})
	r.Register(Job{
		Name: "tick",
		Next: func(after time.Time) time.Time { return after.Add(10 * time.Millisecond) },
		Run: func(ctx context.Context) error {
			if fires.Add(1) == 1 {
				<-release
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	// The first run blocks; later fires must be skipped, not stacked.
	time.Sleep(80 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Errorf("fires while blocked = %d, want 1", got)
	}
	close(release)
	time.Sleep(50 * time.Millisecond)
	if got := fires.Load(); got < 2 {
		t.Errorf("fires after release = %d, want >= 2", got)
	}
	cancel()
	r.Wait()
}
