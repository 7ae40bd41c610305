// Package scheduler drives the recurring world jobs: the daily update,
// the project sweep and random event injection. Jobs never overlap with
// themselves, different jobs run freely alongside each other, and a
// panicking job is contained and logged.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one recurring unit of work. Next computes the first fire time
// strictly after the given instant from the schedule grid, so a slow or
// missed run never shifts the grid.
type Job struct {
	Name string
	Next func(after time.Time) time.Time
	Run  func(ctx context.Context) error
}

type managedJob struct {
	Job
	inFlight atomic.Bool
}

// Runner owns a set of jobs and their timer loops.
type Runner struct {
	jobs []*managedJob
	now  func() time.Time
	wg   sync.WaitGroup
}

// NewRunner returns an empty runner.
func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// Register adds a job. Must be called before Start.
func (r *Runner) Register(j Job) {
	r.jobs = append(r.jobs, &managedJob{Job: j})
}

// Start launches one timer loop per job. The loops stop when ctx is
// canceled; Wait blocks until in-flight runs finish.
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	slog.Info("scheduler started", "jobs", len(r.jobs))
}

// Wait blocks until every loop and every in-flight run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, j *managedJob) {
	defer r.wg.Done()
	for {
		next := j.Next(r.now())
		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		r.fire(ctx, j)
	}
}

// fire starts one run unless the previous one is still going. The run
// happens on its own goroutine so the timer loop keeps the grid.
func (r *Runner) fire(ctx context.Context, j *managedJob) {
	if !j.inFlight.CompareAndSwap(false, true) {
		slog.Warn("job still running, skipping this fire", "job", j.Name)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer j.inFlight.Store(false)
		runIsolated(ctx, j.Name, j.Run)
	}()
}

// ErrJobBusy is returned by ForceRun when the job is already running.
var ErrJobBusy = fmt.Errorf("job already running")

// ForceRun executes a registered job immediately, synchronously. Used by
// the admin surface.
func (r *Runner) ForceRun(ctx context.Context, name string) error {
	for _, j := range r.jobs {
		if j.Name != name {
			continue
		}
		if !j.inFlight.CompareAndSwap(false, true) {
			return ErrJobBusy
		}
		defer j.inFlight.Store(false)
		runIsolated(ctx, j.Name, j.Run)
		return nil
	}
	return fmt.Errorf("unknown job %q", name)
}

// runIsolated runs one job invocation, containing panics and logging
// failures.
func runIsolated(ctx context.Context, name string, run func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("job panicked", "job", name, "panic", rec)
		}
	}()
	start := time.Now()
	if err := run(ctx); err != nil {
		slog.Error("job failed", "job", name, "error", err)
		return
	}
	slog.Info("job finished", "job", name, "took", time.Since(start).Round(time.Millisecond))
}

// DailyAt returns a schedule firing once per day at the given UTC time.
func DailyAt(hour, minute int) func(after time.Time) time.Time {
	return func(after time.Time) time.Time {
		after = after.UTC()
		t := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, time.UTC)
		if !t.After(after) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}
}

// EveryOnGrid returns a schedule firing on whole multiples of d, anchored
// to the epoch rather than to the previous run.
func EveryOnGrid(d time.Duration) func(after time.Time) time.Time {
	return func(after time.Time) time.Time {
		return after.Truncate(d).Add(d)
	}
}

// RandomTimesDaily returns a schedule firing between minTimes and
// maxTimes per day at random instants inside the [startHour, endHour)
// UTC window. The draw is a pure function of the date and the seed, so
// every evaluation within one day agrees on that day's times and the
// next day gets a fresh draw.
func RandomTimesDaily(minTimes, maxTimes, startHour, endHour int, seed int64) func(after time.Time) time.Time {
	return func(after time.Time) time.Time {
		after = after.UTC()
		for day := 0; ; day++ {
			date := after.AddDate(0, 0, day)
			for _, t := range drawTimes(date, minTimes, maxTimes, startHour, endHour, seed) {
				if t.After(after) {
					return t
				}
			}
		}
	}
}

// drawTimes computes one date's fire times, sorted ascending.
func drawTimes(date time.Time, minTimes, maxTimes, startHour, endHour int, seed int64) []time.Time {
	daySeed := seed ^ int64(date.Year()*10000+int(date.Month())*100+date.Day())
	rng := rand.New(rand.NewSource(daySeed))

	n := minTimes
	if maxTimes > minTimes {
		n += rng.Intn(maxTimes - minTimes + 1)
	}
	windowSec := (endHour - startHour) * 3600
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		offset := time.Duration(startHour)*time.Hour + time.Duration(rng.Intn(windowSec))*time.Second
		out = append(out, midnight.Add(offset))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// forEach fans work out over ids through a bounded pool. A failing or
// panicking id is logged and the rest continue.
func forEach(ctx context.Context, workers int, ids []string, fn func(ctx context.Context, id string) error) {
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("country task panicked", "country", id, "panic", rec)
				}
			}()
			if err := fn(ctx, id); err != nil {
				slog.Error("country task failed", "country", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}
