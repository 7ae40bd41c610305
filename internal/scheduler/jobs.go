package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/projects"
	"github.com/vkotenev/statecraft/internal/store"
)

// activeWindow bounds who counts as an active player for the daily
// update and random events.
const activeWindow = 7 * 24 * time.Hour

// globalEventChance is the odds that one event firing becomes a
// world-spanning event instead of per-country ones. Needs at least two
// nations.
const globalEventChance = 0.2

// WorldStore is the relational surface the jobs need.
type WorldStore interface {
	ListActiveCountries(since time.Time) ([]store.Country, error)
	CountriesWithActiveProjects() ([]string, error)
}

// Clock is the game calendar surface the jobs need.
type Clock interface {
	CurrentYear() int
	MarkDay() (bool, error)
}

// Applier folds daily-update changes into country state.
type Applier interface {
	ApplyChanges(ctx context.Context, countryID string, changes map[string]string) error
}

// Sweeper recomputes one country's projects. Implemented by the
// projects manager.
type Sweeper interface {
	Sweep(ctx context.Context, countryID string) (projects.SweepResult, error)
}

// EventSource creates events. Implemented by the events generator.
type EventSource interface {
	PickAutonomousBand() string
	GenerateEvent(ctx context.Context, countryID, band string) (store.Event, error)
	GenerateGlobalEvent(ctx context.Context, countryIDs []string) ([]store.Event, error)
}

// Deps bundles what the three world jobs share.
type Deps struct {
	Store   WorldStore
	Clock   Clock
	Gen     llm.Generator
	Applier Applier
	Sweeper Sweeper
	Events  EventSource
	Sink    notify.Sink
	GenCfg  config.Generation
	Sched   config.Scheduler
}

// RegisterWorldJobs wires the three recurring jobs into the runner.
func RegisterWorldJobs(r *Runner, d Deps, seed int64) {
	hour, minute := parseClockTime(d.Sched.YearlyUpdateAt)
	r.Register(Job{
		Name: "yearly-update",
		Next: DailyAt(hour, minute),
		Run:  d.yearlyUpdate,
	})
	r.Register(Job{
		Name: "project-sweep",
		Next: EveryOnGrid(d.Sched.ProjectSweepEvery),
		Run:  d.projectSweep,
	})
	r.Register(Job{
		Name: "random-events",
		Next: RandomTimesDaily(d.Sched.EventsPerDayMin, d.Sched.EventsPerDayMax,
			d.Sched.EventWindowStart, d.Sched.EventWindowEnd, seed),
		Run:  d.randomEvents(seed),
	})
}

// parseClockTime reads "HH:MM". Config validation guarantees the format;
// a bad value here falls back to midnight.
func parseClockTime(s string) (hour, minute int) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}

// yearlyUpdate advances the calendar and plays one game year forward for
// every active nation. The day guard makes the job idempotent within a
// real day: reruns after the first are no-ops.
func (d Deps) yearlyUpdate(ctx context.Context) error {
	newDay, err := d.Clock.MarkDay()
	if err != nil {
		return fmt.Errorf("mark day: %w", err)
	}
	if !newDay {
		slog.Info("yearly update already ran today")
		return nil
	}
	year := d.Clock.CurrentYear()

	countries, err := d.Store.ListActiveCountries(time.Now().Add(-activeWindow))
	if err != nil {
		return fmt.Errorf("list active countries: %w", err)
	}
	if len(countries) == 0 {
		slog.Info("yearly update: no active countries", "year", year)
		return nil
	}

	situation := d.worldSituation(ctx, year, countries)

	byID := make(map[string]store.Country, len(countries))
	ids := make([]string, 0, len(countries))
	for _, c := range countries {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	forEach(ctx, d.Sched.Workers, ids, func(ctx context.Context, id string) error {
		return d.updateCountry(ctx, byID[id], year, situation)
	})

	slog.Info("yearly update complete", "year", year, "countries", len(countries))
	return nil
}

// worldSituation generates the shared one-paragraph state of the world.
// Failure degrades to an empty situation, not a failed update.
func (d Deps) worldSituation(ctx context.Context, year int, countries []store.Country) string {
	resp, err := d.Gen.Generate(ctx, llm.Request{
		System:      updateSystemPrompt,
		Prompt:      worldSituationPrompt(year, countries),
		MaxTokens:   d.GenCfg.MaxTokens,
		Temperature: d.GenCfg.Temperature,
	})
	if err != nil {
		slog.Warn("world situation generation failed", "year", year, "error", err)
		return ""
	}
	return strings.TrimSpace(resp)
}

// updateCountry plays one year forward for one nation.
func (d Deps) updateCountry(ctx context.Context, c store.Country, year int, situation string) error {
	resp, err := d.Gen.Generate(ctx, llm.Request{
		System:      updateSystemPrompt,
		Prompt:      countryUpdatePrompt(c, year, situation),
		MaxTokens:   d.GenCfg.MaxTokens,
		Temperature: d.GenCfg.Temperature,
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", c.Name, err)
	}

	res := parser.Parse(resp, parser.DailyUpdate)
	if len(res.AspectChanges) > 0 {
		if err := d.Applier.ApplyChanges(ctx, c.ID, res.AspectChanges); err != nil {
			return fmt.Errorf("apply update for %s: %w", c.Name, err)
		}
	}
	d.Sink.Notify(c.ID, yearReport(year, res))
	return nil
}

// yearReport renders the player's yearly message. Well formed even when
// the parse found nothing.
func yearReport(year int, res parser.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year %s.", gameclock.FormatYear(year))
	general := res.Fields["general"]
	if general != "" {
		b.WriteString("\n\n" + general)
	}
	if len(res.AspectChanges) > 0 {
		b.WriteString("\n")
		for _, k := range sortedKeys(res.AspectChanges) {
			fmt.Fprintf(&b, "\n- %s: %s", k, res.AspectChanges[k])
		}
	}
	if general == "" && len(res.AspectChanges) == 0 {
		b.WriteString(" The year passed quietly.")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// projectSweep recomputes projects for every country that has any.
func (d Deps) projectSweep(ctx context.Context) error {
	ids, err := d.Store.CountriesWithActiveProjects()
	if err != nil {
		return fmt.Errorf("list countries with projects: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	forEach(ctx, d.Sched.Workers, ids, func(ctx context.Context, id string) error {
		res, err := d.Sweeper.Sweep(ctx, id)
		if err != nil {
			return err
		}
		slog.Info("projects swept", "country", id,
			"completed", len(res.Completed), "in_progress", len(res.InProgress))
		return nil
	})
	return nil
}

// randomEvents injects events into the active player set. Occasionally
// the firing becomes one world-spanning event instead.
func (d Deps) randomEvents(seed int64) func(ctx context.Context) error {
	rng := rand.New(rand.NewSource(seed))
	var mu sync.Mutex
	return func(ctx context.Context) error {
		countries, err := d.Store.ListActiveCountries(time.Now().Add(-activeWindow))
		if err != nil {
			return fmt.Errorf("list active countries: %w", err)
		}
		if len(countries) == 0 {
			return nil
		}

		mu.Lock()
		global := len(countries) >= 2 && rng.Float64() < globalEventChance
		mu.Unlock()

		if global {
			ids := make([]string, len(countries))
			for i, c := range countries {
				ids[i] = c.ID
			}
			_, err := d.Events.GenerateGlobalEvent(ctx, ids)
			return err
		}

		ids := make([]string, len(countries))
		for i, c := range countries {
			ids[i] = c.ID
		}
		forEach(ctx, d.Sched.Workers, ids, func(ctx context.Context, id string) error {
			_, err := d.Events.GenerateEvent(ctx, id, d.Events.PickAutonomousBand())
			return err
		})
		return nil
	}
}
