// Package game holds the core orchestration: the delta applier that
// merges narrative change into the hybrid world state, and the pipeline
// that resolves player actions end to end.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vkotenev/statecraft/internal/aspect"
	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/store"
)

// StateStore is the relational store surface the applier needs.
type StateStore interface {
	GetCountry(id string) (store.Country, error)
	Stats(countryID string) (map[string]int, error)
	SetStats(countryID string, ratings map[string]int) error
	AspectTexts(countryID string) (map[string]string, error)
	SetAspectText(countryID, asp, description string, year int) error
	SetProblems(countryID string, problems []string) error
	TouchCountry(id string, at time.Time) error
	FlagReview(id string) error
}

// Archive is the semantic store surface the applier needs.
type Archive interface {
	SaveCountry(countryID, text string) error
}

// YearSource tells the applier what game year it is.
type YearSource interface {
	CurrentYear() int
}

// maxProblems bounds a country's open problem list.
const maxProblems = 5

// Deltas is one batch of changes for a country.
type Deltas struct {
	// Aspects maps aspect names to impact text to fold into the
	// aspect's description. Unknown names are skipped and logged.
	Aspects map[string]string

	// Overrides maps aspects to explicit ratings that bypass
	// recomputation. Values are clamped to the rating band.
	Overrides map[string]int

	// RefreshStats recomputes ratings from the merged text for changed
	// aspects without overrides.
	RefreshStats bool

	// RefreshProblems re-derives the open problem list from the merged
	// state.
	RefreshProblems bool
}

// Applied reports what an Apply actually did.
type Applied struct {
	Updated  []string          // aspects whose text changed
	Skipped  []string          // unrecognized aspect names from the deltas
	Stats    map[string]int    // ratings after the apply
	Problems []string          // problem list after the apply
}

// Applier merges deltas into both halves of the world state. Applies to
// the same country serialize on a per-country lock; different countries
// proceed in parallel.
type Applier struct {
	store   StateStore
	archive Archive
	gen     llm.Generator
	sink    notify.Sink
	clock   YearSource
	genCfg  config.Generation
	retries int
	locks   keyedMutex
}

// NewApplier wires an applier.
func NewApplier(st StateStore, archive Archive, gen llm.Generator, sink notify.Sink,
	clock YearSource, genCfg config.Generation, retries int) *Applier {
	if retries < 1 {
		retries = 1
	}
	return &Applier{
		store:   st,
		archive: archive,
		gen:     gen,
		sink:    sink,
		clock:   clock,
		genCfg:  genCfg,
		retries: retries,
	}
}

// ApplyChanges is the narrow form used by project completions and
// events: fold textual changes, refresh ratings.
func (a *Applier) ApplyChanges(ctx context.Context, countryID string, changes map[string]string) error {
	_, err := a.Apply(ctx, countryID, Deltas{Aspects: changes, RefreshStats: true})
	return err
}

// Apply merges one batch of deltas into a country's state. Partial
// divergence between the two stores that retries cannot heal flags the
// country for review, alerts the operator and returns ErrPartialApply;
// every other failure leaves the state as consistent as it found it.
func (a *Applier) Apply(ctx context.Context, countryID string, d Deltas) (Applied, error) {
	mu := a.locks.get(countryID)
	mu.Lock()
	defer mu.Unlock()

	out := Applied{Stats: map[string]int{}}

	country, err := a.store.GetCountry(countryID)
	if err != nil {
		return out, fmt.Errorf("load country: %w", err)
	}
	texts, err := a.store.AspectTexts(countryID)
	if err != nil {
		return out, fmt.Errorf("load aspect texts: %w", err)
	}
	stats, err := a.store.Stats(countryID)
	if err != nil {
		return out, fmt.Errorf("load stats: %w", err)
	}
	year := a.clock.CurrentYear()

	// Fold textual deltas, deterministic order.
	names := make([]string, 0, len(d.Aspects))
	for n := range d.Aspects {
		names = append(names, n)
	}
	sort.Strings(names)

	merged := map[string]string{}
	for _, name := range names {
		canonical, ok := aspect.Normalize(name)
		if !ok {
			slog.Warn("skipping unknown aspect in deltas", "country", countryID, "aspect", name)
			out.Skipped = append(out.Skipped, name)
			continue
		}
		impact := d.Aspects[name]
		merged[canonical] = a.fold(ctx, country, canonical, texts[canonical], impact)
		out.Updated = append(out.Updated, canonical)
	}
	for canonical, text := range merged {
		texts[canonical] = text
	}

	// Ratings: explicit overrides first, then recomputation for the
	// textually changed rest.
	overridden := map[string]bool{}
	for name, v := range d.Overrides {
		canonical, ok := aspect.Normalize(name)
		if !ok {
			slog.Warn("skipping unknown aspect in overrides", "country", countryID, "aspect", name)
			out.Skipped = append(out.Skipped, name)
			continue
		}
		stats[canonical] = aspect.Clamp(v)
		overridden[canonical] = true
	}
	if d.RefreshStats && len(merged) > 0 {
		a.recompute(ctx, country, texts, merged, overridden, stats)
	}

	problems := country.ProblemList()
	if d.RefreshProblems {
		problems = a.refreshProblems(ctx, country, texts, problems)
	}

	// Phase one: relational store, with retries.
	persist := func() error {
		for _, canonical := range sortedKeys(merged) {
			if err := a.store.SetAspectText(countryID, canonical, merged[canonical], year); err != nil {
				return err
			}
		}
		if err := a.store.SetStats(countryID, stats); err != nil {
			return err
		}
		if err := a.store.SetProblems(countryID, problems); err != nil {
			return err
		}
		return a.store.TouchCountry(countryID, time.Now())
	}
	if err := a.retry(persist); err != nil {
		// Individual statements may have landed before the failure.
		a.diverged(countryID, "relational store write failed", err)
		return out, fmt.Errorf("%w: relational store: %v", ErrPartialApply, err)
	}

	// Phase two: semantic archive, with retries.
	country.Problems = "" // snapshot reads the fresh list below
	snap := snapshot(country, year, stats, texts)
	if len(problems) > 0 {
		snap += "Problems: " + joinProblems(problems) + "\n"
	}
	if err := a.retry(func() error { return a.archive.SaveCountry(countryID, snap) }); err != nil {
		a.diverged(countryID, "semantic archive write failed after relational write", err)
		return out, fmt.Errorf("%w: archive: %v", ErrPartialApply, err)
	}

	out.Stats = stats
	out.Problems = problems
	return out, nil
}

// fold merges one impact into one aspect description. When generation
// fails the impact is appended verbatim so no information is lost.
func (a *Applier) fold(ctx context.Context, c store.Country, canonical, current, impact string) string {
	resp, err := a.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      foldPrompt(c, canonical, current, impact),
		MaxTokens:   a.genCfg.MaxTokens,
		Temperature: a.genCfg.Temperature,
	})
	if err != nil || len(resp) == 0 {
		slog.Warn("fold generation failed, appending raw impact",
			"country", c.ID, "aspect", canonical, "error", err)
		if current == "" {
			return impact
		}
		return current + " " + impact
	}
	return resp
}

// recompute re-rates the textually changed, non-overridden aspects. On
// generation failure current ratings stand.
func (a *Applier) recompute(ctx context.Context, c store.Country,
	texts, merged map[string]string, overridden map[string]bool, stats map[string]int) {

	resp, err := a.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      statsPrompt(c, texts),
		MaxTokens:   a.genCfg.MaxTokens,
		Temperature: a.genCfg.RetryTemperature,
	})
	if err != nil {
		slog.Warn("stats recomputation failed, keeping current ratings", "country", c.ID, "error", err)
		return
	}
	res := parser.Parse(resp, parser.StatsExtraction)
	if !res.OK {
		slog.Warn("stats recomputation unparseable, keeping current ratings", "country", c.ID)
		return
	}
	for canonical := range merged {
		if !overridden[canonical] {
			stats[canonical] = res.Ratings[canonical]
		}
	}
}

// refreshProblems re-derives the problem list. On failure the existing
// list stands.
func (a *Applier) refreshProblems(ctx context.Context, c store.Country,
	texts map[string]string, current []string) []string {

	resp, err := a.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      problemsPrompt(c, texts),
		MaxTokens:   a.genCfg.MaxTokens,
		Temperature: a.genCfg.Temperature,
	})
	if err != nil {
		slog.Warn("problems refresh failed, keeping current list", "country", c.ID, "error", err)
		return current
	}

	probs := parser.Parse(resp, parser.InitialDescription).Items["problems"]
	if len(probs) == 0 {
		probs = parser.MineProblems(resp, maxProblems)
	}
	if len(probs) == 0 {
		return current
	}
	if len(probs) > maxProblems {
		probs = probs[:maxProblems]
	}
	return probs
}

func (a *Applier) retry(f func() error) error {
	var err error
	for attempt := 0; attempt < a.retries; attempt++ {
		if err = f(); err == nil {
			return nil
		}
	}
	return err
}

func (a *Applier) diverged(countryID, reason string, err error) {
	slog.Error("partial apply", "country", countryID, "reason", reason, "error", err)
	if ferr := a.store.FlagReview(countryID); ferr != nil {
		slog.Error("flagging country for review failed", "country", countryID, "error", ferr)
	}
	a.sink.Notify(notify.Operator,
		fmt.Sprintf("country %s needs reconciliation: %s: %v", countryID, reason, err))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinProblems(problems []string) string {
	out := ""
	for i, p := range problems {
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
}
