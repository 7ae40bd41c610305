package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vkotenev/statecraft/internal/aspect"
	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/store"
)

// Store is the relational surface the manager needs.
type Store interface {
	GetCountry(id string) (store.Country, error)
	Stats(countryID string) (map[string]int, error)
	CreateProject(p store.Project) error
	ActiveProjects(countryID string) ([]store.Project, error)
	Projects(countryID string) ([]store.Project, error)
	SetProjectProgress(id string, progress, remaining int, completed bool) error
	MarkCompletionProcessed(id string) error
}

// Archive stores project snapshots and retrieves grounding context.
type Archive interface {
	SaveProject(countryID, text string) error
	Query(countryID, query string, k int) ([]string, error)
}

// Applier folds completion changes into the country state. Implemented
// by the game applier.
type Applier interface {
	ApplyChanges(ctx context.Context, countryID string, changes map[string]string) error
}

// YearSource tells the manager what game year it is.
type YearSource interface {
	CurrentYear() int
}

// SweepResult is one country's sweep outcome. Completed includes every
// finished project, already-archived ones too, so repeated sweeps report
// the same picture.
type SweepResult struct {
	Completed  []store.Project
	InProgress []store.Project
}

// Manager creates projects and advances them against the clock.
type Manager struct {
	store   Store
	archive Archive
	gen     llm.Generator
	applier Applier
	clock   YearSource
	sink    notify.Sink
	genCfg  config.Generation
}

// NewManager wires a manager.
func NewManager(st Store, archive Archive, gen llm.Generator, applier Applier,
	clock YearSource, sink notify.Sink, genCfg config.Generation) *Manager {
	return &Manager{
		store:   st,
		archive: archive,
		gen:     gen,
		applier: applier,
		clock:   clock,
		sink:    sink,
		genCfg:  genCfg,
	}
}

// Start begins tracking a project. The duration comes from the category,
// scale and the country's technology rating; the description is
// generated best-effort.
func (m *Manager) Start(ctx context.Context, countryID, name, category string, scale int) (store.Project, error) {
	country, err := m.store.GetCountry(countryID)
	if err != nil {
		return store.Project{}, fmt.Errorf("load country: %w", err)
	}
	stats, err := m.store.Stats(countryID)
	if err != nil {
		return store.Project{}, fmt.Errorf("load stats: %w", err)
	}

	category = NormalizeCategory(category)
	scale = ClampScale(scale)
	year := m.clock.CurrentYear()

	p := store.Project{
		ID:             uuid.NewString(),
		CountryID:      countryID,
		Name:           name,
		Category:       category,
		Scale:          scale,
		StartYear:      year,
		Duration:       Duration(category, scale, stats[aspect.Technology]),
		RemainingYears: Duration(category, scale, stats[aspect.Technology]),
	}
	p.Description = m.describe(ctx, country, p)

	if err := m.store.CreateProject(p); err != nil {
		return store.Project{}, fmt.Errorf("create project: %w", err)
	}
	if err := m.archive.SaveProject(countryID, fmt.Sprintf("%s (begun %s): %s",
		p.Name, gameclock.FormatYear(year), p.Description)); err != nil {
		slog.Warn("archiving project failed", "project", p.Name, "error", err)
	}

	slog.Info("project started", "country", countryID, "project", p.Name,
		"category", p.Category, "duration_years", p.Duration)
	return p, nil
}

// Sweep recomputes every active project of a country against the clock,
// handling completions exactly once. Pure recomputation: sweeping twice
// at the same year yields the same result and no duplicate narrative.
func (m *Manager) Sweep(ctx context.Context, countryID string) (SweepResult, error) {
	var res SweepResult
	all, err := m.store.Projects(countryID)
	if err != nil {
		return res, fmt.Errorf("load projects: %w", err)
	}
	year := m.clock.CurrentYear()

	for _, p := range all {
		progress, remaining := ProgressAndRemaining(p.StartYear, p.Duration, year)
		done := Done(progress)

		if !p.Archived {
			if err := m.store.SetProjectProgress(p.ID, progress, remaining, done); err != nil {
				slog.Error("caching project progress failed", "project", p.ID, "error", err)
			}
		}
		p.Progress, p.RemainingYears, p.Completed = progress, remaining, done

		if !done {
			if !p.Archived {
				res.InProgress = append(res.InProgress, p)
			}
			continue
		}
		res.Completed = append(res.Completed, p)

		if p.CompletionProcessed {
			continue
		}
		// Claim the completion before side effects. A lost race means
		// another sweep got it.
		if err := m.store.MarkCompletionProcessed(p.ID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("claiming completion failed", "project", p.ID, "error", err)
			}
			continue
		}
		m.complete(ctx, countryID, p, year)
	}
	return res, nil
}

// complete generates the completion narrative, folds its changes into
// the country and tells the owner. Generation failure degrades to a
// plain message; the completion itself is already claimed.
func (m *Manager) complete(ctx context.Context, countryID string, p store.Project, year int) {
	message := fmt.Sprintf("%s is complete (%s).", p.Name, gameclock.FormatYear(year))

	country, err := m.store.GetCountry(countryID)
	if err != nil {
		slog.Error("loading country for completion failed", "project", p.ID, "error", err)
		m.sink.Notify(countryID, message)
		return
	}

	docs, err := m.archive.Query(countryID, p.Name+" "+p.Description, 2)
	if err != nil {
		slog.Warn("completion context retrieval failed", "project", p.ID, "error", err)
	}

	resp, err := m.gen.Generate(ctx, llm.Request{
		System:      completionSystemPrompt,
		Prompt:      completionPrompt(country, p, year, docs),
		MaxTokens:   m.genCfg.MaxTokens,
		Temperature: m.genCfg.Temperature,
	})
	if err != nil {
		slog.Warn("completion narrative failed", "project", p.ID, "error", err)
		m.sink.Notify(countryID, message)
		return
	}

	res := parser.Parse(resp, parser.ProjectCompletion)
	if event := res.Fields["event"]; event != "" {
		message = event
		if impact := res.Fields["impact"]; impact != "" {
			message += "\n\n" + impact
		}
	}
	if len(res.AspectChanges) > 0 {
		if err := m.applier.ApplyChanges(ctx, countryID, res.AspectChanges); err != nil {
			slog.Error("applying completion changes failed", "project", p.ID, "error", err)
		}
	}
	if err := m.archive.SaveProject(countryID, fmt.Sprintf("%s completed (%s): %s",
		p.Name, gameclock.FormatYear(year), message)); err != nil {
		slog.Warn("archiving completion failed", "project", p.ID, "error", err)
	}
	m.sink.Notify(countryID, message)
}

// describe generates a short project description, falling back to the
// bare name.
func (m *Manager) describe(ctx context.Context, country store.Country, p store.Project) string {
	resp, err := m.gen.Generate(ctx, llm.Request{
		System:      completionSystemPrompt,
		Prompt:      describePrompt(country, p),
		MaxTokens:   300,
		Temperature: m.genCfg.Temperature,
	})
	if err != nil || strings.TrimSpace(resp) == "" {
		return p.Name
	}
	return strings.TrimSpace(resp)
}
