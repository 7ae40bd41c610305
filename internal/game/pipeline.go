package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/projects"
	"github.com/vkotenev/statecraft/internal/store"
)

// PipelineStore is the store surface the pipeline needs beyond the
// applier's.
type PipelineStore interface {
	GetCountry(id string) (store.Country, error)
	CreateCountry(c store.Country) error
	UpdateDescription(id, description string) error
	SetProblems(countryID string, problems []string) error
}

// ContextArchive retrieves grounding documents for prompts.
type ContextArchive interface {
	SaveCountry(countryID, text string) error
	Query(countryID, query string, k int) ([]string, error)
	QueryOthers(excludeCountryID, query string, k int) ([]string, error)
}

// ProjectStarter begins tracking a project implied by an action.
// Implemented by the projects manager.
type ProjectStarter interface {
	Start(ctx context.Context, countryID, name, category string, scale int) (store.Project, error)
}

// Report is what the player sees after an action resolves. It is always
// well formed, including on failure paths.
type Report struct {
	Execution       string
	Result          string
	Consequences    string
	Changes         map[string]string
	ProjectsStarted []string
}

// Failure-path wording. The player always gets prose, never an error
// string.
const (
	fallbackExecution = "The order was given, but the chronicles of its execution are muddled."
	fallbackResult    = "What came of it is not yet clear; the scribes will revisit the records."
	fallbackTimeout   = "The chroniclers did not report back in time. The order was not carried out; try again."
)

// How many grounding documents go into an action prompt.
const (
	ownContextDocs   = 3
	otherContextDocs = 2
)

// Pipeline resolves player actions: era gate, context gathering, one
// generation (with one lower-temperature retry on parse failure), delta
// application, project intent detection.
type Pipeline struct {
	store    PipelineStore
	archive  ContextArchive
	applier  *Applier
	gen      llm.Generator
	clock    YearSource
	projects ProjectStarter
	genCfg   config.Generation
	checkEra bool

	inflight sync.Map // playerID -> struct{}
}

// NewPipeline wires a pipeline. projects may be nil, disabling intent
// tracking.
func NewPipeline(st PipelineStore, archive ContextArchive, applier *Applier, gen llm.Generator,
	clock YearSource, starter ProjectStarter, genCfg config.Generation, checkEra bool) *Pipeline {
	return &Pipeline{
		store:    st,
		archive:  archive,
		applier:  applier,
		gen:      gen,
		clock:    clock,
		projects: starter,
		genCfg:   genCfg,
		checkEra: checkEra,
	}
}

// Found creates a new country for a player and generates its starting
// situation. Generation failure degrades to a plain template; founding
// never fails for narrative reasons.
func (p *Pipeline) Found(ctx context.Context, playerID, name, ruler string) (store.Country, error) {
	c := store.Country{ID: playerID, Name: name, Ruler: ruler}
	if err := p.store.CreateCountry(c); err != nil {
		return store.Country{}, fmt.Errorf("create country: %w", err)
	}
	year := p.clock.CurrentYear()

	description := fmt.Sprintf("%s is a young nation led by %s, settling its first lands.", name, ruler)
	var problems []string

	resp, err := p.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      foundingPrompt(name, ruler, year),
		MaxTokens:   p.genCfg.MaxTokens,
		Temperature: p.genCfg.Temperature,
	})
	if err != nil {
		slog.Warn("founding narrative failed, using template", "player", playerID, "error", err)
	} else {
		res := parser.Parse(resp, parser.InitialDescription)
		if d := res.Fields["description"]; d != "" {
			description = d
		}
		problems = res.Items["problems"]
		if len(problems) == 0 {
			problems = parser.MineProblems(description, maxProblems)
		}
		if len(problems) > maxProblems {
			problems = problems[:maxProblems]
		}
	}

	if err := p.store.UpdateDescription(playerID, description); err != nil {
		return store.Country{}, fmt.Errorf("store description: %w", err)
	}
	if err := p.store.SetProblems(playerID, problems); err != nil {
		return store.Country{}, fmt.Errorf("store problems: %w", err)
	}
	if err := p.archive.SaveCountry(playerID, description); err != nil {
		slog.Warn("archiving founding snapshot failed", "player", playerID, "error", err)
	}

	c.Description = description
	return c, nil
}

// Resolve turns one player order into narrative and state change. The
// report is always populated; the error qualifies it (ErrActionInFlight,
// ErrEraMismatch, llm.ErrTimeout, ErrMalformed, ErrPartialApply).
func (p *Pipeline) Resolve(ctx context.Context, playerID, action string) (Report, error) {
	report := Report{Changes: map[string]string{}}

	if _, busy := p.inflight.LoadOrStore(playerID, struct{}{}); busy {
		report.Result = "Your previous order is still being carried out."
		return report, ErrActionInFlight
	}
	defer p.inflight.Delete(playerID)

	country, err := p.store.GetCountry(playerID)
	if err != nil {
		report.Result = fallbackResult
		return report, fmt.Errorf("load country: %w", err)
	}
	year := p.clock.CurrentYear()

	if p.checkEra {
		if rep, rejected := p.eraGate(ctx, year, action); rejected {
			return rep, ErrEraMismatch
		}
	}

	ownDocs, err := p.archive.Query(playerID, action, ownContextDocs)
	if err != nil {
		slog.Warn("context retrieval failed", "player", playerID, "error", err)
	}
	var otherDocs []string
	if touchesDiplomacy(action) {
		otherDocs, err = p.archive.QueryOthers(playerID, action, otherContextDocs)
		if err != nil {
			slog.Warn("neighbor context retrieval failed", "player", playerID, "error", err)
		}
	}

	prompt := actionPrompt(country, year, ownDocs, otherDocs, action)
	res, genErr := p.analyze(ctx, prompt)
	if genErr != nil {
		if errors.Is(genErr, llm.ErrTimeout) {
			// Nothing was carried out: the placeholder goes on the
			// execution slot, the outcome slots stay empty.
			report.Execution = fallbackTimeout
		} else {
			report.Execution = fallbackExecution
			report.Result = fallbackResult
		}
		return report, genErr
	}

	report.Execution = res.Fields["execution"]
	report.Result = res.Fields["result"]
	report.Consequences = res.Fields["consequences"]
	report.Changes = res.AspectChanges

	applied, applyErr := p.applier.Apply(ctx, playerID, Deltas{
		Aspects:         res.AspectChanges,
		RefreshStats:    true,
		RefreshProblems: true,
	})
	for _, skipped := range applied.Skipped {
		delete(report.Changes, skipped)
	}

	report.ProjectsStarted = p.startIntents(ctx, playerID, action, res)

	if applyErr != nil {
		return report, applyErr
	}
	return report, nil
}

// analyze runs the action generation, retrying once at lower temperature
// when the response does not parse. Timeouts are not retried.
func (p *Pipeline) analyze(ctx context.Context, prompt string) (parser.Result, error) {
	temps := []float64{p.genCfg.Temperature, p.genCfg.RetryTemperature}
	for i, temp := range temps {
		resp, err := p.gen.Generate(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      prompt,
			MaxTokens:   p.genCfg.MaxTokens,
			Temperature: temp,
		})
		if err != nil {
			if errors.Is(err, llm.ErrTimeout) {
				return parser.Result{}, err
			}
			if i == len(temps)-1 {
				return parser.Result{}, fmt.Errorf("action generation: %w", err)
			}
			continue
		}
		res := parser.Parse(resp, parser.ActionAnalysis)
		if res.OK {
			return res, nil
		}
		slog.Warn("action response unparseable", "attempt", i+1)
	}
	return parser.Result{}, ErrMalformed
}

// eraGate asks whether the action fits the era. Unavailable checks pass
// the action through: the gate protects flavor, not correctness.
func (p *Pipeline) eraGate(ctx context.Context, year int, action string) (Report, bool) {
	resp, err := p.gen.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      eraCheckPrompt(year, action),
		MaxTokens:   200,
		Temperature: p.genCfg.RetryTemperature,
	})
	if err != nil {
		slog.Warn("era check unavailable, letting action through", "error", err)
		return Report{}, false
	}
	res := parser.Parse(resp, parser.EraCheck)
	if !res.OK || res.Compatible {
		return Report{}, false
	}
	comment := res.Fields["comment"]
	if comment == "" {
		comment = "That order belongs to another age."
	}
	return Report{Result: comment, Changes: map[string]string{}}, true
}

func (p *Pipeline) startIntents(ctx context.Context, playerID, action string, res parser.Result) []string {
	if p.projects == nil {
		return nil
	}
	text := action + "\n" + res.Fields["execution"] + "\n" + res.Fields["result"]
	var started []string
	for _, intent := range projects.DetectIntents(text) {
		proj, err := p.projects.Start(ctx, playerID, intent.Name, intent.Category, intent.Scale)
		if err != nil {
			slog.Warn("starting project failed", "player", playerID, "project", intent.Name, "error", err)
			continue
		}
		started = append(started, proj.Name)
	}
	return started
}

// diplomacyWords mark actions that concern other nations, widening the
// prompt context beyond the player's own chronicle.
var diplomacyWords = []string{
	"embassy", "envoy", "ambassador", "alliance", "treaty", "negotiate",
	"diplomat", "tribute", "peace with", "war with", "trade with",
	"neighbor", "neighbour", "foreign",
}

func touchesDiplomacy(action string) bool {
	low := strings.ToLower(action)
	for _, w := range diplomacyWords {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}
