package events

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/store"
)

// Store is the relational surface the generator needs.
type Store interface {
	GetCountry(id string) (store.Country, error)
	SaveEvent(e store.Event) error
}

// Archive keeps event narratives for later retrieval.
type Archive interface {
	SaveEvent(countryID, text string) error
	Query(countryID, query string, k int) ([]string, error)
}

// Applier folds event changes into country state. Implemented by the
// game applier.
type Applier interface {
	ApplyChanges(ctx context.Context, countryID string, changes map[string]string) error
}

// YearSource tells the generator which game year it is.
type YearSource interface {
	CurrentYear() int
}

// Generator creates events and routes their effects.
type Generator struct {
	store   Store
	archive Archive
	gen     llm.Generator
	applier Applier
	clock   YearSource
	sink    notify.Sink
	genCfg  config.Generation
	mood    *Mood

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator wires an event generator. seed fixes the mood curve and
// the severity draws; pass 0 for a clock-derived seed.
func NewGenerator(st Store, archive Archive, gen llm.Generator, applier Applier,
	clock YearSource, sink notify.Sink, genCfg config.Generation, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		store:   st,
		archive: archive,
		gen:     gen,
		applier: applier,
		clock:   clock,
		sink:    sink,
		genCfg:  genCfg,
		mood:    NewMood(seed),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// PickAutonomousBand draws a severity band for a scheduled event,
// shaped by the mood of the current age.
func (g *Generator) PickAutonomousBand() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PickBand(g.rng, AutonomousWeights, g.mood.At(g.clock.CurrentYear()))
}

// pickGlobalBand draws a severity band for a world-spanning event.
func (g *Generator) pickGlobalBand() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PickBand(g.rng, GlobalWeights, g.mood.At(g.clock.CurrentYear()))
}

// fallbackTitles carries a title per band for responses whose TITLE
// section did not parse.
var fallbackTitles = map[string]string{
	VeryBad:  "Calamity",
	Bad:      "Troubled Times",
	Neutral:  "A Turn of Events",
	Good:     "Good Fortune",
	VeryGood: "A Golden Hour",
}

func titleOr(band, title string) string {
	if title != "" {
		return title
	}
	if t, ok := fallbackTitles[band]; ok {
		return t
	}
	return fallbackTitles[Neutral]
}

// GenerateEvent creates one event for one country in the given severity
// band, applies its aspect effects and notifies the owner.
func (g *Generator) GenerateEvent(ctx context.Context, countryID, band string) (store.Event, error) {
	country, err := g.store.GetCountry(countryID)
	if err != nil {
		return store.Event{}, fmt.Errorf("load country: %w", err)
	}
	year := g.clock.CurrentYear()

	docs, err := g.archive.Query(countryID, country.Name+" recent events", 2)
	if err != nil {
		slog.Warn("event context retrieval failed", "country", countryID, "error", err)
	}

	resp, err := g.gen.Generate(ctx, llm.Request{
		System:      eventSystemPrompt,
		Prompt:      eventPrompt(country, band, year, docs),
		MaxTokens:   g.genCfg.MaxTokens,
		Temperature: g.genCfg.Temperature,
	})
	if err != nil {
		return store.Event{}, fmt.Errorf("generate event: %w", err)
	}

	res := parser.Parse(resp, parser.Event)
	e := store.Event{
		ID:           uuid.NewString(),
		CountryID:    countryID,
		Severity:     band,
		Title:        titleOr(band, res.Fields["title"]),
		Description:  res.Fields["event"],
		Consequences: res.Fields["consequences"],
		Aspects:      store.EncodeAspects(res.Aspects),
		Impacts:      store.EncodeImpacts(res.AspectChanges),
		Year:         year,
	}
	if err := g.store.SaveEvent(e); err != nil {
		return store.Event{}, fmt.Errorf("save event: %w", err)
	}
	g.record(countryID, e)

	if changes := impactChanges(e, res); len(changes) > 0 {
		if err := g.applier.ApplyChanges(ctx, countryID, changes); err != nil {
			slog.Error("applying event changes failed", "country", countryID,
				"event", e.Title, "error", err)
		}
	}
	g.sink.Notify(countryID, eventMessage(e))

	slog.Info("event generated", "country", countryID, "severity", band,
		"title", e.Title, "aspects", len(res.Aspects))
	return e, nil
}

// GenerateGlobalEvent creates one world-spanning event and enriches it
// per country: the shared narrative is constant, each nation's concrete
// aspect effects are derived separately. One country failing does not
// stop the rest.
func (g *Generator) GenerateGlobalEvent(ctx context.Context, countryIDs []string) ([]store.Event, error) {
	var countries []store.Country
	for _, id := range countryIDs {
		c, err := g.store.GetCountry(id)
		if err != nil {
			slog.Warn("skipping unknown country in global event", "country", id, "error", err)
			continue
		}
		countries = append(countries, c)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("global event: no countries")
	}

	band := g.pickGlobalBand()
	year := g.clock.CurrentYear()

	resp, err := g.gen.Generate(ctx, llm.Request{
		System:      eventSystemPrompt,
		Prompt:      globalEventPrompt(countries, band, year),
		MaxTokens:   g.genCfg.MaxTokens,
		Temperature: g.genCfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate global event: %w", err)
	}

	res := parser.Parse(resp, parser.Event)
	title := titleOr(band, res.Fields["title"])
	narrative := strings.TrimSpace(res.Fields["event"] + "\n\n" + res.Fields["consequences"])

	affected := namedCountries(narrative, countries)
	if len(affected) == 0 {
		// A narrative that names no nation touches all of them.
		affected = countries
	}

	var out []store.Event
	for _, c := range affected {
		e, err := g.enrich(ctx, c, band, title, res, year)
		if err != nil {
			slog.Error("global event enrichment failed", "country", c.ID,
				"title", title, "error", err)
			continue
		}
		out = append(out, e)
	}
	slog.Info("global event generated", "severity", band, "title", title,
		"affected", len(out), "of", len(countries))
	return out, nil
}

// enrich derives one country's own aspect effects from the shared
// narrative and applies them.
func (g *Generator) enrich(ctx context.Context, c store.Country, band, title string,
	global parser.Result, year int) (store.Event, error) {

	changes := map[string]string{}
	resp, err := g.gen.Generate(ctx, llm.Request{
		System:      eventSystemPrompt,
		Prompt:      enrichPrompt(c, title, global),
		MaxTokens:   g.genCfg.MaxTokens,
		Temperature: g.genCfg.Temperature,
	})
	if err != nil {
		slog.Warn("global event enrichment generation failed", "country", c.ID, "error", err)
	} else {
		changes = parser.Parse(resp, parser.DailyUpdate).AspectChanges
	}

	aspects := make([]string, 0, len(changes))
	for a := range changes {
		aspects = append(aspects, a)
	}
	e := store.Event{
		ID:           uuid.NewString(),
		CountryID:    c.ID,
		Severity:     band,
		Title:        title,
		Description:  global.Fields["event"],
		Consequences: global.Fields["consequences"],
		Aspects:      store.EncodeAspects(aspects),
		Impacts:      store.EncodeImpacts(changes),
		Year:         year,
		IsGlobal:     true,
	}
	if err := g.store.SaveEvent(e); err != nil {
		return store.Event{}, fmt.Errorf("save event: %w", err)
	}
	g.record(c.ID, e)

	if len(changes) > 0 {
		if err := g.applier.ApplyChanges(ctx, c.ID, changes); err != nil {
			slog.Error("applying global event changes failed", "country", c.ID,
				"event", title, "error", err)
		}
	}
	g.sink.Notify(c.ID, eventMessage(e))
	return e, nil
}

// record archives the event narrative, best effort.
func (g *Generator) record(countryID string, e store.Event) {
	text := fmt.Sprintf("%s (%s): %s %s", e.Title, gameclock.FormatYear(e.Year),
		e.Description, e.Consequences)
	if err := g.archive.SaveEvent(countryID, strings.TrimSpace(text)); err != nil {
		slog.Warn("archiving event failed", "country", countryID, "event", e.Title, "error", err)
	}
}

// impactChanges builds the applier payload: each affected aspect gets
// its own impact text where the response gave one, and the event's
// consequence text otherwise.
func impactChanges(e store.Event, res parser.Result) map[string]string {
	shared := strings.TrimSpace(e.Consequences)
	if shared == "" {
		shared = strings.TrimSpace(e.Description)
	}
	out := make(map[string]string, len(res.Aspects))
	for _, a := range res.Aspects {
		if text := res.AspectChanges[a]; text != "" {
			out[a] = text
		} else if shared != "" {
			out[a] = shared
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// namedCountries filters countries to those the narrative mentions by
// name.
func namedCountries(narrative string, countries []store.Country) []store.Country {
	lower := strings.ToLower(narrative)
	var out []store.Country
	for _, c := range countries {
		if c.Name != "" && strings.Contains(lower, strings.ToLower(c.Name)) {
			out = append(out, c)
		}
	}
	return out
}

func eventMessage(e store.Event) string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Description != "" {
		b.WriteString("\n\n" + e.Description)
	}
	if e.Consequences != "" {
		b.WriteString("\n\n" + e.Consequences)
	}
	return b.String()
}
