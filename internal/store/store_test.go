package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vkotenev/statecraft/internal/aspect"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCountryLifecycle(t *testing.T) {
	db := openTest(t)

	c := Country{ID: "p1", Name: "Akkadia", Ruler: "Sargon"}
	if err := db.CreateCountry(c); err != nil {
		t.Fatalf("CreateCountry: %v", err)
	}

	got, err := db.GetCountry("p1")
	if err != nil {
		t.Fatalf("GetCountry: %v", err)
	}
	if got.Name != "Akkadia" || got.Ruler != "Sargon" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt == "" || got.LastActive == "" {
		t.Error("timestamps not set")
	}

	stats, err := db.Stats("p1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != len(aspect.All) {
		t.Fatalf("got %d stats, want %d", len(stats), len(aspect.All))
	}
	for a, r := range stats {
		if r != aspect.InitialRating {
			t.Errorf("initial stat %s = %d", a, r)
		}
	}

	if _, err := db.GetCountry("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing country: got %v, want ErrNotFound", err)
	}

	if err := db.DeleteCountry("p1"); err != nil {
		t.Fatalf("DeleteCountry: %v", err)
	}
	if _, err := db.GetCountry("p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	stats, err = db.Stats("p1")
	if err != nil || len(stats) != 0 {
		t.Errorf("stats after delete: %v, %v", stats, err)
	}
}

func TestSetStatsClamps(t *testing.T) {
	db := openTest(t)
	if err := db.CreateCountry(Country{ID: "p1", Name: "Elam"}); err != nil {
		t.Fatal(err)
	}

	err := db.SetStats("p1", map[string]int{
		aspect.Economy:  9,
		aspect.Military: -2,
		aspect.Religion: 4,
	})
	if err != nil {
		t.Fatalf("SetStats: %v", err)
	}

	stats, err := db.Stats("p1")
	if err != nil {
		t.Fatal(err)
	}
	if stats[aspect.Economy] != 5 {
		t.Errorf("economy = %d, want clamped 5", stats[aspect.Economy])
	}
	if stats[aspect.Military] != 1 {
		t.Errorf("military = %d, want clamped 1", stats[aspect.Military])
	}
	if stats[aspect.Religion] != 4 {
		t.Errorf("religion = %d, want 4", stats[aspect.Religion])
	}
}

func TestAspectTexts(t *testing.T) {
	db := openTest(t)
	if err := db.CreateCountry(Country{ID: "p1", Name: "Ur"}); err != nil {
		t.Fatal(err)
	}

	if err := db.SetAspectText("p1", aspect.Religion, "A great ziggurat rises.", -2980); err != nil {
		t.Fatalf("SetAspectText: %v", err)
	}
	texts, err := db.AspectTexts("p1")
	if err != nil {
		t.Fatal(err)
	}
	if texts[aspect.Religion] != "A great ziggurat rises." {
		t.Errorf("religion text = %q", texts[aspect.Religion])
	}
	if texts[aspect.Economy] != "" {
		t.Errorf("economy text = %q, want empty", texts[aspect.Economy])
	}
}

func TestProblemsRoundTrip(t *testing.T) {
	db := openTest(t)
	if err := db.CreateCountry(Country{ID: "p1", Name: "Ur"}); err != nil {
		t.Fatal(err)
	}

	probs := []string{"Drought in the south", "Unrest among scribes"}
	if err := db.SetProblems("p1", probs); err != nil {
		t.Fatalf("SetProblems: %v", err)
	}
	c, err := db.GetCountry("p1")
	if err != nil {
		t.Fatal(err)
	}
	got := c.ProblemList()
	if len(got) != 2 || got[0] != probs[0] || got[1] != probs[1] {
		t.Errorf("problems = %v", got)
	}
}

func TestListActiveCountries(t *testing.T) {
	db := openTest(t)
	old := time.Now().Add(-30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	if err := db.CreateCountry(Country{ID: "stale", Name: "Old", LastActive: old, CreatedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateCountry(Country{ID: "fresh", Name: "New"}); err != nil {
		t.Fatal(err)
	}

	active, err := db.ListActiveCountries(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("ListActiveCountries: %v", err)
	}
	if len(active) != 1 || active[0].ID != "fresh" {
		t.Errorf("active = %+v", active)
	}
}

func TestProjectCompletionExactlyOnce(t *testing.T) {
	db := openTest(t)
	p := Project{
		ID:        uuid.NewString(),
		CountryID: "p1",
		Name:      "Great Temple",
		Category:  "religious",
		StartYear: -3000,
		Duration:  12,
	}
	if err := db.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	if err := db.MarkCompletionProcessed(p.ID); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := db.MarkCompletionProcessed(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second mark: got %v, want ErrNotFound", err)
	}

	got, err := db.GetProject(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CompletionProcessed || !got.Archived {
		t.Errorf("after mark: %+v", got)
	}
}

func TestInvalidateProjectProgress(t *testing.T) {
	db := openTest(t)
	active := Project{ID: "a", CountryID: "p1", Name: "Canal", Category: "infrastructure",
		StartYear: -3000, Duration: 10, Progress: 40, RemainingYears: 6}
	done := Project{ID: "b", CountryID: "p1", Name: "Wall", Category: "military-prep",
		StartYear: -3000, Duration: 3, Progress: 100, Completed: true,
		CompletionProcessed: true, Archived: true}
	for _, p := range []Project{active, done} {
		if err := db.CreateProject(p); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.InvalidateProjectProgress(); err != nil {
		t.Fatalf("InvalidateProjectProgress: %v", err)
	}

	a, _ := db.GetProject("a")
	if a.Progress != 0 || a.RemainingYears != 10 || a.Completed {
		t.Errorf("active project not reset: %+v", a)
	}
	b, _ := db.GetProject("b")
	if !b.CompletionProcessed || !b.Archived {
		t.Errorf("archived project lost completion flags: %+v", b)
	}
}

func TestCountriesWithActiveProjects(t *testing.T) {
	db := openTest(t)
	ps := []Project{
		{ID: "a", CountryID: "p1", Name: "Canal", Category: "infrastructure", StartYear: 0, Duration: 5},
		{ID: "b", CountryID: "p2", Name: "Wall", Category: "military-prep", StartYear: 0, Duration: 5, Archived: true},
	}
	for _, p := range ps {
		if err := db.CreateProject(p); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := db.CountriesWithActiveProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTest(t)
	e := Event{
		ID:          uuid.NewString(),
		CountryID:   "p1",
		Severity:    "good",
		Title:       "Bountiful Harvest",
		Description: "The river floods kindly.",
		Aspects:     EncodeAspects([]string{aspect.Economy, aspect.Society}),
		Year:        -2990,
	}
	if err := db.SaveEvent(e); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	events, err := db.RecentEvents("p1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	got := events[0].AspectList()
	if len(got) != 2 || got[0] != aspect.Economy {
		t.Errorf("aspects = %v", got)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTest(t)
	if _, err := db.GetMeta("epoch"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: got %v, want ErrNotFound", err)
	}
	if err := db.SetMeta("epoch", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMeta("epoch", "2026-02-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("epoch")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2026-02-01T00:00:00Z" {
		t.Errorf("value = %q", v)
	}
}
