package semstore

import (
	"path/filepath"
	"strings"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sem.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndQueryRoundTrip(t *testing.T) {
	s := openTest(t)
	text := "The kingdom of Akkadia built granaries along the great river."
	if err := s.SaveCountry("p1", text); err != nil {
		t.Fatalf("SaveCountry: %v", err)
	}

	got, err := s.Query("p1", "granaries river", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0] != text {
		t.Errorf("got %v", got)
	}
}

func TestQueryRanksByOverlap(t *testing.T) {
	s := openTest(t)
	docs := []string{
		"Priests consecrated a new temple to the river goddess.",
		"Copper traders arrived from the eastern mountains with ingots.",
		"The army drilled new spear formations through the winter.",
	}
	for _, d := range docs {
		if err := s.SaveCountry("p1", d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Query("p1", "copper ingots traders", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d docs", len(got))
	}
	if !strings.Contains(got[0], "Copper traders") {
		t.Errorf("best match = %q", got[0])
	}
}

func TestQueryScopedToCountry(t *testing.T) {
	s := openTest(t)
	if err := s.SaveCountry("p1", "Akkadia dammed the river."); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCountry("p2", "Elam mined tin in the hills."); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query("p1", "river tin hills", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "Akkadia") {
		t.Errorf("got %v", got)
	}

	others, err := s.QueryOthers("p1", "tin hills", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || !strings.Contains(others[0], "Elam") {
		t.Errorf("others = %v", others)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s := openTest(t)
	got, err := s.Query("p1", "anything", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestZeroK(t *testing.T) {
	s := openTest(t)
	if err := s.SaveEvent("p1", "A comet crossed the sky."); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query("p1", "comet", 0)
	if err != nil || got != nil {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestCompressionSurvivesLongDocuments(t *testing.T) {
	s := openTest(t)
	long := strings.Repeat("The scribes recorded the flood levels year after year. ", 500)
	if err := s.SaveCountry("p1", long); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query("p1", "scribes flood levels", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != long {
		t.Error("long document did not round-trip")
	}
}
