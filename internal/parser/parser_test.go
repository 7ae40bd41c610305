package parser

import (
	"strings"
	"testing"

	"github.com/vkotenev/statecraft/internal/aspect"
)

func TestParseActionAnalysis(t *testing.T) {
	raw := "RESULT: The harvest was rich.\n\nCHANGES:\n- economy: trade picked up\n"
	res := Parse(raw, ActionAnalysis)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Fields["result"] != "The harvest was rich." {
		t.Errorf("result = %q", res.Fields["result"])
	}
	if res.Fields["execution"] != "" {
		t.Errorf("execution = %q, want empty default", res.Fields["execution"])
	}
	if res.AspectChanges[aspect.Economy] != "trade picked up" {
		t.Errorf("changes = %v", res.AspectChanges)
	}
}

func TestParseSectionsReordered(t *testing.T) {
	raw := "CONSEQUENCES: Neighbors took note.\nEXECUTION: The army marched east.\nRESULT: A border fort fell."
	res := Parse(raw, ActionAnalysis)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Fields["execution"] != "The army marched east." {
		t.Errorf("execution = %q", res.Fields["execution"])
	}
	if res.Fields["consequences"] != "Neighbors took note." {
		t.Errorf("consequences = %q", res.Fields["consequences"])
	}
	if res.Fields["result"] != "A border fort fell." {
		t.Errorf("result = %q", res.Fields["result"])
	}
}

func TestParseTolleratesMarkdownNoise(t *testing.T) {
	raw := "```\n**RESULT:** The walls held.\n\n**CHANGES:**\n• Military: the garrison gained experience\n– экономика: repairs drained the treasury\n```"
	res := Parse(raw, ActionAnalysis)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Fields["result"] != "The walls held." {
		t.Errorf("result = %q", res.Fields["result"])
	}
	if res.AspectChanges[aspect.Military] != "the garrison gained experience" {
		t.Errorf("military change = %q", res.AspectChanges[aspect.Military])
	}
	if res.AspectChanges[aspect.Economy] != "repairs drained the treasury" {
		t.Errorf("economy change = %q", res.AspectChanges[aspect.Economy])
	}
}

func TestParseKeepsUnknownAspectNames(t *testing.T) {
	raw := "CHANGES:\n- economy: markets boomed\n- morale: spirits lifted"
	res := Parse(raw, ActionAnalysis)
	if res.AspectChanges[aspect.Economy] != "markets boomed" {
		t.Errorf("economy = %q", res.AspectChanges[aspect.Economy])
	}
	if res.AspectChanges["morale"] != "spirits lifted" {
		t.Errorf("unknown key dropped: %v", res.AspectChanges)
	}
}

func TestParseEmptyAndGarbage(t *testing.T) {
	for _, raw := range []string{"", "   \n\n  ", "The model rambled with no structure at all."} {
		res := Parse(raw, ActionAnalysis)
		if res.OK {
			t.Errorf("OK = true for %q", raw)
		}
		if res.Fields == nil || res.AspectChanges == nil || res.Items == nil {
			t.Fatalf("nil maps for %q", raw)
		}
	}
}

func TestParseEvent(t *testing.T) {
	raw := `TITLE: The Long Drought
EVENT: Rivers shrank to a trickle and the fields cracked.
CONSEQUENCES: Granaries emptied within a season.
AFFECTED ASPECTS: economy, society, religion`
	res := Parse(raw, Event)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Fields["title"] != "The Long Drought" {
		t.Errorf("title = %q", res.Fields["title"])
	}
	want := []string{aspect.Economy, aspect.Society, aspect.Religion}
	if len(res.Aspects) != 3 {
		t.Fatalf("aspects = %v", res.Aspects)
	}
	for i, a := range want {
		if res.Aspects[i] != a {
			t.Errorf("aspects[%d] = %q, want %q", i, res.Aspects[i], a)
		}
	}
	if len(res.AspectChanges) != 0 {
		t.Errorf("bare names carry no impact text, got %v", res.AspectChanges)
	}
}

func TestParseEventAspectImpacts(t *testing.T) {
	raw := `TITLE: The Long Drought
EVENT: Rivers shrank to a trickle and the fields cracked.
CONSEQUENCES: A hard season ahead.
AFFECTED ASPECTS:
- economy: granaries emptied
- society: unrest grew in the villages
- religion`
	res := Parse(raw, Event)

	if len(res.Aspects) != 3 {
		t.Fatalf("aspects = %v", res.Aspects)
	}
	if res.AspectChanges[aspect.Economy] != "granaries emptied" {
		t.Errorf("economy impact = %q", res.AspectChanges[aspect.Economy])
	}
	if res.AspectChanges[aspect.Society] != "unrest grew in the villages" {
		t.Errorf("society impact = %q", res.AspectChanges[aspect.Society])
	}
	// A bare name is still an affected aspect, just without its own text.
	if res.Aspects[2] != aspect.Religion {
		t.Errorf("aspects = %v", res.Aspects)
	}
	if _, ok := res.AspectChanges[aspect.Religion]; ok {
		t.Errorf("religion got impact text: %v", res.AspectChanges)
	}
}

func TestParseEventBulletAspects(t *testing.T) {
	raw := "AFFECTED ASPECTS:\n- military\n- territory\n- military"
	res := Parse(raw, Event)
	if len(res.Aspects) != 2 {
		t.Fatalf("aspects = %v, want deduplicated pair", res.Aspects)
	}
}

func TestParseDailyUpdate(t *testing.T) {
	raw := `YEAR: 2994 BCE
GENERAL CHANGES: A generation of peace let the villages grow.
ASPECT CHANGES:
- construction: new granaries along the river
- governance: elders formalized a council`
	res := Parse(raw, DailyUpdate)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Fields["year"] != "2994 BCE" {
		t.Errorf("year = %q", res.Fields["year"])
	}
	if len(res.AspectChanges) != 2 {
		t.Errorf("changes = %v", res.AspectChanges)
	}
}

func TestParseEraCheck(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"COMPATIBLE: yes\nCOMMENT: fits the bronze age", true},
		{"COMPATIBLE: Yes, entirely plausible.", true},
		{"COMPATIBLE: да", true},
		{"COMPATIBLE: no\nCOMMENT: gunpowder is four millennia away", false},
		{"COMMENT: unclear", false},
		{"", false},
	}
	for _, c := range cases {
		res := Parse(c.raw, EraCheck)
		if res.Compatible != c.want {
			t.Errorf("Parse(%q).Compatible = %v, want %v", c.raw, res.Compatible, c.want)
		}
	}
}

func TestParseInitialDescription(t *testing.T) {
	raw := `DESCRIPTION: A river kingdom of farmers and potters.
PROBLEMS:
1. Floods wash out the southern fields
2. No copper for tools
- Rival herders press from the steppe`
	res := Parse(raw, InitialDescription)

	if !res.OK {
		t.Fatal("OK = false")
	}
	probs := res.Items["problems"]
	if len(probs) != 3 {
		t.Fatalf("problems = %v", probs)
	}
	if probs[0] != "Floods wash out the southern fields" {
		t.Errorf("problems[0] = %q", probs[0])
	}
}

func TestParseStatsExtraction(t *testing.T) {
	raw := `Economy: 4
Military - 2/5
Религия: 5 из 5
governance 17`
	res := Parse(raw, StatsExtraction)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Ratings[aspect.Economy] != 4 {
		t.Errorf("economy = %d", res.Ratings[aspect.Economy])
	}
	if res.Ratings[aspect.Military] != 2 {
		t.Errorf("military = %d", res.Ratings[aspect.Military])
	}
	if res.Ratings[aspect.Religion] != 5 {
		t.Errorf("religion = %d", res.Ratings[aspect.Religion])
	}
	// Out of range clamps.
	if res.Ratings[aspect.Governance] != 5 {
		t.Errorf("governance = %d, want clamped 5", res.Ratings[aspect.Governance])
	}
	// Missing aspects default.
	if res.Ratings[aspect.Territory] != aspect.DefaultRating {
		t.Errorf("territory = %d, want default %d", res.Ratings[aspect.Territory], aspect.DefaultRating)
	}
}

func TestParseStatsExtractionFullRussianNames(t *testing.T) {
	raw := `внешняя политика: 4 из 5
управление и право - 2
строительство и инфраструктура: 5
общественные отношения: 1 из 5
технологичность: 3`
	res := Parse(raw, StatsExtraction)

	if !res.OK {
		t.Fatal("OK = false")
	}
	want := map[string]int{
		aspect.Diplomacy:    4,
		aspect.Governance:   2,
		aspect.Construction: 5,
		aspect.Society:      1,
		aspect.Technology:   3,
	}
	for a, v := range want {
		if res.Ratings[a] != v {
			t.Errorf("%s = %d, want %d", a, res.Ratings[a], v)
		}
	}
}

func TestParseStatsExtractionNothingFound(t *testing.T) {
	res := Parse("no numbers here", StatsExtraction)
	if res.OK {
		t.Error("OK = true")
	}
	for _, a := range aspect.All {
		if res.Ratings[a] != aspect.DefaultRating {
			t.Errorf("%s = %d, want default", a, res.Ratings[a])
		}
	}
}

func TestParseResourceExtraction(t *testing.T) {
	raw := "grain: 1200\n40 copper ingots in the storehouse\nnot a resource line\ntimber = 300\nзолото - 75"
	res := Parse(raw, ResourceExtraction)

	if !res.OK {
		t.Fatal("OK = false")
	}
	if res.Resources["grain"] != 1200 {
		t.Errorf("grain = %d", res.Resources["grain"])
	}
	if res.Resources["copper"] != 40 {
		t.Errorf("copper = %d", res.Resources["copper"])
	}
	if res.Resources["timber"] != 300 {
		t.Errorf("timber = %d", res.Resources["timber"])
	}
	if res.Resources["gold"] != 75 {
		t.Errorf("gold = %d", res.Resources["gold"])
	}
	if _, ok := res.Resources["obsidian"]; ok {
		t.Error("name outside the vocabulary extracted")
	}
}

func TestParseResourceExtractionKeepsMaxPerResource(t *testing.T) {
	raw := "grain: 800\nlater the scribes counted grain - 1200\nand again grain: 950"
	res := Parse(raw, ResourceExtraction)
	if res.Resources["grain"] != 1200 {
		t.Errorf("grain = %d, want the largest of the mentions", res.Resources["grain"])
	}
}

func TestParseNeverPanicsOnHostileInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("CHANGES:\n- economy: x\n", 5000),
		strings.Repeat("а", 200_000),
		"RESULT:" + strings.Repeat(":", 10_000),
		"\x00\x01\x02 CHANGES: - \xff\xfe: junk",
	}
	for _, schema := range []Schema{ActionAnalysis, Event, DailyUpdate, EraCheck,
		ProjectCompletion, CountryInteraction, StatsExtraction, ResourceExtraction, InitialDescription} {
		for _, in := range inputs {
			_ = Parse(in, schema)
		}
	}
}

func TestMineProblems(t *testing.T) {
	text := "The kingdom prospers. A drought looms in the west. Grain is scarce near the delta. The court enjoys music. Unrest simmers in the quarries. Revolt chatter spreads. A plague ship was turned away."
	got := MineProblems(text, 5)
	if len(got) != 5 {
		t.Fatalf("got %d problems: %v", len(got), got)
	}
	if !strings.Contains(got[0], "drought") {
		t.Errorf("first = %q", got[0])
	}
}

func TestMineProblemsNone(t *testing.T) {
	if got := MineProblems("All is well. The harvest sings.", 5); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}
