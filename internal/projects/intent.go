package projects

import (
	"regexp"
	"strings"
)

// Intent is a project implied by a player's action text.
type Intent struct {
	Name     string
	Category string
	Scale    int
}

var intentRe = regexp.MustCompile(
	`(?i)\b(?:begin(?:s)? (?:the )?construction of|start(?:s)? building|build(?:s)?|construct(?:s)?|erect(?:s)?|found(?:s)?|establish(?:es)?|raise(?:s)?|dig(?:s)?)\s+(?:a |an |the )?([^.,;:!?\n]{3,60})`)

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryReligious, []string{"temple", "shrine", "ziggurat", "altar", "sanctuary", "monastery", "pantheon"}},
	{CategoryMilitaryPrep, []string{"wall", "fortress", "fort", "barracks", "tower", "citadel", "garrison", "army", "fleet"}},
	{CategoryInfrastructure, []string{"road", "canal", "aqueduct", "bridge", "harbor", "port", "irrigation", "dam", "well"}},
	{CategoryEconomic, []string{"market", "granary", "mint", "bazaar", "warehouse", "trade post", "caravanserai"}},
	{CategoryResearch, []string{"library", "academy", "observatory", "school", "archive", "scriptorium"}},
}

var scaleWords = []struct {
	scale int
	words []string
}{
	{5, []string{"grand", "great", "massive", "enormous", "monumental", "colossal"}},
	{4, []string{"large", "major", "mighty", "vast"}},
	{2, []string{"small", "modest", "humble"}},
	{1, []string{"tiny", "minor", "simple"}},
}

// DetectIntents scans free text for project-starting phrases. Best
// effort: a miss here only means no project gets tracked, the action
// still resolves.
func DetectIntents(text string) []Intent {
	var out []Intent
	seen := map[string]bool{}
	for _, m := range intentRe.FindAllStringSubmatch(text, 8) {
		name := strings.TrimSpace(m[1])
		name = strings.TrimRight(name, " \t\"'»")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Intent{
			Name:     name,
			Category: categoryFor(key),
			Scale:    scaleFor(key),
		})
	}
	return out
}

func categoryFor(name string) string {
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(name, w) {
				return ck.category
			}
		}
	}
	return CategoryConstruction
}

func scaleFor(name string) int {
	for _, sw := range scaleWords {
		for _, w := range sw.words {
			if strings.Contains(name, w) {
				return sw.scale
			}
		}
	}
	return DefaultScale
}
