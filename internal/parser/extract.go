package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vkotenev/statecraft/internal/aspect"
)

// leftEdge guards the start of a name match. regexp's \b is ASCII-only
// and never fires next to Cyrillic letters, so the guard is spelled out.
const leftEdge = `(?:^|[^\p{L}])`

// ratingRes holds one extraction pattern per canonical aspect, matching
// all of "economy: 4", "economy - 4/5" and "экономика 4 из 5".
var ratingRes = map[string]*regexp.Regexp{}

func init() {
	for _, key := range aspect.All {
		var alts []string
		for _, name := range aspect.Names(key) {
			alts = append(alts, strings.ReplaceAll(regexp.QuoteMeta(name), " ", `\s+`))
		}
		pat := `(?i)` + leftEdge + `(?:` + strings.Join(alts, "|") + `)\s*[-–—:=]*\s*(\d{1,2})(?:\s*(?:/|из)\s*5)?`
		ratingRes[key] = regexp.MustCompile(pat)
	}
}

// extractRatings pulls a 1-5 rating for every aspect. Missing or
// unparseable aspects default to DefaultRating; out-of-range values are
// clamped. found reports whether at least one rating matched.
func extractRatings(text string) (map[string]int, bool) {
	out := make(map[string]int, len(aspect.All))
	found := false
	for _, key := range aspect.All {
		out[key] = aspect.DefaultRating
		m := ratingRes[key].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[key] = aspect.Clamp(v)
		found = true
	}
	return out, found
}

// resourceNames maps accepted spellings to the canonical goods of the
// ancient world. Russian spellings mirror the aspect aliases.
var resourceNames = map[string]string{
	"gold":   "gold",
	"silver": "silver",
	"grain":  "grain",
	"food":   "food",
	"timber": "timber",
	"wood":   "timber",
	"stone":  "stone",
	"iron":   "iron",
	"copper": "copper",
	"cloth":  "cloth",
	"spices": "spices",
	"horses": "horses",
	"cattle": "cattle",
	"slaves": "slaves",
	"labor":  "labor",

	"золото":       "gold",
	"серебро":      "silver",
	"зерно":        "grain",
	"еда":          "food",
	"дерево":       "timber",
	"камень":       "stone",
	"железо":       "iron",
	"медь":         "copper",
	"ткани":        "cloth",
	"специи":       "spices",
	"лошади":       "horses",
	"скот":         "cattle",
	"рабы":         "slaves",
	"рабочая сила": "labor",
}

// resourceRes holds two patterns per canonical resource: name then
// quantity ("grain: 1200", "зерна - 500") and quantity then name
// ("40 copper ingots").
var resourceRes = map[string][]*regexp.Regexp{}

func init() {
	alts := map[string][]string{}
	for name, key := range resourceNames {
		alts[key] = append(alts[key], strings.ReplaceAll(regexp.QuoteMeta(name), " ", `\s+`))
	}
	for key, names := range alts {
		group := `(?:` + strings.Join(names, "|") + `)[\p{L}]*`
		resourceRes[key] = []*regexp.Regexp{
			regexp.MustCompile(`(?i)` + leftEdge + group + `\s*[-–—:=]*\s*(\d{1,9})`),
			regexp.MustCompile(`(?i)(?:^|\D)(\d{1,9})\s*` + group),
		}
	}
}

// extractResources scans the fixed resource vocabulary for quantities.
// When a resource is mentioned more than once the largest quantity
// stands; names outside the vocabulary are ignored.
func extractResources(text string) map[string]int {
	out := map[string]int{}
	for key, res := range resourceRes {
		for _, re := range res {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					continue
				}
				if n > out[key] {
					out[key] = n
				}
			}
		}
	}
	return out
}

// problemWords flag a sentence as describing an open problem.
var problemWords = []string{
	"problem", "threat", "shortage", "drought", "famine", "unrest",
	"revolt", "plague", "raid", "crisis", "decline", "conflict",
	"discontent", "scarce", "struggle",
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]?`)

// MineProblems falls back to sentence mining when no PROBLEMS section is
// present: sentences mentioning a problem keyword, at most max.
func MineProblems(text string, max int) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		low := strings.ToLower(s)
		for _, w := range problemWords {
			if strings.Contains(low, w) {
				out = append(out, s)
				break
			}
		}
		if len(out) >= max {
			break
		}
	}
	return out
}
