// Package parser turns free-text model narrative into structured data.
// Responses follow loose section layouts (MARKER: body); the parser is
// tolerant of missing sections, reordered sections, markdown noise and
// stray whitespace, and it never fails outright: whatever does not parse
// falls back to a declared default.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vkotenev/statecraft/internal/aspect"
)

// Schema identifies one of the recognized response layouts.
type Schema string

const (
	ActionAnalysis     Schema = "action-analysis"
	Event              Schema = "event"
	DailyUpdate        Schema = "daily-update"
	EraCheck           Schema = "era-check"
	ProjectCompletion  Schema = "project-completion"
	CountryInteraction Schema = "country-interaction"
	StatsExtraction    Schema = "stats-extraction"
	ResourceExtraction Schema = "resource-extraction"
	InitialDescription Schema = "initial-description"
)

// Result is the structured form of one response. All maps are non-nil.
// OK reports whether the response matched the layout at all; callers use
// it to decide between accepting defaults and retrying.
type Result struct {
	Schema Schema
	OK     bool

	// Fields holds plain text sections keyed by section name.
	Fields map[string]string

	// AspectChanges holds "aspect: change text" list entries. Known
	// aspect names are folded to canonical keys; unrecognized names are
	// kept as written (lowercased) for the caller to skip and log.
	AspectChanges map[string]string

	// Aspects holds affected-aspect name lists, canonical keys only.
	// For the event layout, entries written as "name: impact" also land
	// in AspectChanges with their impact text.
	Aspects []string

	// Items holds free-form bullet lists keyed by section name.
	Items map[string][]string

	// Ratings holds extracted 1-5 ratings keyed by canonical aspect.
	Ratings map[string]int

	// Resources holds extracted "name: quantity" pairs.
	Resources map[string]int

	// Compatible is the era-check verdict. Defaults to false.
	Compatible bool
}

type sectionKind int

const (
	kindText sectionKind = iota
	kindAspectChanges
	kindAspectImpacts
	kindItems
)

type section struct {
	key    string
	marker string
	kind   sectionKind
}

var layouts = map[Schema][]section{
	ActionAnalysis: {
		{"execution", "EXECUTION", kindText},
		{"result", "RESULT", kindText},
		{"consequences", "CONSEQUENCES", kindText},
		{"changes", "CHANGES", kindAspectChanges},
	},
	Event: {
		{"title", "TITLE", kindText},
		{"event", "EVENT", kindText},
		{"consequences", "CONSEQUENCES", kindText},
		{"aspects", "AFFECTED ASPECTS", kindAspectImpacts},
	},
	DailyUpdate: {
		{"year", "YEAR", kindText},
		{"general", "GENERAL CHANGES", kindText},
		{"changes", "ASPECT CHANGES", kindAspectChanges},
	},
	EraCheck: {
		{"compatible", "COMPATIBLE", kindText},
		{"comment", "COMMENT", kindText},
	},
	ProjectCompletion: {
		{"event", "EVENT", kindText},
		{"impact", "IMPACT", kindText},
		{"changes", "ASPECT CHANGES", kindAspectChanges},
	},
	CountryInteraction: {
		{"meeting", "MEETING", kindText},
		{"result", "RESULT", kindText},
		{"relations", "RELATIONS", kindText},
		{"influence", "INFLUENCE", kindText},
	},
	InitialDescription: {
		{"description", "DESCRIPTION", kindText},
		{"problems", "PROBLEMS", kindItems},
	},
}

// markerRe matches a section marker tolerantly: any case, flexible inner
// whitespace, optional decoration before the colon.
var markerRes = map[Schema]map[string]*regexp.Regexp{}

func init() {
	for schema, secs := range layouts {
		markerRes[schema] = make(map[string]*regexp.Regexp, len(secs))
		for _, s := range secs {
			words := strings.Fields(strings.ToLower(s.marker))
			pat := `(?i)\b` + strings.Join(words, `\s+`) + `\s*[:：]`
			markerRes[schema][s.key] = regexp.MustCompile(pat)
		}
	}
}

// maxInput caps the text the parser will scan. Model responses are a few
// kilobytes; anything past the cap is noise.
const maxInput = 64 * 1024

// Parse extracts schema's sections from raw. It never panics and never
// returns an error: a response that matches nothing yields a Result with
// OK false and every section at its default.
func Parse(raw string, schema Schema) Result {
	res := Result{
		Schema:        schema,
		Fields:        map[string]string{},
		AspectChanges: map[string]string{},
		Items:         map[string][]string{},
		Ratings:       map[string]int{},
		Resources:     map[string]int{},
	}

	text := normalize(raw)

	switch schema {
	case StatsExtraction:
		res.Ratings, res.OK = extractRatings(text)
		return res
	case ResourceExtraction:
		res.Resources = extractResources(text)
		res.OK = len(res.Resources) > 0
		return res
	}

	secs, known := layouts[schema]
	if !known || text == "" {
		return res
	}

	type hit struct {
		sec        section
		start, end int
	}
	var hits []hit
	for _, s := range secs {
		loc := markerRes[schema][s.key].FindStringIndex(text)
		if loc != nil {
			hits = append(hits, hit{sec: s, start: loc[0], end: loc[1]})
		}
	}
	if len(hits) == 0 {
		return res
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	res.OK = true
	for i, h := range hits {
		stop := len(text)
		if i+1 < len(hits) {
			stop = hits[i+1].start
		}
		body := strings.TrimSpace(text[h.end:stop])

		switch h.sec.kind {
		case kindText:
			res.Fields[h.sec.key] = body
		case kindAspectChanges:
			res.AspectChanges = parseAspectChanges(body)
		case kindAspectImpacts:
			res.Aspects, res.AspectChanges = parseAspectImpacts(body)
		case kindItems:
			res.Items[h.sec.key] = parseItems(body)
		}
	}

	if schema == EraCheck {
		res.Compatible = parseVerdict(res.Fields["compatible"])
	}
	return res
}

// normalize flattens the response into a form the section scanner can
// work with: fences and carriage returns gone, exotic bullets and dashes
// unified, runs of blank lines collapsed.
func normalize(raw string) string {
	if len(raw) > maxInput {
		raw = raw[:maxInput]
	}
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.TrimSpace(s)

	// Markdown code fences around the whole response.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "text")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, " ", " ")
	s = bulletRe.ReplaceAllString(s, "- ")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "**", "")
	return s
}

var (
	bulletRe   = regexp.MustCompile(`(?m)^[ \t]*[•*–—▪‣]\s*`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
	itemKVRe   = regexp.MustCompile(`^-?\s*([^:：]+)[:：]\s*(.+)$`)
)

// parseAspectChanges reads "- aspect: change text" lines. Later entries
// for the same aspect win.
func parseAspectChanges(body string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := itemKVRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, text := m[1], strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		if canonical, ok := aspect.Normalize(name); ok {
			out[canonical] = text
		} else {
			key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "-")))
			if key != "" {
				out[key] = text
			}
		}
	}
	return out
}

// parseAspectImpacts reads an affected-aspect list. Bullet lines of the
// form "- aspect: impact" yield both the name and its impact text; bare
// names, bulleted or comma separated, yield the name alone. Only
// recognized aspects are kept.
func parseAspectImpacts(body string) ([]string, map[string]string) {
	var names []string
	changes := map[string]string{}
	seen := map[string]bool{}
	add := func(canonical string) {
		if !seen[canonical] {
			seen[canonical] = true
			names = append(names, canonical)
		}
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := itemKVRe.FindStringSubmatch(line); m != nil {
			if canonical, ok := aspect.Normalize(m[1]); ok {
				if text := strings.TrimSpace(m[2]); text != "" {
					changes[canonical] = text
				}
				add(canonical)
				continue
			}
		}
		for _, f := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';'
		}) {
			f = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(f), "-"))
			if canonical, ok := aspect.Normalize(f); ok {
				add(canonical)
			}
		}
	}
	return names, changes
}

// parseItems reads bullet lines as free strings. Lines without a bullet
// are kept too so numbered or bare lists survive.
func parseItems(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "-")
		line = numberedRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

var numberedRe = regexp.MustCompile(`^\d+[.)]\s*`)

// parseVerdict interprets an era-check answer. Anything that is not a
// clear yes is a no.
func parseVerdict(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, yes := range []string{"yes", "true", "compatible", "да"} {
		if strings.HasPrefix(v, yes) {
			return true
		}
	}
	return false
}

// String renders a compact debug form.
func (r Result) String() string {
	return fmt.Sprintf("parser.Result{%s ok=%v fields=%d changes=%d}",
		r.Schema, r.OK, len(r.Fields), len(r.AspectChanges))
}
