package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/store"
)

// systemPrompt frames every narrative call. Kept short: the per-call
// prompts carry the structure.
const systemPrompt = `You are the chronicler of an ancient-world strategy game. Nations rise and fall by your pen. Write vivid but concise prose grounded in the era. Follow the requested output format exactly: section markers in capitals, one per line.`

func actionPrompt(c store.Country, year int, ownContext, otherContext []string, action string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year: %s.\nCountry: %s, ruled by %s.\n", gameclock.FormatYear(year), c.Name, c.Ruler)
	if c.Description != "" {
		fmt.Fprintf(&b, "State of the nation: %s\n", c.Description)
	}
	if probs := c.ProblemList(); len(probs) > 0 {
		fmt.Fprintf(&b, "Open problems: %s\n", strings.Join(probs, "; "))
	}
	writeContext(&b, "Chronicle excerpts", ownContext)
	writeContext(&b, "Reports about other nations", otherContext)

	fmt.Fprintf(&b, `
The ruler orders: %q

Narrate how the order plays out. Respond in exactly this format:
EXECUTION: how the order was carried out
RESULT: what it achieved
CONSEQUENCES: longer-term effects
CHANGES:
- aspect: one-line description of the change

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology. List only aspects that actually changed.`, action)
	return b.String()
}

func writeContext(b *strings.Builder, label string, docs []string) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, d := range docs {
		fmt.Fprintf(b, "- %s\n", d)
	}
}

func eraCheckPrompt(year int, action string) string {
	return fmt.Sprintf(`The game is set in %s. A ruler orders: %q

Could this order plausibly be given in that era? Technology, institutions and geography of the time apply. Respond in exactly this format:
COMPATIBLE: yes or no
COMMENT: one sentence why`, gameclock.FormatYear(year), action)
}

func foldPrompt(c store.Country, asp, current, impact string) string {
	if current == "" {
		current = "(nothing recorded yet)"
	}
	return fmt.Sprintf(`Country: %s.
Current state of its %s: %s

New development: %s

Rewrite the state of %s in 2-3 sentences, merging the development into what was already true. Keep established facts unless the development contradicts them. Respond with the new description only, no markers.`,
		c.Name, asp, current, impact, asp)
}

func statsPrompt(c store.Country, texts map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s.\n", c.Name)
	aspects := make([]string, 0, len(texts))
	for a := range texts {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)
	for _, a := range aspects {
		if texts[a] != "" {
			fmt.Fprintf(&b, "%s: %s\n", a, texts[a])
		}
	}
	b.WriteString(`
Rate each aspect of this country from 1 (ruinous) to 5 (exemplary). Respond with one line per aspect in the form "aspect: N", nothing else.`)
	return b.String()
}

func problemsPrompt(c store.Country, texts map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s.\nState of the nation: %s\n", c.Name, c.Description)
	aspects := make([]string, 0, len(texts))
	for a := range texts {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)
	for _, a := range aspects {
		if texts[a] != "" {
			fmt.Fprintf(&b, "%s: %s\n", a, texts[a])
		}
	}
	b.WriteString(`
List the most pressing unresolved problems this country faces now, at most five. Respond in exactly this format:
PROBLEMS:
1. first problem
2. second problem`)
	return b.String()
}

func foundingPrompt(name, ruler string, year int) string {
	return fmt.Sprintf(`A new nation is founded in %s: %s, ruled by %s.

Invent its starting situation: land, people, livelihood. Modest beginnings, plausible for the era. Respond in exactly this format:
DESCRIPTION: 3-4 sentences about the young nation
PROBLEMS:
1. first starting problem
2. second starting problem
3. third starting problem`, gameclock.FormatYear(year), name, ruler)
}

// snapshot renders the country state for the semantic archive.
func snapshot(c store.Country, year int, stats map[string]int, texts map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s), ruled by %s.\n", c.Name, gameclock.FormatYear(year), c.Ruler)
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n", c.Description)
	}
	aspects := make([]string, 0, len(texts))
	for a := range texts {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)
	for _, a := range aspects {
		if texts[a] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s (%d/5): %s\n", a, stats[a], texts[a])
	}
	if probs := c.ProblemList(); len(probs) > 0 {
		fmt.Fprintf(&b, "Problems: %s\n", strings.Join(probs, "; "))
	}
	return b.String()
}
