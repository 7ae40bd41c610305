package projects

import (
	"fmt"
	"strings"

	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/store"
)

const completionSystemPrompt = `You are the chronicler of an ancient-world strategy game. Write vivid but concise prose grounded in the era. Follow the requested output format exactly.`

func describePrompt(c store.Country, p store.Project) string {
	return fmt.Sprintf(`Country: %s, ruled by %s.
The nation begins a %s project: %q, expected to take %d years.

Describe the undertaking in 1-2 sentences, plausible for the era. Respond with the description only, no markers.`,
		c.Name, c.Ruler, p.Category, p.Name, p.Duration)
}

func completionPrompt(c store.Country, p store.Project, year int, docs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year: %s.\nCountry: %s, ruled by %s.\n", gameclock.FormatYear(year), c.Name, c.Ruler)
	if len(docs) > 0 {
		b.WriteString("Chronicle excerpts:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	fmt.Fprintf(&b, `
After %d years the %s project %q is finished. %s

Narrate its completion. Respond in exactly this format:
EVENT: how the completion was marked
IMPACT: what it means for the nation
ASPECT CHANGES:
- aspect: one-line description of the change

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology. List only aspects that actually changed.`,
		p.Duration, p.Category, p.Name, p.Description)
	return b.String()
}
