package scheduler

import (
	"fmt"
	"strings"

	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/store"
)

const updateSystemPrompt = `You are the chronicler of an ancient-world strategy game. A new game year has begun. Write believable slow change for the era. Follow the requested output format exactly.`

func worldSituationPrompt(year int, countries []store.Country) string {
	names := make([]string, len(countries))
	for i, c := range countries {
		names[i] = c.Name
	}
	return fmt.Sprintf(`Year: %s. The known world holds these nations: %s.

Describe in one paragraph the broad state of the world this year: climate, trade winds, migrations, the mood of the age. No single nation's internal affairs. Respond with the paragraph only, no markers.`,
		gameclock.FormatYear(year), strings.Join(names, ", "))
}

func countryUpdatePrompt(c store.Country, year int, situation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year: %s.\nCountry: %s, ruled by %s.\n%s\n",
		gameclock.FormatYear(year), c.Name, c.Ruler, c.Description)
	if situation != "" {
		fmt.Fprintf(&b, "\nThe wider world: %s\n", situation)
	}
	b.WriteString(`
A year has passed. Describe how this nation drifted: small developments, not dramatic turns.

Respond in exactly this format:
YEAR: the year in one phrase
GENERAL CHANGES: 2-3 sentences on the year's drift
ASPECT CHANGES:
- aspect: one-line description of the change

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology. List only aspects that drifted this year.`)
	return b.String()
}
