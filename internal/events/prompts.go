package events

import (
	"fmt"
	"strings"

	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/parser"
	"github.com/vkotenev/statecraft/internal/store"
)

const eventSystemPrompt = `You are the chronicler of an ancient-world strategy game. Invent believable events for the era, neither miracles nor anachronisms. Follow the requested output format exactly.`

var bandTone = map[string]string{
	VeryBad:  "a disaster: plague, invasion, famine, the wrath of the heavens",
	Bad:      "a setback: failed harvest, border raid, unrest, a bad omen",
	Neutral:  "an ordinary turn: travelers, rumors, small discoveries, weather",
	Good:     "a stroke of luck: rich harvest, useful alliance, a skilled newcomer",
	VeryGood: "a triumph: great discovery, bountiful year, an age-defining gift",
}

func eventPrompt(c store.Country, band string, year int, docs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year: %s.\nCountry: %s, ruled by %s.\n%s\n",
		gameclock.FormatYear(year), c.Name, c.Ruler, c.Description)
	if len(docs) > 0 {
		b.WriteString("Chronicle excerpts:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	fmt.Fprintf(&b, `
Invent one event for this nation. Its character: %s.

Respond in exactly this format:
TITLE: a short name for the event
EVENT: what happened, 2-4 sentences
CONSEQUENCES: what it means for the nation
AFFECTED ASPECTS:
- aspect: how the event touches it, one line

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology. List only aspects the event actually touches.`,
		bandTone[band])
	return b.String()
}

func globalEventPrompt(countries []store.Country, band string, year int) string {
	names := make([]string, len(countries))
	for i, c := range countries {
		names[i] = c.Name
	}
	return fmt.Sprintf(`Year: %s.
The known world holds these nations: %s.

Invent one event that touches the whole known world. Its character: %s.
Name the nations it strikes hardest, if any stand out.

Respond in exactly this format:
TITLE: a short name for the event
EVENT: what happened, 3-5 sentences
CONSEQUENCES: what it means for the age
AFFECTED ASPECTS:
- aspect: how the event touches it, one line

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology.`,
		gameclock.FormatYear(year), strings.Join(names, ", "), bandTone[band])
}

func enrichPrompt(c store.Country, title string, global parser.Result) string {
	return fmt.Sprintf(`A world-spanning event, %q:
%s
%s

Country: %s, ruled by %s. %s

How does this event concretely touch this particular nation?

Respond in exactly this format:
ASPECT CHANGES:
- aspect: one-line description of the change

Aspects are: economy, military, religion, governance, construction, diplomacy, society, territory, technology. List only aspects that actually changed for this nation.`,
		title, global.Fields["event"], global.Fields["consequences"],
		c.Name, c.Ruler, c.Description)
}
