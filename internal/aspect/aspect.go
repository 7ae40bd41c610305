// Package aspect defines the nine tracked dimensions of a country and the
// bounded 1-5 rating scale attached to each of them.
package aspect

import "strings"

// Canonical aspect keys. Every store row, delta and prompt uses these.
const (
	Economy      = "economy"
	Military     = "military"
	Religion     = "religion"
	Governance   = "governance"
	Construction = "construction"
	Diplomacy    = "diplomacy"
	Society      = "society"
	Territory    = "territory"
	Technology   = "technology"
)

// All lists the canonical keys in stable display order.
var All = []string{
	Economy,
	Military,
	Religion,
	Governance,
	Construction,
	Diplomacy,
	Society,
	Territory,
	Technology,
}

// Rating bounds. Ratings outside the range are clamped, never rejected.
const (
	MinRating = 1
	MaxRating = 5

	// DefaultRating is assumed when a narrative names an aspect but no
	// parseable rating.
	DefaultRating = 3

	// InitialRating is the rating of every aspect of a freshly founded
	// country.
	InitialRating = 1
)

// aliases maps accepted spellings (lowercase) to canonical keys. Model
// output occasionally drifts into synonyms or Russian, both of which the
// source prompts historically used.
var aliases = map[string]string{
	Economy:      Economy,
	Military:     Military,
	Religion:     Religion,
	Governance:   Governance,
	Construction: Construction,
	Diplomacy:    Diplomacy,
	Society:      Society,
	Territory:    Territory,
	Technology:   Technology,

	"trade":                Economy,
	"army":                 Military,
	"warfare":              Military,
	"culture":              Religion,
	"religion and culture": Religion,
	"religion/culture":     Religion,
	"politics":             Governance,
	"government":           Governance,
	"building":             Construction,
	"infrastructure":       Construction,
	"foreign policy":       Diplomacy,
	"relations":            Diplomacy,
	"people":               Society,
	"population":           Society,
	"lands":                Territory,
	"land":                 Territory,
	"science":              Technology,
	"knowledge":            Technology,

	"экономика":           Economy,
	"военное дело":        Military,
	"армия":               Military,
	"религия":             Religion,
	"религия и культура":  Religion,
	"культура":            Religion,
	"управление":          Governance,
	"политика":            Governance,
	"строительство":       Construction,
	"дипломатия":          Diplomacy,
	"общество":            Society,
	"территория":          Territory,
	"технологии":          Technology,
	"наука":               Technology,

	"внешняя политика":               Diplomacy,
	"управление и право":             Governance,
	"строительство и инфраструктура": Construction,
	"общественные отношения":         Society,
	"технологичность":                Technology,
}

// Names returns every accepted spelling of a canonical key, the key
// itself first. Used to build extraction patterns.
func Names(canonical string) []string {
	out := []string{canonical}
	for alias, key := range aliases {
		if key == canonical && alias != canonical {
			out = append(out, alias)
		}
	}
	return out
}

// Normalize maps a free-form aspect name to its canonical key. The second
// return is false for names that match no known aspect.
func Normalize(name string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(name))
	k = strings.Trim(k, ".:;,!\"'«»")
	k = strings.Join(strings.Fields(k), " ")
	canonical, ok := aliases[k]
	return canonical, ok
}

// Valid reports whether name normalizes to a known aspect.
func Valid(name string) bool {
	_, ok := Normalize(name)
	return ok
}

// Clamp forces a rating into the [MinRating, MaxRating] band.
func Clamp(v int) int {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// InitialStats returns the rating map of a new country: every aspect at
// InitialRating.
func InitialStats() map[string]int {
	m := make(map[string]int, len(All))
	for _, a := range All {
		m[a] = InitialRating
	}
	return m
}
