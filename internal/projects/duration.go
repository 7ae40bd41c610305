// Package projects tracks multi-year undertakings: how long they take,
// how far along they are against the game clock, and the exactly-once
// handling of their completion.
package projects

import (
	"math"
	"strings"
)

// Project categories. Each carries a base duration in game years.
const (
	CategoryConstruction   = "construction"
	CategoryResearch       = "research"
	CategoryMilitaryPrep   = "military-prep"
	CategoryReligious      = "religious"
	CategoryInfrastructure = "infrastructure"
	CategoryEconomic       = "economic"
)

var baseDurations = map[string]int{
	CategoryConstruction:   10,
	CategoryResearch:       5,
	CategoryMilitaryPrep:   3,
	CategoryReligious:      7,
	CategoryInfrastructure: 8,
	CategoryEconomic:       6,
}

// unknownBaseDuration applies to unrecognized categories.
const unknownBaseDuration = 7

var categoryAliases = map[string]string{
	"строительство":       CategoryConstruction,
	"исследование":        CategoryResearch,
	"военная подготовка":  CategoryMilitaryPrep,
	"религиозный проект":  CategoryReligious,
	"инфраструктура":      CategoryInfrastructure,
	"экономический проект": CategoryEconomic,
	"military preparation": CategoryMilitaryPrep,
	"religious project":    CategoryReligious,
	"economic project":     CategoryEconomic,
}

// NormalizeCategory folds an arbitrary category spelling to a canonical
// one. Unrecognized input is returned lowercased; Duration treats it as
// the unknown category.
func NormalizeCategory(category string) string {
	k := strings.ToLower(strings.TrimSpace(category))
	if _, ok := baseDurations[k]; ok {
		return k
	}
	if canonical, ok := categoryAliases[k]; ok {
		return canonical
	}
	return k
}

// Scale bounds. Scale expresses ambition, 1 (trivial) to 5 (monumental).
const (
	MinScale     = 1
	MaxScale     = 5
	DefaultScale = 3
)

// ClampScale forces a scale into bounds.
func ClampScale(s int) int {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// Duration computes a project's length in game years: the category base,
// scaled up by ambition, scaled down by technology. Always at least one
// year.
func Duration(category string, scale, techLevel int) int {
	base, ok := baseDurations[NormalizeCategory(category)]
	if !ok {
		base = unknownBaseDuration
	}
	scale = ClampScale(scale)
	if techLevel < 1 {
		techLevel = 1
	}

	years := float64(base) * (float64(scale) / 2.0) / (float64(techLevel) / 3.0)
	d := int(math.Round(years))
	if d < 1 {
		return 1
	}
	return d
}

// ProgressAndRemaining computes the completion percentage (0-100) and
// whole remaining years of a project at currentYear.
func ProgressAndRemaining(startYear, duration, currentYear int) (progress, remaining int) {
	if duration < 1 {
		duration = 1
	}
	elapsed := currentYear - startYear
	if elapsed <= 0 {
		return 0, duration
	}
	if elapsed >= duration {
		return 100, 0
	}
	return elapsed * 100 / duration, duration - elapsed
}

// Done reports whether a project with the given progress is complete.
func Done(progress int) bool {
	return progress >= 100
}
