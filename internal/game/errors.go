package game

import "errors"

var (
	// ErrPartialApply means the relational store and the semantic store
	// diverged during an apply and retries did not heal it. The country
	// is flagged for manual reconciliation.
	ErrPartialApply = errors.New("game: state stores diverged")

	// ErrMalformed means the model response matched no expected layout
	// even after a retry. Nothing was applied.
	ErrMalformed = errors.New("game: unparseable model response")

	// ErrActionInFlight means the player already has an action being
	// resolved.
	ErrActionInFlight = errors.New("game: action already in flight")

	// ErrEraMismatch means the action was rejected as implausible for
	// the current era.
	ErrEraMismatch = errors.New("game: action does not fit the era")
)
