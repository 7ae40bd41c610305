package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vkotenev/statecraft/internal/aspect"
)

// Country is a player-ruled nation. ID is the owning player's identifier.
// Timestamps are RFC 3339 UTC strings, which sort lexically.
type Country struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Ruler       string `db:"ruler"`
	Description string `db:"description"`
	Problems    string `db:"problems"` // JSON array of strings
	NeedsReview bool   `db:"needs_review"`
	CreatedAt   string `db:"created_at"`
	LastActive  string `db:"last_active"`
}

// ProblemList decodes the problems column. A corrupt column yields an
// empty list rather than an error.
func (c Country) ProblemList() []string {
	var out []string
	if err := json.Unmarshal([]byte(c.Problems), &out); err != nil {
		return nil
	}
	return out
}

// CreateCountry inserts a country together with its initial stats and
// empty aspect texts in one transaction.
func (db *DB) CreateCountry(c Country) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if c.CreatedAt == "" {
		c.CreatedAt = now
	}
	if c.LastActive == "" {
		c.LastActive = now
	}
	if c.Problems == "" {
		c.Problems = "[]"
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`
		INSERT INTO countries (id, name, ruler, description, problems, needs_review, created_at, last_active)
		VALUES (:id, :name, :ruler, :description, :problems, :needs_review, :created_at, :last_active)`, c)
	if err != nil {
		return fmt.Errorf("insert country: %w", err)
	}

	for a, rating := range aspect.InitialStats() {
		if _, err := tx.Exec(
			`INSERT INTO stats (country_id, aspect, rating) VALUES (?, ?, ?)`,
			c.ID, a, rating); err != nil {
			return fmt.Errorf("insert stat %s: %w", a, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO aspect_state (country_id, aspect, description, updated_year) VALUES (?, ?, '', 0)`,
			c.ID, a); err != nil {
			return fmt.Errorf("insert aspect state %s: %w", a, err)
		}
	}

	return tx.Commit()
}

// GetCountry loads one country by ID.
func (db *DB) GetCountry(id string) (Country, error) {
	var c Country
	err := db.conn.Get(&c, `SELECT * FROM countries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Country{}, ErrNotFound
	}
	if err != nil {
		return Country{}, fmt.Errorf("get country %s: %w", id, err)
	}
	return c, nil
}

// ListCountries returns all countries ordered by creation time.
func (db *DB) ListCountries() ([]Country, error) {
	var out []Country
	if err := db.conn.Select(&out, `SELECT * FROM countries ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return out, nil
}

// ListActiveCountries returns countries whose owner acted since the given
// time.
func (db *DB) ListActiveCountries(since time.Time) ([]Country, error) {
	var out []Country
	cutoff := since.UTC().Format(time.RFC3339)
	err := db.conn.Select(&out,
		`SELECT * FROM countries WHERE last_active >= ? ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list active countries: %w", err)
	}
	return out, nil
}

// UpdateDescription replaces a country's overall description.
func (db *DB) UpdateDescription(id, description string) error {
	_, err := db.conn.Exec(`UPDATE countries SET description = ? WHERE id = ?`, description, id)
	if err != nil {
		return fmt.Errorf("update description %s: %w", id, err)
	}
	return nil
}

// TouchCountry records owner activity at the given time.
func (db *DB) TouchCountry(id string, at time.Time) error {
	_, err := db.conn.Exec(`UPDATE countries SET last_active = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touch country %s: %w", id, err)
	}
	return nil
}

// FlagReview marks a country for manual reconciliation after a partial
// write.
func (db *DB) FlagReview(id string) error {
	_, err := db.conn.Exec(`UPDATE countries SET needs_review = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("flag review %s: %w", id, err)
	}
	return nil
}

// ClearReview removes the reconciliation flag.
func (db *DB) ClearReview(id string) error {
	_, err := db.conn.Exec(`UPDATE countries SET needs_review = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear review %s: %w", id, err)
	}
	return nil
}

// DeleteCountry removes a country and every row keyed by it.
func (db *DB) DeleteCountry(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM countries WHERE id = ?`,
		`DELETE FROM stats WHERE country_id = ?`,
		`DELETE FROM aspect_state WHERE country_id = ?`,
		`DELETE FROM projects WHERE country_id = ?`,
		`DELETE FROM events WHERE country_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete country %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Stats returns the aspect → rating map for a country.
func (db *DB) Stats(countryID string) (map[string]int, error) {
	rows := []struct {
		Aspect string `db:"aspect"`
		Rating int    `db:"rating"`
	}{}
	err := db.conn.Select(&rows, `SELECT aspect, rating FROM stats WHERE country_id = ?`, countryID)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", countryID, err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Aspect] = r.Rating
	}
	return out, nil
}

// SetStats upserts the given ratings in one transaction.
func (db *DB) SetStats(countryID string, ratings map[string]int) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for a, r := range ratings {
		_, err := tx.Exec(`
			INSERT INTO stats (country_id, aspect, rating) VALUES (?, ?, ?)
			ON CONFLICT(country_id, aspect) DO UPDATE SET rating = excluded.rating`,
			countryID, a, aspect.Clamp(r))
		if err != nil {
			return fmt.Errorf("set stat %s/%s: %w", countryID, a, err)
		}
	}
	return tx.Commit()
}

// AspectTexts returns the aspect → semantic description map for a country.
func (db *DB) AspectTexts(countryID string) (map[string]string, error) {
	rows := []struct {
		Aspect      string `db:"aspect"`
		Description string `db:"description"`
	}{}
	err := db.conn.Select(&rows,
		`SELECT aspect, description FROM aspect_state WHERE country_id = ?`, countryID)
	if err != nil {
		return nil, fmt.Errorf("aspect texts %s: %w", countryID, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Aspect] = r.Description
	}
	return out, nil
}

// SetAspectText replaces one aspect's semantic description.
func (db *DB) SetAspectText(countryID, asp, description string, year int) error {
	_, err := db.conn.Exec(`
		INSERT INTO aspect_state (country_id, aspect, description, updated_year) VALUES (?, ?, ?, ?)
		ON CONFLICT(country_id, aspect) DO UPDATE
		SET description = excluded.description, updated_year = excluded.updated_year`,
		countryID, asp, description, year)
	if err != nil {
		return fmt.Errorf("set aspect text %s/%s: %w", countryID, asp, err)
	}
	return nil
}

// SetProblems replaces a country's open problem list.
func (db *DB) SetProblems(countryID string, problems []string) error {
	if problems == nil {
		problems = []string{}
	}
	data, err := json.Marshal(problems)
	if err != nil {
		return fmt.Errorf("encode problems: %w", err)
	}
	_, err = db.conn.Exec(`UPDATE countries SET problems = ? WHERE id = ?`, string(data), countryID)
	if err != nil {
		return fmt.Errorf("set problems %s: %w", countryID, err)
	}
	return nil
}
