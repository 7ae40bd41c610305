package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a generated world event delivered to one country. Global
// events produce one row per affected country, sharing a title.
type Event struct {
	ID           string `db:"id"`
	CountryID    string `db:"country_id"`
	Severity     string `db:"severity"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	Consequences string `db:"consequences"`
	Aspects      string `db:"aspects"` // JSON array of canonical aspect keys
	Impacts      string `db:"impacts"` // JSON object aspect -> impact text
	Year         int    `db:"year"`
	IsGlobal     bool   `db:"is_global"`
	CreatedAt    string `db:"created_at"`
}

// AspectList decodes the aspects column.
func (e Event) AspectList() []string {
	var out []string
	if err := json.Unmarshal([]byte(e.Aspects), &out); err != nil {
		return nil
	}
	return out
}

// EncodeAspects renders a list of aspect keys for the aspects column.
func EncodeAspects(aspects []string) string {
	if aspects == nil {
		aspects = []string{}
	}
	data, err := json.Marshal(aspects)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// ImpactMap decodes the impacts column.
func (e Event) ImpactMap() map[string]string {
	var out map[string]string
	if err := json.Unmarshal([]byte(e.Impacts), &out); err != nil {
		return nil
	}
	return out
}

// EncodeImpacts renders an aspect-to-impact map for the impacts column.
func EncodeImpacts(impacts map[string]string) string {
	if impacts == nil {
		impacts = map[string]string{}
	}
	data, err := json.Marshal(impacts)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SaveEvent inserts one event row.
func (db *DB) SaveEvent(e Event) error {
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if e.Aspects == "" {
		e.Aspects = "[]"
	}
	if e.Impacts == "" {
		e.Impacts = "{}"
	}
	_, err := db.conn.NamedExec(`
		INSERT INTO events (id, country_id, severity, title, description,
			consequences, aspects, impacts, year, is_global, created_at)
		VALUES (:id, :country_id, :severity, :title, :description,
			:consequences, :aspects, :impacts, :year, :is_global, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.Title, err)
	}
	return nil
}

// RecentEvents returns a country's newest events, newest first.
func (db *DB) RecentEvents(countryID string, limit int) ([]Event, error) {
	var out []Event
	err := db.conn.Select(&out,
		`SELECT * FROM events WHERE country_id = ? ORDER BY created_at DESC LIMIT ?`,
		countryID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events %s: %w", countryID, err)
	}
	return out, nil
}
