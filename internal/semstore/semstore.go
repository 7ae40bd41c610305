// Package semstore is the semantic half of the world state: narrative
// snapshots of countries, projects and events, stored zstd-compressed in
// SQLite and retrieved by lexical overlap to ground new generations in
// prior ones.
package semstore

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Document kinds.
const (
	KindCountry = "country"
	KindProject = "project"
	KindEvent   = "event"
)

// Document is one stored narrative snapshot.
type Document struct {
	ID        string
	CountryID string
	Kind      string
	Text      string
	CreatedAt time.Time
}

// Store holds compressed documents. One encoder/decoder pair is shared
// across calls, per the zstd package's reuse guidance.
type Store struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	country_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_country ON documents(country_id, created_at);
`

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open semstore: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate semstore: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Store{conn: conn, enc: enc, dec: dec}, nil
}

// Close releases the connection and codec state.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.conn.Close()
}

// Save stores one document, assigning an ID when absent.
func (s *Store) Save(doc Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	body := s.enc.EncodeAll([]byte(doc.Text), nil)
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO documents (id, country_id, kind, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.CountryID, doc.Kind, body, doc.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// SaveCountry stores a country state snapshot.
func (s *Store) SaveCountry(countryID, text string) error {
	return s.Save(Document{CountryID: countryID, Kind: KindCountry, Text: text})
}

// SaveProject stores a project description snapshot.
func (s *Store) SaveProject(countryID, text string) error {
	return s.Save(Document{CountryID: countryID, Kind: KindProject, Text: text})
}

// SaveEvent stores an event narrative snapshot.
func (s *Store) SaveEvent(countryID, text string) error {
	return s.Save(Document{CountryID: countryID, Kind: KindEvent, Text: text})
}

// scanWindow bounds how many recent documents one query scores.
const scanWindow = 256

// Query returns up to k of the country's documents most lexically
// similar to query, best first. Recency breaks ties.
func (s *Store) Query(countryID, query string, k int) ([]string, error) {
	return s.query(`SELECT id, country_id, kind, body, created_at FROM documents
		WHERE country_id = ? ORDER BY created_at DESC LIMIT ?`, query, k, countryID)
}

// QueryOthers is Query over every country except the given one. Used to
// give diplomacy actions a view of the neighbors.
func (s *Store) QueryOthers(excludeCountryID, query string, k int) ([]string, error) {
	return s.query(`SELECT id, country_id, kind, body, created_at FROM documents
		WHERE country_id != ? ORDER BY created_at DESC LIMIT ?`, query, k, excludeCountryID)
}

type docRow struct {
	ID        string `db:"id"`
	CountryID string `db:"country_id"`
	Kind      string `db:"kind"`
	Body      []byte `db:"body"`
	CreatedAt string `db:"created_at"`
}

func (s *Store) query(sqlText, query string, k int, arg string) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	var rows []docRow
	if err := s.conn.Select(&rows, sqlText, arg, scanWindow); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query documents: %w", err)
	}

	queryTokens := tokenize(query)
	type scored struct {
		text  string
		score float64
		order int // scan order, newest first
	}
	var candidates []scored
	for i, r := range rows {
		raw, err := s.dec.DecodeAll(r.Body, nil)
		if err != nil {
			// A corrupt row should not block retrieval.
			continue
		}
		text := string(raw)
		candidates = append(candidates, scored{
			text:  text,
			score: overlap(queryTokens, tokenize(text)),
			order: i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	var out []string
	for _, c := range candidates {
		if len(out) == k {
			break
		}
		out = append(out, c.text)
	}
	return out, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "was": true, "were": true, "are": true,
	"has": true, "have": true, "its": true, "his": true, "her": true,
	"their": true, "will": true, "would": true, "into": true, "over": true,
}

func tokenize(text string) map[string]bool {
	out := map[string]bool{}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// overlap counts shared tokens, dampened by document vocabulary size so
// long rambling documents do not always win.
func overlap(query, doc map[string]bool) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	shared := 0
	for t := range query {
		if doc[t] {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(doc)))
}
