package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Project is a multi-year undertaking. Progress and RemainingYears are a
// cache of the last sweep; the source of truth is StartYear + Duration
// against the game clock.
type Project struct {
	ID             string `db:"id"`
	CountryID      string `db:"country_id"`
	Name           string `db:"name"`
	Category       string `db:"category"`
	Description    string `db:"description"`
	Scale          int    `db:"scale"`
	StartYear      int    `db:"start_year"`
	Duration       int    `db:"duration_years"`
	Progress       int    `db:"progress"`
	RemainingYears int    `db:"remaining_years"`
	Completed      bool   `db:"completed"`
	// CompletionProcessed guards the exactly-once completion narrative.
	CompletionProcessed bool   `db:"completion_processed"`
	Archived            bool   `db:"archived"`
	CreatedAt           string `db:"created_at"`
}

// CreateProject inserts a new project.
func (db *DB) CreateProject(p Project) error {
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := db.conn.NamedExec(`
		INSERT INTO projects (id, country_id, name, category, description, scale,
			start_year, duration_years, progress, remaining_years,
			completed, completion_processed, archived, created_at)
		VALUES (:id, :country_id, :name, :category, :description, :scale,
			:start_year, :duration_years, :progress, :remaining_years,
			:completed, :completion_processed, :archived, :created_at)`, p)
	if err != nil {
		return fmt.Errorf("insert project %s: %w", p.Name, err)
	}
	return nil
}

// GetProject loads one project by ID.
func (db *DB) GetProject(id string) (Project, error) {
	var p Project
	err := db.conn.Get(&p, `SELECT * FROM projects WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// Projects returns every project of a country, archived ones included,
// oldest first.
func (db *DB) Projects(countryID string) ([]Project, error) {
	var out []Project
	err := db.conn.Select(&out,
		`SELECT * FROM projects WHERE country_id = ? ORDER BY created_at`, countryID)
	if err != nil {
		return nil, fmt.Errorf("projects %s: %w", countryID, err)
	}
	return out, nil
}

// ActiveProjects returns a country's non-archived projects.
func (db *DB) ActiveProjects(countryID string) ([]Project, error) {
	var out []Project
	err := db.conn.Select(&out,
		`SELECT * FROM projects WHERE country_id = ? AND archived = 0 ORDER BY created_at`, countryID)
	if err != nil {
		return nil, fmt.Errorf("active projects %s: %w", countryID, err)
	}
	return out, nil
}

// CountriesWithActiveProjects returns the IDs of countries that have at
// least one non-archived project.
func (db *DB) CountriesWithActiveProjects() ([]string, error) {
	var out []string
	err := db.conn.Select(&out,
		`SELECT DISTINCT country_id FROM projects WHERE archived = 0 ORDER BY country_id`)
	if err != nil {
		return nil, fmt.Errorf("countries with projects: %w", err)
	}
	return out, nil
}

// SetProjectProgress caches the sweep result for one project.
func (db *DB) SetProjectProgress(id string, progress, remaining int, completed bool) error {
	_, err := db.conn.Exec(
		`UPDATE projects SET progress = ?, remaining_years = ?, completed = ? WHERE id = ?`,
		progress, remaining, completed, id)
	if err != nil {
		return fmt.Errorf("set progress %s: %w", id, err)
	}
	return nil
}

// MarkCompletionProcessed flips the exactly-once completion guard and
// archives the project. Returns ErrNotFound if the project was already
// processed, which lets concurrent sweeps race safely.
func (db *DB) MarkCompletionProcessed(id string) error {
	res, err := db.conn.Exec(
		`UPDATE projects SET completion_processed = 1, archived = 1
		 WHERE id = ? AND completion_processed = 0`, id)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateProjectProgress clears cached progress on all non-archived
// projects. Used when the game epoch is reset: completion flags survive,
// progress is recomputed on the next sweep.
func (db *DB) InvalidateProjectProgress() error {
	_, err := db.conn.Exec(
		`UPDATE projects SET progress = 0, remaining_years = duration_years, completed = 0
		 WHERE archived = 0`)
	if err != nil {
		return fmt.Errorf("invalidate progress: %w", err)
	}
	return nil
}
