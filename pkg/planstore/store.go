// Package planstore persists fix plans in a local SQLite database so audit
// runs can be applied or inspected later.
package planstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"leakaudit/pkg/fixplan"
)

const schema = `
CREATE TABLE IF NOT EXISTS fix_plans (
	plan_id    TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	document   TEXT NOT NULL
);
`

// Entry is one stored plan, as listed by List.
type Entry struct {
	PlanID    string
	CreatedAt time.Time
}

// Store manages fix plans in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the database at dbPath (":memory:" works) and runs
// migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts the plan, replacing any existing plan with the same ID.
func (s *Store) Save(plan fixplan.FixPlan) error {
	doc, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO fix_plans (plan_id, created_at, document) VALUES (?, ?, ?)`,
		plan.PlanID, plan.CreatedAt.UTC().Format(time.RFC3339), string(doc),
	)
	if err != nil {
		return fmt.Errorf("save plan %s: %w", plan.PlanID, err)
	}
	return nil
}

// Load fetches a plan by ID.
func (s *Store) Load(planID string) (fixplan.FixPlan, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT document FROM fix_plans WHERE plan_id = ?`, planID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return fixplan.FixPlan{}, fmt.Errorf("plan %s not found", planID)
	}
	if err != nil {
		return fixplan.FixPlan{}, fmt.Errorf("load plan %s: %w", planID, err)
	}
	var plan fixplan.FixPlan
	if err := json.Unmarshal([]byte(doc), &plan); err != nil {
		return fixplan.FixPlan{}, fmt.Errorf("decode plan %s: %w", planID, err)
	}
	return plan, nil
}

// List returns stored plans, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT plan_id, created_at FROM fix_plans ORDER BY created_at DESC, plan_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.PlanID, &created); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
