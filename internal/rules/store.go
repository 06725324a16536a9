package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a rule id does not exist in the store.
var ErrNotFound = errors.New("rule not found")

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	position   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store persists the ordered rule list in a local SQLite database. Reads
// produce immutable snapshots; a run never observes a mid-iteration edit.
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (or creates) the rule database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening rule db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating rules table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// List returns every stored rule in priority order.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM rules ORDER BY position, created_at")
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		var r Rule
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding rule payload: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save inserts or updates a rule. New rules get a creation-timestamp id
// and append to the end of the priority order.
func (s *Store) Save(ctx context.Context, r Rule) (Rule, error) {
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	if r.ID == "" {
		r.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
		return r, s.insert(ctx, r)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return Rule{}, fmt.Errorf("encoding rule: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE rules SET name = ?, enabled = ?, payload = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		r.Name, r.Enabled, string(payload), r.ID)
	if err != nil {
		return Rule{}, fmt.Errorf("updating rule %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Unknown id on save means the caller supplied its own; keep it.
		return r, s.insert(ctx, r)
	}
	return r, nil
}

func (s *Store) insert(ctx context.Context, r Rule) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding rule: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, enabled, position, payload)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM rules), ?)`,
		r.ID, r.Name, r.Enabled, string(payload))
	if err != nil {
		return fmt.Errorf("inserting rule %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes a rule by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting rule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Toggle flips a rule's enabled flag and returns the new state.
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	var r Rule
	var payload string
	err := s.db.GetContext(ctx, &payload, "SELECT payload FROM rules WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("loading rule %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return false, fmt.Errorf("decoding rule payload: %w", err)
	}
	r.Enabled = !r.Enabled
	if _, err := s.Save(ctx, r); err != nil {
		return false, err
	}
	return r.Enabled, nil
}

// MoveUp swaps a rule with its predecessor in the priority order; MoveDown
// with its successor. Swapping past either end is a no-op.
func (s *Store) MoveUp(ctx context.Context, id string) error {
	return s.swap(ctx, id, true)
}

func (s *Store) MoveDown(ctx context.Context, id string) error {
	return s.swap(ctx, id, false)
}

func (s *Store) swap(ctx context.Context, id string, up bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reorder: %w", err)
	}
	defer tx.Rollback()

	var pos int
	err = tx.GetContext(ctx, &pos, "SELECT position FROM rules WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading rule position: %w", err)
	}

	cmp, order := "<", "DESC"
	if !up {
		cmp, order = ">", "ASC"
	}
	var neighborID string
	var neighborPos int
	row := tx.QueryRowxContext(ctx, fmt.Sprintf(
		"SELECT id, position FROM rules WHERE position %s ? ORDER BY position %s LIMIT 1", cmp, order), pos)
	if err := row.Scan(&neighborID, &neighborPos); errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		return fmt.Errorf("loading neighbor rule: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE rules SET position = ? WHERE id = ?", neighborPos, id); err != nil {
		return fmt.Errorf("reordering rule %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE rules SET position = ? WHERE id = ?", pos, neighborID); err != nil {
		return fmt.Errorf("reordering rule %s: %w", neighborID, err)
	}
	return tx.Commit()
}
