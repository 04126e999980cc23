package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jgarzik/yo/internal/cost"
)

// Store persists turn statistics across process restarts so a `status`
// CLI invocation can report accumulated cost/tokens for a session without
// the process that ran it still being alive. Pure-Go driver (no cgo),
// registered under "sqlite" by modernc.org/sqlite's init().
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the sqlite database at path and
// ensures its schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session store: %w", err)
	}
	return &Store{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	cwd        TEXT NOT NULL,
	model      TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS turn_stats (
	session_id    TEXT PRIMARY KEY REFERENCES sessions(id),
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	tool_uses     INTEGER NOT NULL,
	updated_at    DATETIME NOT NULL
);
`

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSession inserts a session row if one does not already exist.
func (s *Store) EnsureSession(ctx context.Context, id, cwd, model string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, cwd, model, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, cwd, model, now, now)
	return err
}

// SaveStats upserts the accumulated Stats for sessionID, replacing
// whatever total was previously recorded: callers persist the session's
// running total, not a per-turn delta.
func (s *Store) SaveStats(ctx context.Context, sessionID string, st cost.Stats) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turn_stats (session_id, input_tokens, output_tokens, cost_usd, tool_uses, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cost_usd = excluded.cost_usd,
			tool_uses = excluded.tool_uses,
			updated_at = excluded.updated_at
	`, sessionID, st.InputTokens, st.OutputTokens, st.CostUSD, st.ToolUses, now)
	return err
}

// LoadStats returns the persisted Stats for sessionID, or the zero value
// if no row exists yet.
func (s *Store) LoadStats(ctx context.Context, sessionID string) (cost.Stats, error) {
	var st cost.Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT input_tokens, output_tokens, cost_usd, tool_uses
		FROM turn_stats WHERE session_id = ?
	`, sessionID)
	err := row.Scan(&st.InputTokens, &st.OutputTokens, &st.CostUSD, &st.ToolUses)
	if err == sql.ErrNoRows {
		return cost.Stats{}, nil
	}
	if err != nil {
		return cost.Stats{}, err
	}
	return st, nil
}

// ListSessions returns every session ID this store knows about, most
// recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
