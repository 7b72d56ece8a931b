// Package store persists run snapshots, review episodes and users in
// Postgres, with a Redis alternative for snapshots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"quester/config"
	"quester/internal/memory"
	"quester/internal/workflow"
)

// Store wraps the Postgres connection. It implements workflow.SnapshotStore
// and memory.EpisodeStore.
type Store struct {
	DB *sql.DB
}

var (
	_ workflow.SnapshotStore = (*Store)(nil)
	_ memory.EpisodeStore    = (*Store)(nil)
)

// New opens and pings a Postgres connection from config.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("store: opening postgres: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveSnapshot upserts the run's snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap workflow.Snapshot) error {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("store: encoding state: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO runs (run_id, status, next_step, prompt, state, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (run_id) DO UPDATE SET
  status = EXCLUDED.status,
  next_step = EXCLUDED.next_step,
  prompt = EXCLUDED.prompt,
  state = EXCLUDED.state,
  updated_at = EXCLUDED.updated_at
`, snap.RunID, string(snap.Status), snap.NextStep, snap.Prompt, state, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: saving snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads a run's snapshot by id.
func (s *Store) GetSnapshot(ctx context.Context, runID string) (workflow.Snapshot, bool, error) {
	var (
		snap  workflow.Snapshot
		state []byte
	)
	snap.RunID = runID
	err := s.DB.QueryRowContext(ctx, `
SELECT status, next_step, prompt, state, updated_at FROM runs WHERE run_id=$1
`, runID).Scan(&snap.Status, &snap.NextStep, &snap.Prompt, &state, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return workflow.Snapshot{}, false, nil
	}
	if err != nil {
		return workflow.Snapshot{}, false, fmt.Errorf("store: loading snapshot: %w", err)
	}
	if err := json.Unmarshal(state, &snap.State); err != nil {
		return workflow.Snapshot{}, false, fmt.Errorf("store: decoding state: %w", err)
	}
	return snap, true, nil
}

// PruneSuspendedBefore removes suspended runs last touched before the cutoff.
func (s *Store) PruneSuspendedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM runs WHERE status='suspended' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: pruning suspended runs: %w", err)
	}
	return res.RowsAffected()
}

// Insert stores one review episode.
func (s *Store) Insert(ctx context.Context, ep memory.Episode) error {
	planned, err := json.Marshal(ep.PlannedSearches)
	if err != nil {
		return fmt.Errorf("store: encoding planned searches: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO episodes (id, user_id, original_query, planned_searches, decision, feedback_text, decision_context, query_complexity, search_quality, document, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, ep.ID, ep.UserID, ep.OriginalQuery, planned, ep.Decision, ep.FeedbackText,
		ep.DecisionContext, ep.QueryComplexity, ep.SearchQuality, ep.SearchableContent(), ep.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: inserting episode: %w", err)
	}
	return nil
}

// Search ranks the user's episodes against the query with Postgres full-text
// search.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]memory.Episode, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, original_query, planned_searches, decision, feedback_text, decision_context, query_complexity, search_quality, created_at
FROM episodes
WHERE user_id=$1 AND to_tsvector('english', document) @@ plainto_tsquery('english', $2)
ORDER BY ts_rank(to_tsvector('english', document), plainto_tsquery('english', $2)) DESC
LIMIT $3
`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: searching episodes: %w", err)
	}
	defer rows.Close()

	var out []memory.Episode
	for rows.Next() {
		var (
			ep      memory.Episode
			planned []byte
		)
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.OriginalQuery, &planned, &ep.Decision,
			&ep.FeedbackText, &ep.DecisionContext, &ep.QueryComplexity, &ep.SearchQuality, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning episode: %w", err)
		}
		if err := json.Unmarshal(planned, &ep.PlannedSearches); err != nil {
			return nil, fmt.Errorf("store: decoding planned searches: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1,$2,$3)`, id, email, passwordHash)
	if err != nil {
		return fmt.Errorf("store: creating user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, bool, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("store: loading user: %w", err)
	}
	return u, true, nil
}
