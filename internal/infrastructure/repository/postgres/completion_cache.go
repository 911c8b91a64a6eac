package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CompletionCache persists LLM responses so repeated runs over the same
// documents do not pay for identical prompts twice.
type CompletionCache struct {
	db  *sql.DB
	now func() time.Time
}

func NewCompletionCache(db *sql.DB) *CompletionCache {
	return &CompletionCache{db: db, now: time.Now}
}

func (c *CompletionCache) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent CLI runs.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024110301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS llm_completion_cache (
	cache_key TEXT PRIMARY KEY,
	payload BYTEA NOT NULL,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_llm_completion_cache_expires_at ON llm_completion_cache(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (c *CompletionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT payload
FROM llm_completion_cache
WHERE cache_key = $1 AND (expires_at IS NULL OR expires_at > $2)
`, key, c.now().UTC())

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("scan cache entry: %w", err)
	}
	return payload, true, nil
}

func (c *CompletionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO llm_completion_cache (cache_key, payload, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key) DO UPDATE
SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
`, key, value, expiresAt, now)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Prune removes expired rows and reports how many were deleted.
func (c *CompletionCache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
DELETE FROM llm_completion_cache
WHERE expires_at IS NOT NULL AND expires_at <= $1
`, c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cache rows affected: %w", err)
	}
	return n, nil
}
