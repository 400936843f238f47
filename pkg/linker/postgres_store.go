package linker

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists credential records in the link_sessions table, one
// row per session id. The schema ships in the repository's migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an established connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM link_sessions WHERE session_id = $1`, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, id string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO link_sessions (session_id, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (session_id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		id, data,
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM link_sessions WHERE session_id = $1`, id)
	return err
}
