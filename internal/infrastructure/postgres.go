package infrastructure

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// connectPostgres acquires the process-wide connection pool. The pool is
// handed to Bootstrap's cleanup chain; nothing else closes it.
func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(connectCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
