package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/ubuntu/decorate"
)

// Connect opens a Postgres pool through lib/pq, pings it and creates the analyses table.
func Connect(ctx context.Context, dsn string) (db *sql.DB, err error) {
	defer decorate.OnError(&err, "postgres connect")

	db, err = sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx2, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS blob_analyses (
  id            TEXT        PRIMARY KEY,
  object_name   TEXT        NOT NULL,
  object_size   BIGINT      NOT NULL DEFAULT 0,
  kind          TEXT        NOT NULL,
  status        TEXT        NOT NULL,
  result_json   JSONB,
  error_kind    TEXT        NOT NULL DEFAULT '',
  error_message TEXT        NOT NULL DEFAULT '',
  summary       TEXT        NOT NULL DEFAULT '',
  result_url    TEXT        NOT NULL DEFAULT '',
  duration_ms   BIGINT      NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blob_analyses_created ON blob_analyses (created_at);
ALTER TABLE blob_analyses ALTER COLUMN result_json DROP NOT NULL, ALTER COLUMN result_json DROP DEFAULT;`
