package mysql

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS blob_analyses (
  id            VARCHAR(64)  NOT NULL PRIMARY KEY,
  object_name   VARCHAR(1024) NOT NULL,
  object_size   BIGINT       NOT NULL DEFAULT 0,
  kind          VARCHAR(16)  NOT NULL,
  status        VARCHAR(16)  NOT NULL,
  result_json   JSON         NULL,
  error_kind    VARCHAR(32)  NOT NULL DEFAULT '',
  error_message TEXT         NOT NULL,
  summary       TEXT         NOT NULL,
  result_url    VARCHAR(2048) NOT NULL DEFAULT '',
  duration_ms   BIGINT       NOT NULL DEFAULT 0,
  created_at    DATETIME(3)  NOT NULL,
  INDEX idx_blob_analyses_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Tables created before results became optional still have a NOT NULL column.
const relaxResult = `ALTER TABLE blob_analyses MODIFY result_json JSON NULL;`

// EnsureSchema creates the analyses table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, relaxResult)
	return err
}
