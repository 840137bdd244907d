package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ubuntu/decorate"
)

// Connect opens a MySQL pool, pings it and creates the analyses table.
func Connect(ctx context.Context, dsn string) (db *sql.DB, err error) {
	defer decorate.OnError(&err, "mysql connect")

	db, err = sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	if err := EnsureSchema(ctx2, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
