package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func Connect(driver, connString string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, connString)
	if err != nil {
		return nil, err
	}

	// A single writer avoids SQLITE_BUSY between pooled connections.
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

var schemas = map[string]string{
	"sqlite": `CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		frequency TEXT,
		assigned_to TEXT,
		points INTEGER,
		completed BOOLEAN NOT NULL DEFAULT 0
	)`,
	"postgres": `CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		frequency TEXT,
		assigned_to TEXT,
		points BIGINT,
		completed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	"mysql": `CREATE TABLE IF NOT EXISTS tasks (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		frequency TEXT,
		assigned_to TEXT,
		points BIGINT,
		completed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Initialize creates the tasks table if it does not exist yet.
func Initialize(ctx context.Context, db *sqlx.DB) error {
	ddl, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}
