package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// SQLName is the database/sql driver name registered for d.
func SQLName(d Driver) string {
	switch d {
	case DriverPostgres:
		return "pgx"
	default:
		return string(d)
	}
}

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:rubricscore.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		if dsn == "" {
			dsn = "postgres://localhost:5432/rubricscore?sslmode=disable"
		}
	case DriverMySQL:
		if dsn == "" {
			dsn = "root@tcp(localhost:3306)/rubricscore?parseTime=true"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(SQLName(driver), dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ensureSchema runs one statement at a time; the mysql driver rejects
// multi-statement Exec unless the DSN opts in.
func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema []string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	case DriverMySQL:
		schema = schemaMySQL
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

var schemaSQLite = []string{
	`PRAGMA foreign_keys=ON`,
	`CREATE TABLE IF NOT EXISTS evaluations (
  id TEXT PRIMARY KEY,
  rubric_id TEXT NOT NULL DEFAULT '',
  rubric_name TEXT NOT NULL DEFAULT '',
  text_key TEXT NOT NULL DEFAULT '',  -- blob key of the extracted text, if stored
  final_grade REAL NOT NULL,
  weight_scale TEXT NOT NULL,
  created_at INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS criterion_results (
  evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
  criterion_key TEXT NOT NULL,
  nivel TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  confidence REAL NOT NULL DEFAULT 0,
  peso REAL NOT NULL DEFAULT 0,
  feedback TEXT NOT NULL DEFAULT '',
  chunks INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',     -- set when the criterion failed
  PRIMARY KEY (evaluation_id, criterion_key)
)`,
}

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS evaluations (
  id TEXT PRIMARY KEY,
  rubric_id TEXT NOT NULL DEFAULT '',
  rubric_name TEXT NOT NULL DEFAULT '',
  text_key TEXT NOT NULL DEFAULT '',
  final_grade DOUBLE PRECISION NOT NULL,
  weight_scale TEXT NOT NULL,
  created_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS criterion_results (
  evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
  criterion_key TEXT NOT NULL,
  nivel TEXT NOT NULL DEFAULT '',
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  peso DOUBLE PRECISION NOT NULL DEFAULT 0,
  feedback TEXT NOT NULL DEFAULT '',
  chunks INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (evaluation_id, criterion_key)
)`,
}

var schemaMySQL = []string{
	`CREATE TABLE IF NOT EXISTS evaluations (
  id VARCHAR(64) PRIMARY KEY,
  rubric_id VARCHAR(255) NOT NULL DEFAULT '',
  rubric_name VARCHAR(255) NOT NULL DEFAULT '',
  text_key VARCHAR(512) NOT NULL DEFAULT '',
  final_grade DOUBLE NOT NULL,
  weight_scale VARCHAR(16) NOT NULL,
  created_at BIGINT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS criterion_results (
  evaluation_id VARCHAR(64) NOT NULL,
  criterion_key VARCHAR(255) NOT NULL,
  nivel VARCHAR(255) NOT NULL DEFAULT '',
  score DOUBLE NOT NULL DEFAULT 0,
  confidence DOUBLE NOT NULL DEFAULT 0,
  peso DOUBLE NOT NULL DEFAULT 0,
  feedback TEXT NOT NULL,
  chunks INT NOT NULL DEFAULT 0,
  error TEXT NOT NULL,
  PRIMARY KEY (evaluation_id, criterion_key),
  FOREIGN KEY (evaluation_id) REFERENCES evaluations(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
