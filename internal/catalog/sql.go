package catalog

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/errs"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

const createPartitions = `CREATE TABLE IF NOT EXISTS partitions (
	tbl      TEXT    NOT NULL,
	year     INTEGER NOT NULL,
	month    INTEGER NOT NULL,
	location TEXT    NOT NULL,
	present  INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (tbl, year, month)
)`

// SQLCatalog keeps partitions in a SQLite database with a single writer.
type SQLCatalog struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenSQL(path string) (*SQLCatalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, Error.New("open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(createPartitions); err != nil {
		db.Close()
		return nil, Error.New("init schema: %v", err)
	}
	return &SQLCatalog{db: db}, nil
}

func (c *SQLCatalog) DropPartitionIfExists(ctx context.Context, table string, key model.PartitionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`UPDATE partitions SET present = 0 WHERE tbl = ? AND year = ? AND month = ?`,
		table, key.Year, key.Month)
	return Error.Wrap(err)
}

func (c *SQLCatalog) AddPartition(ctx context.Context, table string, key model.PartitionKey, location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO partitions (tbl, year, month, location, present) VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (tbl, year, month) DO UPDATE
			SET location = excluded.location, present = 1
			WHERE partitions.present = 0`,
		table, key.Year, key.Month, location)
	return Error.Wrap(err)
}

func (c *SQLCatalog) Partitions(ctx context.Context, table string) (_ []model.CatalogPartition, err error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT year, month, location FROM partitions WHERE tbl = ? AND present = 1 ORDER BY year, month`,
		table)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var out []model.CatalogPartition
	for rows.Next() {
		p := model.CatalogPartition{Table: table, Present: true}
		if err := rows.Scan(&p.Year, &p.Month, &p.Location); err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, p)
	}
	return out, Error.Wrap(rows.Err())
}

func (c *SQLCatalog) Close() error { return Error.Wrap(c.db.Close()) }
