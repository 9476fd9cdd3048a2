package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ecomgen/internal/model"
)

// OpenSQLite opens or creates a SQLite database at path with the export
// pragmas applied:
//   - WAL journal
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - foreign key enforcement
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// WriteSQLite writes tables into the database at path, replacing any
// tables of the same names.
func WriteSQLite(ctx context.Context, path string, tables []model.Table) error {
	db, err := OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return LoadTables(ctx, db, tables)
}

// LoadTables recreates the tables and inserts every row in one
// transaction. Tables must be in dependency order.
func LoadTables(ctx context.Context, db *sql.DB, tables []model.Table) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	schemas := schemasOf(tables)
	if _, err := tx.ExecContext(ctx, DropTablesSQL(schemas)); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	for _, s := range schemas {
		if _, err := tx.ExecContext(ctx, CreateTableSQL(s)); err != nil {
			return fmt.Errorf("create %s: %w", s.Name, err)
		}
	}
	for _, t := range tables {
		if err := insertRows(ctx, tx, t); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, t model.Table) error {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(t.ColumnNames(), ", "), marks)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.Name, err)
	}
	defer stmt.Close()

	key := make(map[string]bool, len(t.Key))
	for _, k := range t.Key {
		key[k] = true
	}
	args := make([]any, len(t.Columns))
	for n, row := range t.Rows {
		for i, c := range t.Columns {
			args[i] = sqlValue(c, key[c.Name], row[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", t.Name, n, err)
		}
	}
	return nil
}

// sqlValue converts a cell to its column's storage class. Empty non-key
// cells are NULL; unparsable numbers and booleans are stored as text.
func sqlValue(c model.Column, isKey bool, cell string) any {
	if cell == "" && !isKey {
		return nil
	}
	switch c.Type {
	case model.TypeInteger:
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return n
		}
	case model.TypeBool:
		if b, err := strconv.ParseBool(cell); err == nil {
			if b {
				return 1
			}
			return 0
		}
	}
	return cell
}
