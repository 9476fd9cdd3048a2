// Package export writes dataset tables to files.
//
// Every sink consumes the string rows of model.Table, so exports of the
// clean and the messy tables share one code path. Formats:
//
//	csv     one <table>.csv per table, header first
//	sql     load_data.sql, a sqlite3 script creating the tables and
//	        importing the CSV files
//	sqlite  a SQLite database with keys and foreign keys enforced
//	xlsx    one workbook, one sheet per table
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/ecomgen/internal/model"
)

// Formats.
const (
	FormatCSV    = "csv"
	FormatSQL    = "sql"
	FormatSQLite = "sqlite"
	FormatXLSX   = "xlsx"
)

// Default file names inside the output directory.
const (
	LoadScriptName = "load_data.sql"
	DatabaseName   = "ecomgen.db"
	WorkbookName   = "ecomgen.xlsx"
)

// Options selects the sinks of Write.
type Options struct {
	Dir     string
	Formats []string

	// SQLitePath overrides Dir/ecomgen.db.
	SQLitePath string

	Logger *slog.Logger
}

// Write exports tables in every requested format and returns the paths
// written. The sql format implies csv, since the script imports the CSV
// files.
func Write(ctx context.Context, tables []model.Table, opts Options) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	want := map[string]bool{}
	for _, f := range opts.Formats {
		switch f {
		case FormatCSV, FormatSQLite, FormatXLSX:
			want[f] = true
		case FormatSQL:
			want[FormatSQL] = true
			want[FormatCSV] = true
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}

	var written []string
	if want[FormatCSV] {
		paths, err := WriteCSV(opts.Dir, tables)
		if err != nil {
			return nil, err
		}
		written = append(written, paths...)
	}
	if want[FormatSQL] {
		path := filepath.Join(opts.Dir, LoadScriptName)
		if err := writeFile(path, func(f *os.File) error {
			return WriteLoadScript(f, schemasOf(tables), opts.Dir)
		}); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	if want[FormatSQLite] {
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.Dir, DatabaseName)
		}
		if err := WriteSQLite(ctx, path, tables); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	if want[FormatXLSX] {
		path := filepath.Join(opts.Dir, WorkbookName)
		if err := WriteXLSX(path, tables); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	logger.Info("dataset exported", "dir", opts.Dir, "formats", opts.Formats, "files", len(written))
	return written, nil
}

func schemasOf(tables []model.Table) []model.Schema {
	out := make([]model.Schema, len(tables))
	for i, t := range tables {
		out[i] = t.Schema
	}
	return out
}

// writeFile creates path, runs fn and closes the file, keeping the first
// error.
func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
