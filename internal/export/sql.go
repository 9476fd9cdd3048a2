package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/roach88/ecomgen/internal/model"
)

// CreateTableSQL renders the CREATE TABLE statement of a schema with its
// primary key, unique sets and foreign keys. Key columns are NOT NULL;
// other columns accept NULL so messy exports still load.
func CreateTableSQL(s model.Schema) string {
	key := make(map[string]bool, len(s.Key))
	for _, k := range s.Key {
		key[k] = true
	}

	var lines []string
	for _, c := range s.Columns {
		def := fmt.Sprintf("  %s %s", c.Name, c.Type)
		if key[c.Name] {
			def += " NOT NULL"
		}
		lines = append(lines, def)
	}
	lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(s.Key, ", ")))
	for _, u := range s.Unique {
		lines = append(lines, fmt.Sprintf("  UNIQUE (%s)", strings.Join(u, ", ")))
	}
	for _, c := range s.Columns {
		if c.References == "" {
			continue
		}
		table, column, _ := strings.Cut(c.References, ".")
		lines = append(lines, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s)", c.Name, table, column))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);\n", s.Name, strings.Join(lines, ",\n"))
}

// DropTablesSQL drops the tables children first.
func DropTablesSQL(schemas []model.Schema) string {
	var b strings.Builder
	for i := len(schemas) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", schemas[i].Name)
	}
	return b.String()
}

// WriteLoadScript writes a sqlite3 shell script that recreates the tables
// and imports the CSV files found in csvDir:
//
//	sqlite3 ecomgen.db < load_data.sql
func WriteLoadScript(w io.Writer, schemas []model.Schema, csvDir string) error {
	var b strings.Builder
	b.WriteString("-- ecomgen load script\n")
	b.WriteString("PRAGMA foreign_keys = ON;\n\n")
	b.WriteString(DropTablesSQL(schemas))
	for _, s := range schemas {
		b.WriteString("\n")
		b.WriteString(CreateTableSQL(s))
	}
	b.WriteString("\n")
	for _, s := range schemas {
		path := filepath.ToSlash(filepath.Join(csvDir, CSVName(s.Name)))
		fmt.Fprintf(&b, ".import --csv --skip 1 '%s' %s\n", path, s.Name)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
