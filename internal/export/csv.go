package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/roach88/ecomgen/internal/model"
)

// CSVName returns the file name of a table's CSV export.
func CSVName(table string) string { return table + ".csv" }

// WriteCSV writes one CSV file per table into dir, header row first.
func WriteCSV(dir string, tables []model.Table) ([]string, error) {
	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, CSVName(t.Name))
		err := writeFile(path, func(f *os.File) error {
			w := csv.NewWriter(f)
			if err := w.Write(t.ColumnNames()); err != nil {
				return err
			}
			if err := w.WriteAll(t.Rows); err != nil {
				return err
			}
			return w.Error()
		})
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
