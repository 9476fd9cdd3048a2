package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/ecomgen/internal/model"
)

// WriteXLSX writes a workbook with one sheet per table, header first.
// Integer, money and boolean cells are typed; everything else is text.
func WriteXLSX(path string, tables []model.Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Name); err != nil {
				return fmt.Errorf("xlsx %s: %w", t.Name, err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("xlsx %s: %w", t.Name, err)
		}
		if err := writeSheet(f, t); err != nil {
			return fmt.Errorf("xlsx %s: %w", t.Name, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, t model.Table) error {
	sw, err := f.NewStreamWriter(t.Name)
	if err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for n, row := range t.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = xlsxValue(t.Columns[i].Type, cell)
		}
		axis, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func xlsxValue(typ model.ColumnType, cell string) any {
	if cell == "" {
		return nil
	}
	switch typ {
	case model.TypeInteger:
		if n, err := strconv.Atoi(cell); err == nil {
			return n
		}
	case model.TypeMoney:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	case model.TypeBool:
		if b, err := strconv.ParseBool(cell); err == nil {
			return b
		}
	}
	return cell
}
