package backup

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

func encodeXLSX(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i, t := range doc.Transactions {
		if err := setRow(f, i+2, row(t, doc.Categories)); err != nil {
			return err
		}
	}

	f.SetColWidth(SheetName, "A", "A", 8)
	f.SetColWidth(SheetName, "B", "C", 14)
	f.SetColWidth(SheetName, "D", "D", 32)
	f.SetColWidth(SheetName, "E", "F", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

// decodeXLSX reads the Transaktionen sheet, or the first sheet when the
// workbook has none by that name.
func decodeXLSX(r io.Reader, today time.Time) (Decoded, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Decoded{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Decoded{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var out Decoded
	var idx map[string]int
	for i, cells := range rows {
		if idx == nil {
			var isHeader bool
			idx, isHeader = columns(cells)
			if isHeader {
				continue
			}
		}
		if blank(cells) {
			continue
		}
		out.Records = append(out.Records, fromCells(i+1, cells, idx, today))
	}
	return out, nil
}
