package drive

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// IsXLSX reports whether name looks like a workbook that ConvertXLSXToCSV accepts.
func IsXLSX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// CSVName swaps the extension of name for ".csv".
func CSVName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".csv"
}

// ConvertXLSXToCSV writes the first sheet of the workbook read from r to w.
func ConvertXLSXToCSV(r io.Reader, w io.Writer) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
