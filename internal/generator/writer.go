package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, emails []EmailMessage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, m := range emails {
		if err := cw.Write(m.Row()); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the records into the first sheet of a new workbook at path.
func WriteXLSX(path string, emails []EmailMessage) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return fmt.Errorf("open xlsx stream: %w", err)
	}

	if err := sw.SetRow("A1", toCells(Header())); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, m := range emails {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(m.Row())); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// Save writes emails to dir/name, picking the encoding from format ("csv" or
// "xlsx"), and returns the written path.
func Save(dir, name, format string, emails []EmailMessage) (string, error) {
	path := filepath.Join(dir, name)

	switch format {
	case "xlsx":
		if err := WriteXLSX(path, emails); err != nil {
			return "", err
		}
		return path, nil
	case "", "csv":
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		out, err := os.Create(path)
		if err != nil {
			return "", err
		}
		if err := WriteCSV(out, emails); err != nil {
			out.Close()
			return "", err
		}
		return path, out.Close()
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// SampleName is the file name used for a batch of n records.
func SampleName(n int, format string) string {
	if format == "" {
		format = "csv"
	}
	return fmt.Sprintf("email_sample_%d.%s", n, format)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
