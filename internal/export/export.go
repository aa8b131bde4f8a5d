package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Table is a flat report ready to be rendered as a download.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]interface{}
	// Widths are column widths for xlsx, by column index. Missing entries use the default.
	Widths []float64
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render encodes t in the requested format; name is the file name without extension.
func Render(t *Table, format, name string, bom bool) (*File, error) {
	switch format {
	case FormatCSV:
		data, err := writeCSV(t, bom)
		if err != nil {
			return nil, err
		}
		return &File{Name: name + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	case FormatXLSX:
		data, err := writeXLSX(t)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        name + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeCSV(t *Table, bom bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := unicode.UTF8.NewEncoder()
	if bom {
		// Excel открывает UTF-8 без BOM как ANSI
		enc = unicode.UTF8BOM.NewEncoder()
	}
	tw := transform.NewWriter(&buf, enc)

	w := csv.NewWriter(tw)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("error writing csv header: %w", err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = cellString(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("error writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("error flushing csv: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("error encoding csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Report"
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// Заголовки
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating style: %w", err)
	}
	for i, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for r, row := range t.Rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			switch value.(type) {
			case time.Time, *time.Time, nil:
				value = cellString(value)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("error writing cell %s: %w", cell, err)
			}
		}
	}

	for i := range t.Headers {
		width := 18.0
		if i < len(t.Widths) && t.Widths[i] > 0 {
			width = t.Widths[i]
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}

	// Удаляем стандартный лист
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format("2006-01-02")
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprint(val)
	}
}

// FileName builds daily_<kind>_2006-01-02 or monthly_<kind>_2006-01.
func FileName(kind, period string, now time.Time) string {
	if period == "monthly" {
		return fmt.Sprintf("monthly_%s_%s", kind, now.Format("2006-01"))
	}
	return fmt.Sprintf("daily_%s_%s", kind, now.Format("2006-01-02"))
}

// Save keeps a copy of f under dir and returns its path.
func Save(dir string, f *File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}
