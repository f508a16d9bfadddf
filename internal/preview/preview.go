// Package preview reads the head of a local CSV or XLSX file so a dataset can
// be inspected before it is uploaded.
package preview

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"autodash/pkg/dashtypes"
)

// DefaultRows is the number of rows read when none is requested.
const DefaultRows = 10

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Data is the head of a tabular file.
type Data struct {
	Columns []string
	Rows    []dashtypes.Row
	Sheet   string // First sheet name for workbooks
}

// Supported reports whether path has an extension the backend accepts.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xls", ".xlsm":
		return true
	}
	return false
}

// File reads up to n data rows of a CSV or XLSX file. Numeric cells become
// float64 values; everything else stays a string.
func File(path string, n int) (*Data, error) {
	if n <= 0 {
		n = DefaultRows
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return CSV(f, n)
	case ".xlsx", ".xlsm":
		return workbook(path, n)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// CSV reads up to n data rows after the header line.
func CSV(r io.Reader, n int) (*Data, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("file is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	data := &Data{Columns: header}
	for len(data.Rows) < n {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(data.Rows)+1, err)
		}
		data.Rows = append(data.Rows, toRow(header, record))
	}
	return data, nil
}

func workbook(path string, n int) (*Data, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	data := &Data{Sheet: sheets[0]}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
		}
		if data.Columns == nil {
			if len(cols) == 0 {
				continue
			}
			data.Columns = cols
			continue
		}
		data.Rows = append(data.Rows, toRow(data.Columns, cols))
		if len(data.Rows) >= n {
			break
		}
	}
	if data.Columns == nil {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}
	return data, nil
}

func toRow(header, record []string) dashtypes.Row {
	row := make(dashtypes.Row, len(header))
	for i, name := range header {
		if i >= len(record) {
			row[name] = ""
			continue
		}
		cell := strings.TrimSpace(record[i])
		if f, ok := dashtypes.Number(cell); ok && cell != "" {
			row[name] = f
			continue
		}
		row[name] = cell
	}
	return row
}
