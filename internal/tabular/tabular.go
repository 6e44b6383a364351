// Package tabular reads import files into header-keyed rows.
//
// CSV input is decoded through a BOM-aware UTF-8 transformer, so Windows
// exports with a byte order mark and files with stray invalid bytes both
// read cleanly. XLSX workbooks are read with excelize. Either way the first
// non-empty row is the header and every following non-empty row becomes one
// Row keyed by header name.
package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an input file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// MaxHeaderSearchRows is how many leading rows may be blank before the header.
var MaxHeaderSearchRows = 20

// ErrEmptyFile is returned when no header row is found.
var ErrEmptyFile = errors.New("empty file: no header row found")

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("invalid csv: unsupported file format")

// Row maps header names to raw cell text.
type Row map[string]string

// Table is a parsed input file.
type Table struct {
	Headers []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// DetectFormat picks the format from the file extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Read parses r in the given format.
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r, "")
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ReadBytes parses data in the given format.
func ReadBytes(data []byte, format Format) (*Table, error) {
	return Read(bytes.NewReader(data), format)
}

// ReadFile opens and parses path, detecting the format from its extension.
func ReadFile(path string) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, format)
}

// fromRecords turns raw records into a Table, using the first non-empty
// record within MaxHeaderSearchRows as the header.
func fromRecords(records [][]string) (*Table, error) {
	headerIdx := -1
	limit := min(len(records), MaxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if !isEmptyRecord(records[i]) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[headerIdx]))
	for i, h := range records[headerIdx] {
		headers[i] = cleanHeader(h)
	}

	t := &Table{Headers: headers}
	for _, rec := range records[headerIdx+1:] {
		if isEmptyRecord(rec) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			// First column wins for duplicate headers
			if _, dup := row[h]; dup {
				continue
			}
			row[h] = rec[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cleanHeader trims a header cell and drops spreadsheet quoting (="Name").
func cleanHeader(h string) string {
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, "=\"") && strings.HasSuffix(h, "\"") && len(h) >= 3 {
		h = h[2 : len(h)-1]
	}
	return strings.TrimSpace(strings.Trim(h, `"`))
}
