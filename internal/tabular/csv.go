package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewDecodingReader strips a leading BOM and replaces invalid UTF-8 with
// U+FFFD. A UTF-16 BOM switches decoding to UTF-16.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadCSV parses comma-separated input. Ragged rows are allowed: missing
// trailing cells are absent and extra cells are ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(NewDecodingReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return fromRecords(records)
}
