package source

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExtractor reads messages from CSV exports. A cell may hold a whole
// message, or consecutive rows may hold one segment each.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(r io.Reader, filename string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var lines []string
	for _, row := range records {
		for _, cell := range row {
			lines = append(lines, SplitLines(cell)...)
		}
	}
	return Messages(lines), nil
}
