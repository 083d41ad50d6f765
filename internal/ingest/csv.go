// Package ingest reads case assessment files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// ErrMalformedInput is returned when the case file cannot be used.
var ErrMalformedInput = errors.New("malformed input")

// Column names in the case file header.
const (
	ColumnScenario     = "Scenario"
	ColumnLevel        = "Level"
	ColumnOverallScore = "Overall Score"
	ColumnSAR          = "SAR"

	// ColumnExpected is optional and only read by the evaluate command.
	ColumnExpected = "Expected Typology"
)

var requiredColumns = []string{ColumnScenario, ColumnLevel, ColumnOverallScore, ColumnSAR}

// Record is one parsed row. Expected is empty unless the file carries an
// Expected Typology column.
type Record struct {
	domain.Case
	Expected domain.Typology
}

// Classifier assigns a typology and rationale to a scenario.
type Classifier interface {
	ClassifyDetail(scenario string) domain.Classification
}

// LoadFile reads and classifies every case in the file at path.
func LoadFile(path string, c Classifier) ([]domain.Case, error) {
	cases, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Classify(cases, c), nil
}

// ReadFile parses the file at path without classifying it.
func ReadFile(path string) ([]domain.Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	cases, err := ReadCases(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// ReadCases parses case rows without classifying them.
func ReadCases(r io.Reader) ([]domain.Case, error) {
	records, err := Read(r)
	if err != nil {
		return nil, err
	}
	cases := make([]domain.Case, len(records))
	for i, rec := range records {
		cases[i] = rec.Case
	}
	return cases, nil
}

// Read parses every row. Any missing column or unparseable value fails the
// whole read.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrMalformedInput, err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[normalizeHeader(col)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedInput, col)
		}
	}
	expectedIdx, hasExpected := colIndex[ColumnExpected]

	var records []Record
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedInput, row, err)
		}

		get := func(col string) (string, error) {
			i := colIndex[col]
			if i >= len(fields) {
				return "", fmt.Errorf("%w: row %d: missing value for %q", ErrMalformedInput, row, col)
			}
			return strings.TrimSpace(fields[i]), nil
		}

		rec := Record{Case: domain.Case{Row: row}}
		if rec.Scenario, err = get(ColumnScenario); err != nil {
			return nil, err
		}
		if rec.Level, err = get(ColumnLevel); err != nil {
			return nil, err
		}

		score, err := get(ColumnOverallScore)
		if err != nil {
			return nil, err
		}
		if rec.OverallScore, err = strconv.ParseFloat(score, 64); err != nil {
			return nil, fmt.Errorf("%w: row %d: column %q: invalid number %q", ErrMalformedInput, row, ColumnOverallScore, score)
		}

		sar, err := get(ColumnSAR)
		if err != nil {
			return nil, err
		}
		if rec.SAR, err = ParseBool(sar); err != nil {
			return nil, fmt.Errorf("%w: row %d: column %q: %v", ErrMalformedInput, row, ColumnSAR, err)
		}

		if hasExpected && expectedIdx < len(fields) {
			if raw := strings.TrimSpace(fields[expectedIdx]); raw != "" {
				if rec.Expected, err = domain.ParseTypology(raw); err != nil {
					return nil, fmt.Errorf("%w: row %d: column %q: %v", ErrMalformedInput, row, ColumnExpected, err)
				}
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// Classify returns a copy of cases with typology and rationale set.
func Classify(cases []domain.Case, c Classifier) []domain.Case {
	out := make([]domain.Case, len(cases))
	for i, cs := range cases {
		result := c.ClassifyDetail(cs.Scenario)
		cs.Typology = result.Typology
		cs.Rationale = result.Rationale
		out[i] = cs
	}
	return out
}

// ParseBool accepts true/false, yes/no, y/n and 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func normalizeHeader(col string) string {
	return strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
}
