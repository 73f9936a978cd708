package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// schemaSampleSize bounds how many rows are inspected when inferring
// column types.
const schemaSampleSize = 64

// inferSchema derives a typed schema from tabular records. records[0]
// is the header; types are inferred from a sample of the remaining
// rows. A column is only assigned a non-text type when every non-empty
// sampled value parses as that type, so a single stray value degrades
// the column to text rather than failing ingestion later.
func inferSchema(records [][]string) (domain.SchemaDescriptor, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", domain.ErrMalformedRows)
	}

	header := records[0]
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header row", domain.ErrMalformedRows)
	}

	sample := records[1:]
	if len(sample) > schemaSampleSize {
		sample = sample[:schemaSampleSize]
	}

	schema := make(domain.SchemaDescriptor, len(header))
	for col, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: blank column name at index %d", domain.ErrMalformedRows, col)
		}
		schema[col] = domain.Column{
			Name: name,
			Type: inferColumnType(sample, col),
		}
	}

	return schema, nil
}

// inferColumnType tries the most specific type first and falls back to
// text. A column with no non-empty samples is text.
func inferColumnType(sample [][]string, col int) domain.ColumnType {
	candidates := []domain.ColumnType{
		domain.ColumnBoolean,
		domain.ColumnNumber,
		domain.ColumnDate,
	}

	for _, candidate := range candidates {
		matched := 0
		ok := true
		for _, row := range sample {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			if !cellParsesAs(cell, candidate) {
				ok = false
				break
			}
			matched++
		}
		if ok && matched > 0 {
			return candidate
		}
	}

	return domain.ColumnText
}

// cellParsesAs reports whether a raw cell value parses as the given type.
func cellParsesAs(cell string, t domain.ColumnType) bool {
	switch t {
	case domain.ColumnBoolean:
		_, err := parseBoolCell(cell)
		return err == nil
	case domain.ColumnNumber:
		_, err := strconv.ParseFloat(cell, 64)
		return err == nil
	case domain.ColumnDate:
		// dateparse accepts bare numbers as epoch timestamps; those
		// belong to the number type, which is tried first.
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
		_, err := dateparse.ParseAny(cell)
		return err == nil
	default:
		return true
	}
}

// parseBoolCell accepts the usual textual spellings of a boolean.
func parseBoolCell(cell string) (bool, error) {
	switch strings.ToLower(cell) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", cell)
}

// parseRows converts raw records into typed rows according to the
// schema. Any cell that fails to parse as its column's type makes the
// whole dataset malformed; empty cells become nil. Dates are stored in
// RFC 3339 form so comparisons are lexicographic.
func parseRows(schema domain.SchemaDescriptor, records [][]string) ([]domain.StructuredRow, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]domain.StructuredRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) > len(schema) {
			return nil, fmt.Errorf("%w: row %d has %d cells, schema has %d columns",
				domain.ErrMalformedRows, i+1, len(record), len(schema))
		}

		data := make(map[string]any, len(schema))
		for col, column := range schema {
			if col >= len(record) {
				data[column.Name] = nil
				continue
			}
			value, err := parseCell(record[col], column.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %w",
					domain.ErrMalformedRows, i+1, column.Name, err)
			}
			data[column.Name] = value
		}
		rows = append(rows, domain.StructuredRow{Data: data})
	}

	return rows, nil
}

// parseCell converts one raw cell to its typed value.
func parseCell(cell string, t domain.ColumnType) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}

	switch t {
	case domain.ColumnBoolean:
		return parseBoolCell(cell)
	case domain.ColumnNumber:
		return strconv.ParseFloat(cell, 64)
	case domain.ColumnDate:
		parsed, err := dateparse.ParseAny(cell)
		if err != nil {
			return nil, err
		}
		return parsed.UTC().Format(time.RFC3339), nil
	default:
		return cell, nil
	}
}
