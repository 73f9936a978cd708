package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure TableExecutor implements the interface.
var _ driving.TableService = (*TableExecutor)(nil)

// DefaultRowCap bounds how many rows a table query may scan or return
// when no cap is configured.
const DefaultRowCap = 500

// TableExecutor answers read-only structured queries over ingested
// datasets. It is safe by construction: the predicate type cannot
// express a mutation, and every query is validated against the dataset
// schema before any row is read.
type TableExecutor struct {
	store  driven.DocumentStore
	rowCap int
}

// NewTableExecutor creates a table executor. rowCap bounds result sizes;
// zero or negative uses the default.
func NewTableExecutor(store driven.DocumentStore, rowCap int) *TableExecutor {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &TableExecutor{store: store, rowCap: rowCap}
}

// ListSchemas returns the schema of every structured dataset.
func (e *TableExecutor) ListSchemas(ctx context.Context) ([]driving.DatasetSchema, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var schemas []driving.DatasetSchema
	for _, doc := range docs {
		if !doc.IsStructured() {
			continue
		}
		schemas = append(schemas, driving.DatasetSchema{
			DatasetID: doc.ID,
			Title:     doc.Title,
			Schema:    doc.Schema,
		})
	}
	return schemas, nil
}

// QueryTable validates the predicate against the dataset's schema, then
// scans, filters, projects and optionally aggregates its rows within the
// configured cap.
func (e *TableExecutor) QueryTable(ctx context.Context, datasetID string, pred domain.TablePredicate) (*domain.TableResult, error) {
	doc, err := e.store.GetDocument(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDataset, datasetID)
	}
	if !doc.IsStructured() {
		return nil, fmt.Errorf("%w: %q has no structured rows", domain.ErrUnknownDataset, datasetID)
	}

	if err := pred.Validate(doc.Schema); err != nil {
		return nil, err
	}

	limit := pred.Limit
	if limit == 0 || limit > e.rowCap {
		limit = e.rowCap
	}

	logger.Debug("Table query on %s: %d filters, limit %d, aggregate=%v",
		datasetID, len(pred.Filters), limit, pred.Aggregate != nil)

	// Scan at most the cap, fetching one extra row to detect that the
	// dataset extends beyond it.
	rows, err := e.store.RowsForDataset(ctx, datasetID, e.rowCap+1)
	if err != nil {
		return nil, fmt.Errorf("rows for %s: %w", datasetID, err)
	}
	scanCut := len(rows) > e.rowCap
	if scanCut {
		rows = rows[:e.rowCap]
	}

	matched := make([]domain.StructuredRow, 0, len(rows))
	for _, row := range rows {
		ok, err := rowMatches(doc.Schema, row, pred.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if pred.Aggregate != nil {
		value, err := aggregate(matched, *pred.Aggregate)
		if err != nil {
			return nil, err
		}
		return &domain.TableResult{Aggregate: value, Truncated: scanCut}, nil
	}

	truncated := scanCut || len(matched) > limit
	if len(matched) > limit {
		matched = matched[:limit]
	}

	if len(pred.Columns) > 0 {
		matched = projectColumns(matched, pred.Columns)
	}

	return &domain.TableResult{Rows: matched, Truncated: truncated}, nil
}

// rowMatches reports whether a row satisfies every filter. A nil cell
// only matches ne.
func rowMatches(schema domain.SchemaDescriptor, row domain.StructuredRow, filters []domain.Filter) (bool, error) {
	for _, f := range filters {
		col, _ := schema.Column(f.Column)
		cell := row.Data[f.Column]

		ok, err := cellMatches(cell, col.Type, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// cellMatches evaluates one filter against one typed cell.
func cellMatches(cell any, colType domain.ColumnType, f domain.Filter) (bool, error) {
	if cell == nil {
		// Absent values match nothing except "not equal".
		return f.Op == domain.OpNe, nil
	}

	switch colType {
	case domain.ColumnNumber:
		cellNum, ok := cell.(float64)
		if !ok {
			return false, nil
		}
		want, err := comparandNumber(f.Value)
		if err != nil {
			return false, fmt.Errorf("%w: filter on %q: %w", domain.ErrValidation, f.Column, err)
		}
		return compareOrdered(cellNum, want, f.Op)

	case domain.ColumnBoolean:
		cellBool, ok := cell.(bool)
		if !ok {
			return false, nil
		}
		want, err := comparandBool(f.Value)
		if err != nil {
			return false, fmt.Errorf("%w: filter on %q: %w", domain.ErrValidation, f.Column, err)
		}
		switch f.Op {
		case domain.OpEq:
			return cellBool == want, nil
		case domain.OpNe:
			return cellBool != want, nil
		default:
			return false, fmt.Errorf("%w: operator %q not supported for boolean column %q",
				domain.ErrValidation, f.Op, f.Column)
		}

	case domain.ColumnDate:
		cellStr, ok := cell.(string)
		if !ok {
			return false, nil
		}
		want, err := comparandDate(f.Value)
		if err != nil {
			return false, fmt.Errorf("%w: filter on %q: %w", domain.ErrValidation, f.Column, err)
		}
		// Dates are stored in RFC 3339, so ordering is lexicographic.
		return compareOrdered(cellStr, want, f.Op)

	default:
		cellStr, ok := cell.(string)
		if !ok {
			cellStr = fmt.Sprint(cell)
		}
		want := fmt.Sprint(f.Value)
		if f.Op == domain.OpContains {
			return strings.Contains(strings.ToLower(cellStr), strings.ToLower(want)), nil
		}
		return compareOrdered(cellStr, want, f.Op)
	}
}

// compareOrdered evaluates an ordering operator over two comparable
// values of the same type.
func compareOrdered[T float64 | string](cell, want T, op domain.FilterOp) (bool, error) {
	switch op {
	case domain.OpEq:
		return cell == want, nil
	case domain.OpNe:
		return cell != want, nil
	case domain.OpLt:
		return cell < want, nil
	case domain.OpLte:
		return cell <= want, nil
	case domain.OpGt:
		return cell > want, nil
	case domain.OpGte:
		return cell >= want, nil
	default:
		return false, fmt.Errorf("%w: operator %q not supported here", domain.ErrValidation, op)
	}
}

// comparandNumber coerces a filter value to float64.
func comparandNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// comparandBool coerces a filter value to bool.
func comparandBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return parseBoolCell(b)
	default:
		return false, fmt.Errorf("not a boolean: %v", v)
	}
}

// comparandDate coerces a filter value to an RFC 3339 timestamp string.
func comparandDate(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("not a date: %v", v)
	}
	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return "", fmt.Errorf("not a date: %q", s)
	}
	return parsed.UTC().Format(time.RFC3339), nil
}

// aggregate computes a single value over the matched rows. Non-numeric
// and nil cells are skipped for numeric aggregates; min and max on text
// and date columns compare lexicographically.
func aggregate(rows []domain.StructuredRow, agg domain.Aggregate) (any, error) {
	if agg.Func == domain.AggCount {
		return float64(len(rows)), nil
	}

	var (
		sum     float64
		count   int
		minNum  float64
		maxNum  float64
		minStr  string
		maxStr  string
		strSeen bool
	)

	for _, row := range rows {
		switch v := row.Data[agg.Column].(type) {
		case float64:
			if count == 0 {
				minNum, maxNum = v, v
			}
			sum += v
			count++
			if v < minNum {
				minNum = v
			}
			if v > maxNum {
				maxNum = v
			}
		case string:
			if !strSeen {
				minStr, maxStr = v, v
				strSeen = true
			}
			if v < minStr {
				minStr = v
			}
			if v > maxStr {
				maxStr = v
			}
		}
	}

	switch agg.Func {
	case domain.AggSum:
		return sum, nil
	case domain.AggAvg:
		if count == 0 {
			return nil, nil
		}
		return sum / float64(count), nil
	case domain.AggMin:
		if count > 0 {
			return minNum, nil
		}
		if strSeen {
			return minStr, nil
		}
		return nil, nil
	case domain.AggMax:
		if count > 0 {
			return maxNum, nil
		}
		if strSeen {
			return maxStr, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported aggregate %q", domain.ErrValidation, agg.Func)
	}
}

// projectColumns keeps only the requested columns in each row.
func projectColumns(rows []domain.StructuredRow, columns []string) []domain.StructuredRow {
	out := make([]domain.StructuredRow, len(rows))
	for i, row := range rows {
		data := make(map[string]any, len(columns))
		for _, name := range columns {
			data[name] = row.Data[name]
		}
		out[i] = domain.StructuredRow{ID: row.ID, DatasetID: row.DatasetID, Data: data}
	}
	return out
}
