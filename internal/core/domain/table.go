package domain

import "fmt"

// FilterOp is a comparison operator in a table predicate.
type FilterOp string

// Supported filter operators. All are read-only comparisons; the
// predicate type cannot express a mutation.
const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpLt       FilterOp = "lt"
	OpLte      FilterOp = "lte"
	OpGt       FilterOp = "gt"
	OpGte      FilterOp = "gte"
	OpContains FilterOp = "contains"
)

// AggregateFunc is an aggregate function in a table predicate.
type AggregateFunc string

// Supported aggregate functions.
const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

// Filter is a single column comparison.
type Filter struct {
	// Column is the schema column the comparison applies to.
	Column string

	// Op is the comparison operator.
	Op FilterOp

	// Value is the comparand. For number columns it must be a float64
	// (or a numeric string), for boolean a bool, for date a parseable
	// timestamp, for text a string.
	Value any
}

// Aggregate requests a single aggregate over the filtered rows instead of
// the rows themselves.
type Aggregate struct {
	// Func is the aggregate function.
	Func AggregateFunc

	// Column is the column aggregated over. Ignored for count.
	Column string
}

// TablePredicate is a schema-validated read query over one dataset's
// structured rows.
type TablePredicate struct {
	// Columns restricts returned columns. Empty means all schema columns.
	Columns []string

	// Filters are conjunctive: a row matches when every filter matches.
	Filters []Filter

	// Aggregate, when set, replaces the row result with a single value.
	Aggregate *Aggregate

	// Limit caps the number of returned rows. Zero means the executor's
	// configured cap; values above the cap are clamped.
	Limit int
}

// Validate checks the predicate against a dataset schema.
func (p TablePredicate) Validate(schema SchemaDescriptor) error {
	for _, name := range p.Columns {
		if _, ok := schema.Column(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
	}

	for _, f := range p.Filters {
		if _, ok := schema.Column(f.Column); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, f.Column)
		}
		switch f.Op {
		case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpContains:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrValidation, f.Op)
		}
	}

	if p.Aggregate != nil {
		switch p.Aggregate.Func {
		case AggCount:
			// count needs no column
		case AggSum, AggAvg, AggMin, AggMax:
			col, ok := schema.Column(p.Aggregate.Column)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownColumn, p.Aggregate.Column)
			}
			if (p.Aggregate.Func == AggSum || p.Aggregate.Func == AggAvg) && col.Type != ColumnNumber {
				return fmt.Errorf("%w: %s requires a number column, %q is %s",
					ErrValidation, p.Aggregate.Func, col.Name, col.Type)
			}
		default:
			return fmt.Errorf("%w: unsupported aggregate %q", ErrValidation, p.Aggregate.Func)
		}
	}

	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", ErrValidation, p.Limit)
	}

	return nil
}

// TableResult is the outcome of a table query: either rows or a single
// aggregate value.
type TableResult struct {
	// Rows holds the matched rows when no aggregate was requested.
	Rows []StructuredRow

	// Aggregate holds the computed value when an aggregate was requested.
	Aggregate any

	// Truncated reports whether the row cap cut the result short.
	Truncated bool
}
