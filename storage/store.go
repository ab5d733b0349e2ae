package storage

import (
	"context"
	"geomesh/common"
	"strings"
)

// Store is one dataset file containing one or more tables.
type Store interface {
	Path() string
	TableExists(ctx context.Context, table string) (bool, error)
	// Columns returns the schema of an existing table.
	Columns(ctx context.Context, table string) (common.Schema, error)
	Select(ctx context.Context, table string, query Query) ([]common.Row, error)
	// Write creates missing tables and inserts all rows of all tables within one transaction, so either all rows are
	// persisted or none.
	Write(ctx context.Context, tables []common.Table) error
	Close() error
}

type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpIn             Operator = "IN"
)

var operatorNames = map[string]Operator{
	"=":                     OpEqual,
	"==":                    OpEqual,
	"equal_to":              OpEqual,
	">":                     OpGreater,
	"greater_than":          OpGreater,
	">=":                    OpGreaterOrEqual,
	"greater_than_or_equal": OpGreaterOrEqual,
	"<":                     OpLess,
	"lesser_than":           OpLess,
	"less_than":             OpLess,
	"<=":                    OpLessOrEqual,
	"lesser_than_or_equal":  OpLessOrEqual,
	"less_than_or_equal":    OpLessOrEqual,
}

// ParseComparator accepts the comparison symbols as well as their names, e.g. ">=" and "greater_than_or_equal".
func ParseComparator(s string) (Operator, error) {
	op, ok := operatorNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", common.NewInvalidArgumentError("comparator", "'%s' is not a valid comparator", s)
	}
	return op, nil
}

// Matches evaluates the comparison "actual <op> target" for numeric values.
func (o Operator) Matches(actual float64, target float64) bool {
	switch o {
	case OpEqual:
		return actual == target
	case OpGreater:
		return actual > target
	case OpGreaterOrEqual:
		return actual >= target
	case OpLess:
		return actual < target
	case OpLessOrEqual:
		return actual <= target
	}
	return false
}

type Condition struct {
	Column   string
	Operator Operator
	Value    any
	// Values are used by the IN operator.
	Values []any
}

func Equal(column string, value any) Condition {
	return Condition{Column: column, Operator: OpEqual, Value: value}
}

func In(column string, values []any) Condition {
	return Condition{Column: column, Operator: OpIn, Values: values}
}

// Query selects rows of a table. All conditions must hold (AND). Empty columns mean all columns.
type Query struct {
	Columns    []string
	Conditions []Condition
	OrderBy    []string
}
