package common

import (
	"sort"
	"strings"
)

type ColumnType string

const (
	TypeDouble   ColumnType = "DOUBLE"
	TypeReal     ColumnType = "REAL"
	TypeBigInt   ColumnType = "BIGINT"
	TypeInteger  ColumnType = "INTEGER"
	TypeSmallInt ColumnType = "SMALLINT"
	TypeTinyInt  ColumnType = "TINYINT"
	TypeBoolean  ColumnType = "BOOLEAN"
	TypeVarchar  ColumnType = "VARCHAR"
)

var generalColumnTypes = []ColumnType{TypeDouble, TypeReal, TypeBigInt, TypeInteger, TypeSmallInt, TypeTinyInt, TypeBoolean, TypeVarchar}

var compositeColumnTypes = []string{"ARRAY", "LIST", "MAP", "STRUCT", "UNION"}

var columnTypeAliases = map[string]ColumnType{
	"FLOAT8":   TypeDouble,
	"FLOAT64":  TypeDouble,
	"FLOAT4":   TypeReal,
	"FLOAT":    TypeReal,
	"INT8":     TypeBigInt,
	"LONG":     TypeBigInt,
	"INT64":    TypeBigInt,
	"INT4":     TypeInteger,
	"INT":      TypeInteger,
	"SIGNED":   TypeInteger,
	"INT2":     TypeSmallInt,
	"SHORT":    TypeSmallInt,
	"INT1":     TypeTinyInt,
	"BOOL":     TypeBoolean,
	"LOGICAL":  TypeBoolean,
	"CHAR":     TypeVarchar,
	"BPCHAR":   TypeVarchar,
	"TEXT":     TypeVarchar,
	"STRING":   TypeVarchar,
	"STR":      TypeVarchar,
	"NUMERIC":  TypeDouble,
	"DECIMAL":  TypeDouble,
	"UBIGINT":  TypeBigInt,
	"UINTEGER": TypeBigInt,
}

// ParseColumnType returns the canonical column type for the given type name or alias.
func ParseColumnType(s string) (ColumnType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))

	for _, t := range generalColumnTypes {
		if string(t) == upper {
			return t, nil
		}
	}
	if t, ok := columnTypeAliases[upper]; ok {
		return t, nil
	}
	for _, c := range compositeColumnTypes {
		if c == upper {
			return "", NewInvalidArgumentError("column type", "column type is composite, not general purpose: %s", s)
		}
	}

	return "", NewInvalidArgumentError("column type", "column type is not a general purpose type: %s", s)
}

func (t ColumnType) IsNumeric() bool {
	return t != TypeVarchar
}

func (t ColumnType) IsInteger() bool {
	return t == TypeBigInt || t == TypeInteger || t == TypeSmallInt || t == TypeTinyInt || t == TypeBoolean
}

type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func (s Schema) Has(name string) bool {
	return s.Index(name) != -1
}

func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal compares the set of columns and their types, the order is irrelevant.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	types := map[string]ColumnType{}
	for _, c := range s {
		types[c.Name] = c.Type
	}
	for _, c := range other {
		t, ok := types[c.Name]
		if !ok || t != c.Type {
			return false
		}
	}
	return true
}

// SortedNames returns the column names in alphabetical order, which is useful for error messages.
func (s Schema) SortedNames() []string {
	names := s.Names()
	sort.Strings(names)
	return names
}

// Row maps column names to values. Values are float64, int64, string, bool or nil.
type Row map[string]any

// Table is a named set of rows sharing one schema. The loading pipeline passes tables between its stages and the
// storage writes one table into one physical table.
type Table struct {
	Name   string
	Schema Schema
	Rows   []Row
}

// AddColumn appends the column to the schema, replacing an existing column with the same name.
func (t *Table) AddColumn(column Column) {
	if i := t.Schema.Index(column.Name); i != -1 {
		t.Schema[i] = column
		return
	}
	t.Schema = append(t.Schema, column)
}

// ValueColumns returns all columns which are not managed by the system (cell, coordinates, time, keys).
func (t *Table) ValueColumns() Schema {
	var cols Schema
	for _, c := range t.Schema {
		if !IsReservedCol(c.Name) {
			cols = append(cols, c)
		}
	}
	return cols
}
