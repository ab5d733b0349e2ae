package postprocess

import (
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"strings"
)

// Step transforms a finalized table before it is written. Steps do not change the number of rows.
type Step interface {
	Name() string
	Run(table *common.Table) error
}

// StepConfig is one entry of the "postprocessing_steps" list.
type StepConfig struct {
	Kind   string
	Params map[string]any
}

// AddConstantColumn sets the column to the same value in every row.
type AddConstantColumn struct {
	ColumnName  string
	ColumnValue any
}

func (s *AddConstantColumn) Name() string {
	return "add_constant_column"
}

func (s *AddConstantColumn) Run(table *common.Table) error {
	columnType, value, err := constantType(s.ColumnValue)
	if err != nil {
		return err
	}

	table.AddColumn(common.Column{Name: s.ColumnName, Type: columnType})
	for _, row := range table.Rows {
		row[s.ColumnName] = value
	}

	sigolo.Debugf("Added constant column %s=%v to %d rows of table %s", s.ColumnName, value, len(table.Rows), table.Name)
	return nil
}

func constantType(value any) (common.ColumnType, any, error) {
	switch v := value.(type) {
	case string:
		return common.TypeVarchar, v, nil
	case bool:
		return common.TypeBoolean, v, nil
	case int:
		return common.TypeBigInt, int64(v), nil
	case int64:
		return common.TypeBigInt, v, nil
	case float64:
		return common.TypeDouble, v, nil
	}
	return "", nil, common.NewConfigurationError("column_value", "unsupported constant value %v of type %T", value, value)
}

// MultiplyValue multiplies every value column by a constant. Cell, coordinate, time and key columns are left as they
// are.
type MultiplyValue struct {
	MultiplyBy float64
}

func (s *MultiplyValue) Name() string {
	return "multiply_value"
}

func (s *MultiplyValue) Run(table *common.Table) error {
	var columns []string
	for _, column := range table.ValueColumns() {
		if column.Type.IsNumeric() {
			columns = append(columns, column.Name)
		}
	}

	for _, row := range table.Rows {
		for _, column := range columns {
			switch v := row[column].(type) {
			case float64:
				row[column] = v * s.MultiplyBy
			case int64:
				row[column] = float64(v) * s.MultiplyBy
			}
		}
	}

	// Integer columns become fractional
	for _, column := range columns {
		table.AddColumn(common.Column{Name: column, Type: common.TypeDouble})
	}

	sigolo.Debugf("Multiplied columns %v of table %s by %f", columns, table.Name, s.MultiplyBy)
	return nil
}

// New creates the step for the given kind. Kinds are either short names ("add_constant_column") or class-like names
// ("AddConstantColumn"), optionally with a package prefix.
func New(config StepConfig) (Step, error) {
	name := config.Kind
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[i+1:]
	}

	switch strings.ToLower(strings.ReplaceAll(name, "_", "")) {
	case "addconstantcolumn":
		columnName, ok := config.Params["column_name"].(string)
		if !ok || columnName == "" {
			return nil, common.NewConfigurationError("column_name", "parameter is mandatory for AddConstantColumn")
		}
		if err := common.ValidateColumnName(columnName); err != nil {
			return nil, common.NewConfigurationError("column_name", "%s", err.Error())
		}
		if common.IsReservedCol(columnName) {
			return nil, common.NewConfigurationError("column_name", "column %s is managed by the system and cannot be set", columnName)
		}
		value, ok := config.Params["column_value"]
		if !ok {
			return nil, common.NewConfigurationError("column_value", "parameter is mandatory for AddConstantColumn")
		}
		if _, _, err := constantType(value); err != nil {
			return nil, err
		}
		return &AddConstantColumn{ColumnName: columnName, ColumnValue: value}, nil
	case "multiplyvalue":
		raw, ok := config.Params["multiply_by"]
		if !ok {
			return nil, common.NewConfigurationError("multiply_by", "parameter is mandatory for MultiplyValue")
		}
		var factor float64
		switch v := raw.(type) {
		case int:
			factor = float64(v)
		case float64:
			factor = v
		default:
			return nil, common.NewConfigurationError("multiply_by", "must be a number but was %v", raw)
		}
		return &MultiplyValue{MultiplyBy: factor}, nil
	}

	return nil, common.NewConfigurationError("postprocessing_steps", "unknown postprocessing step '%s'", config.Kind)
}

// Run applies all steps in order.
func Run(steps []Step, table *common.Table) error {
	for _, step := range steps {
		rowCount := len(table.Rows)
		if err := step.Run(table); err != nil {
			return err
		}
		if rowCount != len(table.Rows) {
			return errors.Errorf("Postprocessing step %s changed the number of rows from %d to %d", step.Name(), rowCount, len(table.Rows))
		}
	}
	return nil
}
