package postprocess

import (
	"geomesh/common"
	"geomesh/util"
	"testing"
)

func testTable() *common.Table {
	return &common.Table{
		Name: "flood",
		Schema: common.Schema{
			{Name: common.CellCol, Type: common.TypeVarchar},
			{Name: common.LatitudeCol, Type: common.TypeDouble},
			{Name: common.LongitudeCol, Type: common.TypeDouble},
			{Name: "depth_mean", Type: common.TypeDouble},
			{Name: "depth_count", Type: common.TypeBigInt},
		},
		Rows: []common.Row{
			{common.CellCol: "85283473fffffff", common.LatitudeCol: 37.3, common.LongitudeCol: -121.9, "depth_mean": 1.5, "depth_count": int64(2)},
			{common.CellCol: "85283477fffffff", common.LatitudeCol: 37.2, common.LongitudeCol: -122.0, "depth_mean": nil, "depth_count": int64(0)},
		},
	}
}

func TestAddConstantColumn(t *testing.T) {
	// Arrange
	table := testTable()
	step, err := New(StepConfig{Kind: "loader.postprocessing_step.AddConstantColumn", Params: map[string]any{"column_name": "scenario", "column_value": "rcp45"}})
	util.AssertNil(t, err)

	// Act
	err = Run([]Step{step}, table)

	// Assert
	util.AssertNil(t, err)
	util.AssertTrue(t, table.Schema.Has("scenario"))
	util.AssertEqual(t, common.TypeVarchar, table.Schema[table.Schema.Index("scenario")].Type)
	for _, row := range table.Rows {
		util.AssertEqual(t, "rcp45", row["scenario"])
	}
}

func TestMultiplyValue(t *testing.T) {
	// Arrange
	table := testTable()
	step, err := New(StepConfig{Kind: "multiply_value", Params: map[string]any{"multiply_by": 2}})
	util.AssertNil(t, err)

	// Act
	err = Run([]Step{step}, table)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 3.0, table.Rows[0]["depth_mean"])
	util.AssertEqual(t, 4.0, table.Rows[0]["depth_count"])
	util.AssertEqual(t, 37.3, table.Rows[0][common.LatitudeCol])
	util.AssertEqual(t, "85283473fffffff", table.Rows[0][common.CellCol])
	util.AssertNil(t, table.Rows[1]["depth_mean"])
}

func TestNew_invalidConfigs(t *testing.T) {
	// Act
	_, errMissingName := New(StepConfig{Kind: "AddConstantColumn", Params: map[string]any{"column_value": 1}})
	_, errReserved := New(StepConfig{Kind: "AddConstantColumn", Params: map[string]any{"column_name": "cell", "column_value": 1}})
	_, errMissingFactor := New(StepConfig{Kind: "MultiplyValue", Params: map[string]any{}})
	_, errUnknown := New(StepConfig{Kind: "DropColumn"})

	// Assert
	util.AssertErrorType[*common.ConfigurationError](t, errMissingName)
	util.AssertErrorType[*common.ConfigurationError](t, errReserved)
	util.AssertErrorType[*common.ConfigurationError](t, errMissingFactor)
	util.AssertErrorType[*common.ConfigurationError](t, errUnknown)
}
