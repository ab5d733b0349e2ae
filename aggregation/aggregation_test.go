package aggregation

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/util"
	"testing"
)

func TestMedian(t *testing.T) {
	util.AssertEqual(t, 2.0, Median([]float64{3, 1, 2}))
	util.AssertEqual(t, 2.5, Median([]float64{4, 1, 3, 2}))
	util.AssertEqual(t, 7.0, Median([]float64{7}))
}

func TestNewStep(t *testing.T) {
	// Act
	median, err := NewStep("loader.aggregation_step.MedianAggregation", nil)
	count, errCount := NewStep("count_within_bounds", map[string]any{"min": 0, "max": 2.5})
	_, errNoBounds := NewStep("CountWithinBounds", map[string]any{})
	_, errUnknown := NewStep("variance", nil)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, "median", median.Suffix())
	util.AssertNil(t, errCount)
	util.AssertEqual(t, "within_bounds_0_2_5", count.Suffix())
	util.AssertErrorType[*common.ConfigurationError](t, errNoBounds)
	util.AssertErrorType[*common.ConfigurationError](t, errUnknown)
}

func TestCountWithinBounds(t *testing.T) {
	// Arrange
	maxBound := -1.5
	step := CountWithinBoundsStep{Max: &maxBound}

	// Act
	count := step.Aggregate([]float64{-3, -1.5, 0, 2})

	// Assert
	util.AssertEqual(t, int64(2), count)
	util.AssertEqual(t, "within_bounds_none_neg1_5", step.Suffix())
}

func TestOutputColumns_duplicate(t *testing.T) {
	// Act
	_, err := OutputColumns([]string{"depth"}, []Step{MinStep{}, MaxStep{}, MinStep{}})

	// Assert
	util.AssertErrorType[*common.ConfigurationError](t, err)
}

func TestAggregate(t *testing.T) {
	// Arrange
	// Both points are in the same resolution 5 cell, the third one is far away.
	records := []common.RawRecord{
		{Latitude: 45.0, Longitude: 10.0, Values: map[string]float64{"depth": 1}, Keys: map[string]string{"scenario": "a"}},
		{Latitude: 45.0001, Longitude: 10.0001, Values: map[string]float64{"depth": 3}, Keys: map[string]string{"scenario": "a"}},
		{Latitude: 45.0, Longitude: 10.0, Values: map[string]float64{"depth": 10}, Keys: map[string]string{"scenario": "b"}},
		{Latitude: -45.0, Longitude: -10.0, Values: map[string]float64{"depth": 5}, Keys: map[string]string{"scenario": "a"}},
	}
	config := Config{
		TableName:      "flood",
		DataColumns:    []string{"depth"},
		KeyColumns:     []string{"scenario"},
		Resolution:     5,
		Steps:          []Step{MinStep{}, MaxStep{}, MeanStep{}, MedianStep{}},
		MaxParallelism: 2,
	}
	cell, err := grid.CellForPoint(45.0, 10.0, 5)
	util.AssertNil(t, err)

	// Act
	table, err := Aggregate(context.Background(), records, config)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, "flood", table.Name)
	util.AssertEqual(t, []string{"cell", "latitude", "longitude", "scenario", "depth_min", "depth_max", "depth_mean", "depth_median"}, table.Schema.Names())
	util.AssertEqual(t, 3, len(table.Rows))

	var rowA common.Row
	for _, row := range table.Rows {
		if row[common.CellCol] == cell.String() && row["scenario"] == "a" {
			rowA = row
		}
	}
	util.AssertNotNil(t, rowA)
	util.AssertEqual(t, 1.0, rowA["depth_min"])
	util.AssertEqual(t, 3.0, rowA["depth_max"])
	util.AssertEqual(t, 2.0, rowA["depth_mean"])
	util.AssertEqual(t, 2.0, rowA["depth_median"])
}

func TestAggregate_noSteps(t *testing.T) {
	// Act
	_, err := Aggregate(context.Background(), nil, Config{Resolution: 5})

	// Assert
	util.AssertErrorType[*common.ConfigurationError](t, err)
}
