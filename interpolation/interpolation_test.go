package interpolation

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/region"
	"geomesh/util"
	"github.com/paulmach/orb"
	"testing"
)

func TestInverseDistanceWeighting(t *testing.T) {
	// Arrange
	estimator := &InverseDistanceWeighting{Neighbors: 3, Power: 2}

	// Act
	value, ok := estimator.Estimate([]Neighbor{{DistanceKm: 1, Value: 10}, {DistanceKm: 2, Value: 20}})

	// Assert
	util.AssertTrue(t, ok)
	util.AssertApprox(t, 12.0, value, 0.000001)
}

func TestInverseDistanceWeighting_exactHit(t *testing.T) {
	// Arrange
	estimator := &InverseDistanceWeighting{Neighbors: 3, Power: 2}

	// Act
	value, ok := estimator.Estimate([]Neighbor{{DistanceKm: 0, Value: 4}, {DistanceKm: 0, Value: 6}, {DistanceKm: 1, Value: 100}})

	// Assert
	util.AssertTrue(t, ok)
	util.AssertEqual(t, 5.0, value)
}

func TestInverseDistanceWeighting_onlyNearestAndWithinDistance(t *testing.T) {
	// Arrange
	estimator := &InverseDistanceWeighting{Neighbors: 1, Power: 2, MaxDistanceKm: 5}

	// Act
	value, ok := estimator.Estimate([]Neighbor{{DistanceKm: 1, Value: 10}, {DistanceKm: 2, Value: 20}})
	_, okTooFar := estimator.Estimate([]Neighbor{{DistanceKm: 6, Value: 10}})
	_, okEmpty := estimator.Estimate(nil)

	// Assert
	util.AssertTrue(t, ok)
	util.AssertEqual(t, 10.0, value)
	util.AssertFalse(t, okTooFar)
	util.AssertFalse(t, okEmpty)
}

func TestNearestNeighbor(t *testing.T) {
	// Arrange
	estimator := &NearestNeighbor{}

	// Act
	value, ok := estimator.Estimate([]Neighbor{{DistanceKm: 1, Value: 10}, {DistanceKm: 2, Value: 20}})
	_, okTie := estimator.Estimate([]Neighbor{{DistanceKm: 1, Value: 10}, {DistanceKm: 1, Value: 20}})
	sameValue, okSameValue := estimator.Estimate([]Neighbor{{DistanceKm: 1, Value: 10}, {DistanceKm: 1, Value: 10}})

	// Assert
	util.AssertTrue(t, ok)
	util.AssertEqual(t, 10.0, value)
	util.AssertFalse(t, okTie)
	util.AssertTrue(t, okSameValue)
	util.AssertEqual(t, 10.0, sameValue)
}

func TestNewEstimator(t *testing.T) {
	// Act
	defaultEstimator, err := NewEstimator("", EstimatorParams{})
	nearest, errNearest := NewEstimator("nearest", EstimatorParams{MaxDistanceKm: 10})
	_, errUnknown := NewEstimator("kriging", EstimatorParams{})

	// Assert
	util.AssertNil(t, err)
	idw := defaultEstimator.(*InverseDistanceWeighting)
	util.AssertEqual(t, DefaultNeighbors, idw.Neighbors)
	util.AssertEqual(t, DefaultPower, idw.Power)
	util.AssertNil(t, errNearest)
	util.AssertEqual(t, EstimatorNearest, nearest.Name())
	util.AssertErrorType[*common.ConfigurationError](t, errUnknown)
}

func TestSampleIndex_nearest(t *testing.T) {
	// Arrange
	index := newSampleIndex([]orb.Point{{0, 0}, {10, 10}, {1, 1}, {179.9, 0}})

	// Act
	nearest := index.nearest(orb.Point{0.1, 0.1}, 2)
	acrossAntimeridian := index.nearest(orb.Point{-179.9, 0}, 1)

	// Assert
	util.AssertEqual(t, 2, len(nearest))
	util.AssertEqual(t, 0, nearest[0].index)
	util.AssertEqual(t, 2, nearest[1].index)
	util.AssertTrue(t, nearest[0].distanceKm < nearest[1].distanceKm)
	util.AssertEqual(t, 3, acrossAntimeridian[0].index)
}

func TestPartition(t *testing.T) {
	util.AssertEqual(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, partition(10, 3))
	util.AssertEqual(t, [][2]int{{0, 1}, {1, 2}}, partition(2, 5))
	util.AssertEqual(t, 0, len(partition(0, 5)))
}

func testRecords() []common.RawRecord {
	return []common.RawRecord{
		{Latitude: 20.2, Longitude: 20.2, Year: common.IntPtr(2020), Values: map[string]float64{"temp": 10}},
		{Latitude: 20.8, Longitude: 20.8, Year: common.IntPtr(2020), Values: map[string]float64{"temp": 20}},
		{Latitude: 20.5, Longitude: 20.5, Year: common.IntPtr(2021), Values: map[string]float64{"temp": 30}},
	}
}

func testConfig(t *testing.T, parallelism int) Config {
	r, err := region.New([]region.Polygon{{Name: "square", Geometry: orb.MultiPolygon{{{{20, 20}, {20, 21}, {21, 21}, {21, 20}, {20, 20}}}}}}, "", "test")
	util.AssertNil(t, err)
	estimator, err := NewEstimator(EstimatorIdw, EstimatorParams{})
	util.AssertNil(t, err)

	return Config{
		DatasetName:    "temperature",
		DataColumns:    []string{"temp"},
		Interval:       common.IntervalYearly,
		MaxResolution:  3,
		MaxParallelism: parallelism,
		Region:         r,
		Estimator:      estimator,
	}
}

func TestInterpolate(t *testing.T) {
	// Arrange
	config := testConfig(t, 4)

	// Act
	tables, err := Interpolate(context.Background(), testRecords(), config)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 4, len(tables))
	util.AssertEqual(t, "temperature_0", tables[0].Name)
	util.AssertEqual(t, "temperature_3", tables[3].Name)

	for resolution, table := range tables {
		util.AssertTrue(t, len(table.Rows) > 0)
		util.AssertTrue(t, table.Schema.Has(common.YearCol))

		var previous grid.Cell
		for _, row := range table.Rows {
			cell, err := grid.CellFromString(row[common.CellCol].(string))
			util.AssertNil(t, err)
			util.AssertEqual(t, resolution, cell.Resolution())
			util.AssertTrue(t, previous <= cell)
			previous = cell

			if row[common.YearCol] == int64(2021) {
				util.AssertEqual(t, 30.0, row["temp"])
			} else {
				temp := row["temp"].(float64)
				util.AssertTrue(t, temp >= 10 && temp <= 20)
			}
		}
	}
}

func TestInterpolate_isIndependentOfParallelism(t *testing.T) {
	// Act
	serial, err := Interpolate(context.Background(), testRecords(), testConfig(t, 1))
	util.AssertNil(t, err)
	parallel, err := Interpolate(context.Background(), testRecords(), testConfig(t, 7))
	util.AssertNil(t, err)

	// Assert
	util.AssertEqual(t, serial, parallel)
}

func TestInterpolate_invalidRecord(t *testing.T) {
	// Arrange
	records := []common.RawRecord{{Latitude: 1, Longitude: 1, Values: map[string]float64{"temp": 1}}}

	// Act
	_, err := Interpolate(context.Background(), records, testConfig(t, 1))

	// Assert
	util.AssertErrorType[*common.InvalidArgumentError](t, err)
}
