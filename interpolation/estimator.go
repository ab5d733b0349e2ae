package interpolation

import (
	"geomesh/common"
	"math"
	"sort"
	"strings"
)

// zeroDistanceKm is the distance below which a sample is considered to be exactly at the target location.
const zeroDistanceKm = 1e-9

// Neighbor is a sample value of one column together with its distance to the target cell centroid.
type Neighbor struct {
	DistanceKm float64
	Value      float64
}

// Estimator combines the values of the nearest samples into one value for a cell. The neighbors are ordered by
// increasing distance. When no value can be determined (e.g. all samples are too far away or there is a tie), ok is
// false and the cell is not part of the output for this column.
type Estimator interface {
	Name() string
	// NeighborCount is the number of neighbors the estimator wants to see in the first attempt.
	NeighborCount() int
	Estimate(neighbors []Neighbor) (value float64, ok bool)
}

// InverseDistanceWeighting weights the values of the nearest samples by 1/distance^power.
type InverseDistanceWeighting struct {
	Neighbors     int
	Power         float64
	MaxDistanceKm float64
}

func (e *InverseDistanceWeighting) Name() string {
	return EstimatorIdw
}

func (e *InverseDistanceWeighting) NeighborCount() int {
	return e.Neighbors
}

func (e *InverseDistanceWeighting) Estimate(neighbors []Neighbor) (float64, bool) {
	neighbors = withinDistance(neighbors, e.MaxDistanceKm)
	if len(neighbors) > e.Neighbors {
		neighbors = neighbors[:e.Neighbors]
	}
	if len(neighbors) == 0 {
		return 0, false
	}

	// Samples exactly at the location win.
	var exactSum float64
	exactCount := 0
	for _, n := range neighbors {
		if n.DistanceKm <= zeroDistanceKm {
			exactSum += n.Value
			exactCount++
		}
	}
	if exactCount > 0 {
		return finite(exactSum / float64(exactCount))
	}

	var weightedSum, weightSum float64
	for _, n := range neighbors {
		weight := 1 / math.Pow(n.DistanceKm, e.Power)
		weightedSum += weight * n.Value
		weightSum += weight
	}

	return finite(weightedSum / weightSum)
}

// NearestNeighbor takes the value of the nearest sample. Several equally near samples with differing values are a tie
// and result in no value.
type NearestNeighbor struct {
	MaxDistanceKm float64
}

func (e *NearestNeighbor) Name() string {
	return EstimatorNearest
}

func (e *NearestNeighbor) NeighborCount() int {
	return 8
}

func (e *NearestNeighbor) Estimate(neighbors []Neighbor) (float64, bool) {
	neighbors = withinDistance(neighbors, e.MaxDistanceKm)
	if len(neighbors) == 0 {
		return 0, false
	}

	nearest := neighbors[0]
	for _, n := range neighbors[1:] {
		if n.DistanceKm-nearest.DistanceKm > zeroDistanceKm {
			break
		}
		if n.Value != nearest.Value {
			return 0, false
		}
	}

	return finite(nearest.Value)
}

func withinDistance(neighbors []Neighbor, maxDistanceKm float64) []Neighbor {
	if maxDistanceKm <= 0 {
		return neighbors
	}
	i := sort.Search(len(neighbors), func(i int) bool {
		return neighbors[i].DistanceKm > maxDistanceKm
	})
	return neighbors[:i]
}

func finite(value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

const (
	EstimatorIdw     = "idw"
	EstimatorNearest = "nearest"

	DefaultNeighbors = 3
	DefaultPower     = 2.0
)

// EstimatorParams are the optional parameters of all estimators.
type EstimatorParams struct {
	Neighbors     int     `yaml:"num_neighbors"`
	Power         float64 `yaml:"power"`
	MaxDistanceKm float64 `yaml:"max_distance_km"`
}

// NewEstimator creates the estimator with the given name. An empty name results in inverse distance weighting.
func NewEstimator(name string, params EstimatorParams) (Estimator, error) {
	if params.MaxDistanceKm < 0 {
		return nil, common.NewConfigurationError("max_distance_km", "must not be negative but was %f", params.MaxDistanceKm)
	}

	switch strings.ToLower(name) {
	case "", EstimatorIdw:
		neighbors := params.Neighbors
		if neighbors == 0 {
			neighbors = DefaultNeighbors
		}
		if neighbors < 0 {
			return nil, common.NewConfigurationError("num_neighbors", "must be positive but was %d", neighbors)
		}
		power := params.Power
		if power == 0 {
			power = DefaultPower
		}
		if power < 0 {
			return nil, common.NewConfigurationError("power", "must be positive but was %f", power)
		}
		return &InverseDistanceWeighting{Neighbors: neighbors, Power: power, MaxDistanceKm: params.MaxDistanceKm}, nil
	case EstimatorNearest:
		return &NearestNeighbor{MaxDistanceKm: params.MaxDistanceKm}, nil
	}

	return nil, common.NewConfigurationError("interpolation", "unknown estimator '%s', valid estimators are %s and %s", name, EstimatorIdw, EstimatorNearest)
}
