package aggregation

import (
	"fmt"
	"geomesh/common"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"sort"
	"strconv"
	"strings"
)

// Step reduces all values of one column within one cell to a single value. The output column is named
// "<column>_<suffix>".
type Step interface {
	Suffix() string
	OutputType() common.ColumnType
	// Aggregate is only called with at least one value.
	Aggregate(values []float64) any
}

type MinStep struct{}

func (s MinStep) Suffix() string                { return "min" }
func (s MinStep) OutputType() common.ColumnType { return common.TypeDouble }
func (s MinStep) Aggregate(values []float64) any {
	return floats.Min(values)
}

type MaxStep struct{}

func (s MaxStep) Suffix() string                { return "max" }
func (s MaxStep) OutputType() common.ColumnType { return common.TypeDouble }
func (s MaxStep) Aggregate(values []float64) any {
	return floats.Max(values)
}

type MeanStep struct{}

func (s MeanStep) Suffix() string                { return "mean" }
func (s MeanStep) OutputType() common.ColumnType { return common.TypeDouble }
func (s MeanStep) Aggregate(values []float64) any {
	return stat.Mean(values, nil)
}

// MedianStep uses the average of the two middle values for an even number of values.
type MedianStep struct{}

func (s MedianStep) Suffix() string                { return "median" }
func (s MedianStep) OutputType() common.ColumnType { return common.TypeDouble }
func (s MedianStep) Aggregate(values []float64) any {
	return Median(values)
}

func Median(values []float64) float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)

	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	return (sorted[middle-1] + sorted[middle]) / 2
}

// CountWithinBoundsStep counts the values within [Min, Max]. A nil bound is unbounded, but at least one bound must be
// set.
type CountWithinBoundsStep struct {
	Min *float64
	Max *float64
}

func (s CountWithinBoundsStep) Suffix() string {
	return fmt.Sprintf("within_bounds_%s_%s", boundSuffix(s.Min), boundSuffix(s.Max))
}

func (s CountWithinBoundsStep) OutputType() common.ColumnType { return common.TypeBigInt }

func (s CountWithinBoundsStep) Aggregate(values []float64) any {
	var count int64
	for _, v := range values {
		if s.Max != nil && v > *s.Max {
			continue
		}
		if s.Min != nil && v < *s.Min {
			continue
		}
		count++
	}
	return count
}

// boundSuffix formats a bound so that it can be part of a column name, e.g. -2.5 becomes "neg2_5".
func boundSuffix(bound *float64) string {
	if bound == nil {
		return "none"
	}
	s := strconv.FormatFloat(*bound, 'f', -1, 64)
	s = strings.ReplaceAll(s, "-", "neg")
	return strings.ReplaceAll(s, ".", "_")
}

var stepNames = map[string]string{
	"min":                 "min",
	"minaggregation":      "min",
	"max":                 "max",
	"maxaggregation":      "max",
	"mean":                "mean",
	"meanaggregation":     "mean",
	"median":              "median",
	"medianaggregation":   "median",
	"count_within_bounds": "count_within_bounds",
	"countwithinbounds":   "count_within_bounds",
}

// NewStep creates the aggregation of the given kind. Kinds are either short names like "median" or class-like names
// like "MedianAggregation", optionally with a package prefix ("loader.aggregation_step.MedianAggregation").
func NewStep(kind string, params map[string]any) (Step, error) {
	name := kind
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[i+1:]
	}

	switch stepNames[strings.ToLower(name)] {
	case "min":
		return MinStep{}, nil
	case "max":
		return MaxStep{}, nil
	case "mean":
		return MeanStep{}, nil
	case "median":
		return MedianStep{}, nil
	case "count_within_bounds":
		minBound, err := floatParam(params, "min")
		if err != nil {
			return nil, err
		}
		maxBound, err := floatParam(params, "max")
		if err != nil {
			return nil, err
		}
		if minBound == nil && maxBound == nil {
			return nil, common.NewConfigurationError("aggregation_steps", "count_within_bounds requires 'min' and/or 'max' to be set")
		}
		return CountWithinBoundsStep{Min: minBound, Max: maxBound}, nil
	}

	return nil, common.NewConfigurationError("aggregation_steps", "unknown aggregation '%s'", kind)
}

func floatParam(params map[string]any, key string) (*float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var value float64
	switch v := raw.(type) {
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case float64:
		value = v
	default:
		return nil, common.NewConfigurationError("aggregation_steps", "parameter '%s' must be a number but was %v", key, raw)
	}
	return &value, nil
}
