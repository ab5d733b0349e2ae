package common

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	CellCol      = "cell"
	LatitudeCol  = "latitude"
	LongitudeCol = "longitude"
	KeyCol       = "key"
	YearCol      = "year"
	MonthCol     = "month"
	DayCol       = "day"

	// PointCellColPrefix is the prefix of the cell columns of point datasets, e.g. "res7".
	PointCellColPrefix = "res"

	MinResolution = 0
	MaxResolution = 15
)

type DatasetType string

const (
	DatasetTypeH3      DatasetType = "h3"
	DatasetTypePoint   DatasetType = "point"
	DatasetTypeH3Index DatasetType = "h3_index"
)

var ValidDatasetTypes = []DatasetType{DatasetTypeH3, DatasetTypePoint, DatasetTypeH3Index}

func ParseDatasetType(s string) (DatasetType, error) {
	for _, t := range ValidDatasetTypes {
		if string(t) == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", NewInvalidArgumentError("dataset_type", "'%s' is not valid, valid types are %v", s, ValidDatasetTypes)
}

type Interval string

const (
	IntervalOneTime Interval = "one-time"
	IntervalYearly  Interval = "yearly"
	IntervalMonthly Interval = "monthly"
	IntervalDaily   Interval = "daily"
)

var ValidIntervals = []Interval{IntervalOneTime, IntervalYearly, IntervalMonthly, IntervalDaily}

// ParseInterval returns the interval for the given string. An empty string means "one-time".
func ParseInterval(s string) (Interval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "onetime" || s == "one_time" {
		return IntervalOneTime, nil
	}
	for _, i := range ValidIntervals {
		if string(i) == s {
			return i, nil
		}
	}
	return "", NewInvalidArgumentError("interval", "'%s' is not valid, valid intervals are %v", s, ValidIntervals)
}

func (i Interval) HasYear() bool {
	return i == IntervalYearly || i == IntervalMonthly || i == IntervalDaily
}

func (i Interval) HasMonth() bool {
	return i == IntervalMonthly || i == IntervalDaily
}

func (i Interval) HasDay() bool {
	return i == IntervalDaily
}

// TimeColumns returns the temporal key columns a dataset with this interval stores, in year, month, day order.
func (i Interval) TimeColumns() []string {
	var cols []string
	if i.HasYear() {
		cols = append(cols, YearCol)
	}
	if i.HasMonth() {
		cols = append(cols, MonthCol)
	}
	if i.HasDay() {
		cols = append(cols, DayCol)
	}
	return cols
}

// PointCellCol returns the name of the cell column of a point dataset for the given resolution.
func PointCellCol(resolution int) string {
	return fmt.Sprintf("%s%d", PointCellColPrefix, resolution)
}

// IsPointCellCol returns true for column names like "res0" to "res15".
func IsPointCellCol(name string) bool {
	if !strings.HasPrefix(name, PointCellColPrefix) || len(name) == len(PointCellColPrefix) {
		return false
	}
	for _, r := range name[len(PointCellColPrefix):] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsReservedCol returns true for columns which are managed by the system and never treated as value columns.
func IsReservedCol(name string) bool {
	switch name {
	case CellCol, LatitudeCol, LongitudeCol, KeyCol, YearCol, MonthCol, DayCol:
		return true
	}
	return IsPointCellCol(name)
}

// ValidateColumnName makes sure the name only consists of alphanumeric characters and "_". Since column names end up
// in SQL statements, nothing else is allowed.
func ValidateColumnName(name string) error {
	if name == "" {
		return NewInvalidArgumentError("column", "column names must not be empty")
	}

	var invalid []rune
	for _, r := range name {
		if r != '_' && !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			invalid = append(invalid, r)
		}
	}

	if len(invalid) > 0 {
		return NewInvalidArgumentError("column", "column names must contain only '_' and alphanumeric characters, column name [%s] contained invalid character(s): %q", name, string(invalid))
	}
	return nil
}

// H3TableName returns the name of the table holding one resolution of a continuous dataset, e.g. "temperature_7".
func H3TableName(dataset string, resolution int) string {
	return fmt.Sprintf("%s_%d", dataset, resolution)
}
