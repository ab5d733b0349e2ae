package common

import (
	"fmt"
	"math"
)

// RawRecord is one sample as produced by a reader. The set of temporal keys present must match the interval of the
// dataset it is loaded into.
type RawRecord struct {
	Latitude  float64
	Longitude float64
	Year      *int
	Month     *int
	Day       *int
	Values    map[string]float64
	Keys      map[string]string
}

// TimeKey identifies the temporal group of a record. Unused components are 0.
type TimeKey struct {
	Year  int
	Month int
	Day   int
}

func (r RawRecord) TimeKey() TimeKey {
	key := TimeKey{}
	if r.Year != nil {
		key.Year = *r.Year
	}
	if r.Month != nil {
		key.Month = *r.Month
	}
	if r.Day != nil {
		key.Day = *r.Day
	}
	return key
}

// Less orders time keys chronologically.
func (k TimeKey) Less(other TimeKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}

// Apply writes the components required by the interval into the row.
func (k TimeKey) Apply(row Row, interval Interval) {
	if interval.HasYear() {
		row[YearCol] = int64(k.Year)
	}
	if interval.HasMonth() {
		row[MonthCol] = int64(k.Month)
	}
	if interval.HasDay() {
		row[DayCol] = int64(k.Day)
	}
}

// Validate checks the coordinates and that exactly the temporal components of the interval are set.
func (r RawRecord) Validate(interval Interval) error {
	if math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90 {
		return NewInvalidArgumentError(LatitudeCol, "latitude %f must be within [-90, 90]", r.Latitude)
	}
	if math.IsNaN(r.Longitude) || r.Longitude < -180 || r.Longitude > 180 {
		return NewInvalidArgumentError(LongitudeCol, "longitude %f must be within [-180, 180]", r.Longitude)
	}

	check := func(component string, required bool, value *int) error {
		if required && value == nil {
			return NewInvalidArgumentError(component, "record at (%f, %f) has no %s but interval is '%s'", r.Latitude, r.Longitude, component, interval)
		}
		if !required && value != nil {
			return NewInvalidArgumentError(component, "record at (%f, %f) has a %s but interval is '%s'", r.Latitude, r.Longitude, component, interval)
		}
		return nil
	}

	if err := check(YearCol, interval.HasYear(), r.Year); err != nil {
		return err
	}
	if err := check(MonthCol, interval.HasMonth(), r.Month); err != nil {
		return err
	}
	return check(DayCol, interval.HasDay(), r.Day)
}

func (r RawRecord) String() string {
	return fmt.Sprintf("RawRecord{lat=%f, lon=%f, time=%v, values=%v, keys=%v}", r.Latitude, r.Longitude, r.TimeKey(), r.Values, r.Keys)
}

// IntPtr is a small helper for optional temporal components.
func IntPtr(i int) *int {
	return &i
}
