package query

import (
	"context"
	"geomesh/common"
	"geomesh/registry"
	"geomesh/storage"
	"github.com/pkg/errors"
)

// unboundedRadiusKm is the circumference of the earth. Radius queries with a larger radius (or -1) return every row.
const unboundedRadiusKm = 40075.0

// Engine answers spatial queries against the datasets of one database directory. It is read-only and can be used by
// concurrent goroutines.
type Engine struct {
	databaseDir string
	registry    *registry.Registry
	stores      *storage.StoreCache
}

func NewEngine(databaseDir string) (*Engine, error) {
	r, err := registry.Open(databaseDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		databaseDir: databaseDir,
		registry:    r,
		stores:      storage.NewStoreCache(storage.DefaultStoreCacheSize),
	}, nil
}

func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

func (e *Engine) DatabaseDir() string {
	return e.databaseDir
}

func (e *Engine) Close() error {
	e.stores.Close()
	return e.registry.Close()
}

// TimeFilter narrows a query to one point in time. Components are optional unless the interval of the dataset
// requires them.
type TimeFilter struct {
	Year  *int `json:"year,omitempty"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// conditions returns the equality conditions for the time filter. Components required by the interval of the dataset
// must be set, components the dataset doesn't have must not be set.
func (f TimeFilter) conditions(entry *registry.Entry) ([]storage.Condition, error) {
	components := []struct {
		name     string
		value    *int
		required bool
	}{
		{common.YearCol, f.Year, entry.Interval.HasYear()},
		{common.MonthCol, f.Month, entry.Interval.HasMonth()},
		{common.DayCol, f.Day, entry.Interval.HasDay()},
	}

	var conditions []storage.Condition
	for _, component := range components {
		if component.value == nil {
			if component.required {
				return nil, common.NewMissingTemporalKeyError(entry.DatasetName, component.name, entry.Interval)
			}
			continue
		}
		if !component.required {
			return nil, common.NewInvalidArgumentError(component.name, "dataset %s has interval '%s' and therefore no %s", entry.DatasetName, entry.Interval, component.name)
		}
		conditions = append(conditions, storage.Equal(component.name, int64(*component.value)))
	}

	return conditions, nil
}

// dataset returns the registry entry and the opened store of a registered dataset. The returned function releases the
// store and must be called once the query is done with it.
func (e *Engine) dataset(ctx context.Context, datasetName string) (*registry.Entry, storage.Store, func(), error) {
	entry, err := e.registry.Get(ctx, datasetName)
	if err != nil {
		return nil, nil, nil, err
	}

	store, release, err := e.stores.Get(storage.DatasetPath(e.databaseDir, datasetName))
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "Unable to open store of registered dataset %s", datasetName)
	}

	return entry, store, release, nil
}

// cellTable returns the table holding the cells of the given resolution. Continuous datasets have one table per
// resolution, index datasets exist only at their aggregation resolution.
func cellTable(entry *registry.Entry, resolution int, operation string) (string, error) {
	switch entry.DatasetType {
	case common.DatasetTypeH3:
		if resolution < common.MinResolution || resolution > entry.MaxResolution {
			return "", common.NewInvalidArgumentError("resolution", "dataset %s has resolutions %d to %d but %d was requested", entry.DatasetName, common.MinResolution, entry.MaxResolution, resolution)
		}
		return common.H3TableName(entry.DatasetName, resolution), nil
	case common.DatasetTypeH3Index:
		if resolution != entry.MaxResolution {
			return "", common.NewInvalidArgumentError("resolution", "dataset %s only exists at resolution %d but %d was requested", entry.DatasetName, entry.MaxResolution, resolution)
		}
		return entry.DatasetName, nil
	}
	return "", common.NewUnsupportedOperationError(operation, entry.DatasetName, entry.DatasetType)
}

func validateRadius(radiusKm float64) (unbounded bool, err error) {
	if radiusKm == -1 || radiusKm >= unboundedRadiusKm {
		return true, nil
	}
	if radiusKm < 0 {
		return false, common.NewInvalidArgumentError("radius", "radius must not be negative (except -1 for unbounded) but was %f", radiusKm)
	}
	return false, nil
}

func timeOrder(interval common.Interval, first ...string) []string {
	return append(first, interval.TimeColumns()...)
}
