package query

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/region"
	"geomesh/registry"
	"geomesh/storage"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"time"
)

// ByPointRadius returns all cells whose centroid (continuous and index datasets) or all points (point datasets)
// within the radius around the given location. For point datasets the resolution is ignored.
func (e *Engine) ByPointRadius(ctx context.Context, datasetName string, lat float64, lon float64, radiusKm float64, resolution int, timeFilter TimeFilter) (*Result, error) {
	startTime := time.Now()
	defer func() {
		sigolo.Debugf("Radius query on %s at (%f, %f) with radius %f took %s", datasetName, lat, lon, radiusKm, time.Since(startTime))
	}()

	if err := grid.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	unbounded, err := validateRadius(radiusKm)
	if err != nil {
		return nil, err
	}

	entry, store, release, err := e.dataset(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	defer release()
	conditions, err := timeFilter.conditions(entry)
	if err != nil {
		return nil, err
	}

	if entry.DatasetType == common.DatasetTypePoint {
		center := orb.Point{lon, lat}
		return e.selectPoints(ctx, entry, store, conditions, func(row common.Row) bool {
			if unbounded {
				return true
			}
			return grid.DistanceKm(center, rowLocation(row)) <= radiusKm
		})
	}

	table, err := cellTable(entry, resolution, "radius query")
	if err != nil {
		return nil, err
	}

	var cells []grid.Cell
	if !unbounded {
		cells, err = grid.CellsWithinRadius(lat, lon, radiusKm, resolution)
		if err != nil {
			return nil, err
		}
	}

	return e.selectCells(ctx, entry, store, table, cells, unbounded, conditions)
}

// ByPoint returns the cell containing the location. For point datasets, all points within that cell are returned.
func (e *Engine) ByPoint(ctx context.Context, datasetName string, lat float64, lon float64, resolution int, timeFilter TimeFilter) (*Result, error) {
	cell, err := grid.CellForPoint(lat, lon, resolution)
	if err != nil {
		return nil, err
	}
	return e.byCell(ctx, datasetName, cell, timeFilter)
}

// ByCellRadius is like ByPointRadius with the centroid of the cell as center and the resolution of the cell.
func (e *Engine) ByCellRadius(ctx context.Context, datasetName string, cellId string, radiusKm float64, timeFilter TimeFilter) (*Result, error) {
	cell, err := grid.CellFromString(cellId)
	if err != nil {
		return nil, err
	}
	centroid := cell.Centroid()
	return e.ByPointRadius(ctx, datasetName, centroid.Lat(), centroid.Lon(), radiusKm, cell.Resolution(), timeFilter)
}

// ByCell returns the stored row(s) of the cell. For point datasets, all points within that cell are returned.
func (e *Engine) ByCell(ctx context.Context, datasetName string, cellId string, timeFilter TimeFilter) (*Result, error) {
	cell, err := grid.CellFromString(cellId)
	if err != nil {
		return nil, err
	}
	return e.byCell(ctx, datasetName, cell, timeFilter)
}

func (e *Engine) byCell(ctx context.Context, datasetName string, cell grid.Cell, timeFilter TimeFilter) (*Result, error) {
	entry, store, release, err := e.dataset(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	defer release()
	conditions, err := timeFilter.conditions(entry)
	if err != nil {
		return nil, err
	}

	if entry.DatasetType == common.DatasetTypePoint {
		if cell.Resolution() > entry.MaxResolution {
			return nil, common.NewInvalidArgumentError("resolution", "points of dataset %s have cells up to resolution %d but %d was requested", entry.DatasetName, entry.MaxResolution, cell.Resolution())
		}
		conditions = append(conditions, storage.Equal(common.PointCellCol(cell.Resolution()), cell.String()))
		return e.selectPoints(ctx, entry, store, conditions, nil)
	}

	table, err := cellTable(entry, cell.Resolution(), "cell query")
	if err != nil {
		return nil, err
	}
	return e.selectCells(ctx, entry, store, table, []grid.Cell{cell}, false, conditions)
}

// ByRegion returns all cells intersecting the region or all points within it.
func (e *Engine) ByRegion(ctx context.Context, datasetName string, r *region.Region, resolution int, timeFilter TimeFilter) (*Result, error) {
	entry, store, release, err := e.dataset(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	defer release()
	conditions, err := timeFilter.conditions(entry)
	if err != nil {
		return nil, err
	}

	if entry.DatasetType == common.DatasetTypePoint {
		return e.selectPoints(ctx, entry, store, conditions, func(row common.Row) bool {
			location := rowLocation(row)
			return r.Contains(location.Lat(), location.Lon())
		})
	}

	table, err := cellTable(entry, resolution, "region query")
	if err != nil {
		return nil, err
	}

	cells, err := r.CandidateCells(resolution)
	if err != nil {
		return nil, err
	}

	return e.selectCells(ctx, entry, store, table, cells, false, conditions)
}

// ByShapefile loads the region (all polygons when regionName is empty) from the shapefile and queries it.
func (e *Engine) ByShapefile(ctx context.Context, datasetName string, shapefile string, nameField string, regionName string, resolution int, timeFilter TimeFilter) (*Result, error) {
	r, err := region.LoadShapefile(shapefile, nameField, regionName)
	if err != nil {
		return nil, err
	}
	return e.ByRegion(ctx, datasetName, r, resolution, timeFilter)
}

// ByBoundingBox queries the region of the latitude/longitude box.
func (e *Engine) ByBoundingBox(ctx context.Context, datasetName string, minLat float64, minLon float64, maxLat float64, maxLon float64, resolution int, timeFilter TimeFilter) (*Result, error) {
	if err := grid.ValidateCoordinate(minLat, minLon); err != nil {
		return nil, err
	}
	if err := grid.ValidateCoordinate(maxLat, maxLon); err != nil {
		return nil, err
	}
	if minLat > maxLat || minLon > maxLon {
		return nil, common.NewInvalidArgumentError("bounding box", "minimum (%f, %f) must not be larger than maximum (%f, %f)", minLat, minLon, maxLat, maxLon)
	}

	bound := orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
	return e.ByRegion(ctx, datasetName, region.FromBound(bound), resolution, timeFilter)
}

// selectCells reads the rows of the given cells. When all is true, the cells are ignored and every row is returned.
func (e *Engine) selectCells(ctx context.Context, entry *registry.Entry, store storage.Store, table string, cells []grid.Cell, all bool, conditions []storage.Condition) (*Result, error) {
	if !all {
		if len(cells) == 0 {
			return cellResult(entry, nil), nil
		}

		cellIds := make([]string, len(cells))
		for i, cell := range cells {
			cellIds[i] = cell.String()
		}
		conditions = append(conditions, storage.In(common.CellCol, sortedCellStrings(cellIds)))
	}

	rows, err := store.Select(ctx, table, storage.Query{
		Conditions: conditions,
		OrderBy:    timeOrder(entry.Interval, common.CellCol),
	})
	if err != nil {
		return nil, err
	}

	sigolo.Debugf("Found %d rows for %d requested cells in %s", len(rows), len(cells), table)
	return cellResult(entry, rows), nil
}

// selectPoints reads all points matching the conditions and keeps the ones accepted by the filter (all when nil).
func (e *Engine) selectPoints(ctx context.Context, entry *registry.Entry, store storage.Store, conditions []storage.Condition, filter func(row common.Row) bool) (*Result, error) {
	rows, err := store.Select(ctx, entry.DatasetName, storage.Query{
		Conditions: conditions,
		OrderBy:    timeOrder(entry.Interval, common.LatitudeCol, common.LongitudeCol),
	})
	if err != nil {
		return nil, err
	}

	if filter != nil {
		var kept []common.Row
		for _, row := range rows {
			if filter(row) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	return pointResult(entry, rows), nil
}

func rowLocation(row common.Row) orb.Point {
	lat, _ := storage.ToFloat(row[common.LatitudeCol])
	lon, _ := storage.ToFloat(row[common.LongitudeCol])
	return orb.Point{lon, lat}
}
