package interpolation

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/region"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"math"
	"sort"
	"time"
)

// maxRetryFactor limits how often the number of requested neighbors is increased for cells where a column had no
// sample value within the nearest samples.
const maxRetryFactor = 4

type Config struct {
	DatasetName    string
	DataColumns    []string
	Interval       common.Interval
	MaxResolution  int
	MaxParallelism int
	// Region restricts the output to cells intersecting it. When nil, all cells of each resolution are interpolated.
	Region    *region.Region
	Estimator Estimator
}

// timeGroup contains all samples of one year/month/day combination.
type timeGroup struct {
	key     common.TimeKey
	records []common.RawRecord
	index   *sampleIndex
}

type cellRow struct {
	cell grid.Cell
	key  common.TimeKey
	row  common.Row
}

// Interpolate estimates a value per data column for every candidate cell of every resolution from 0 to the max
// resolution. The result contains one table per resolution, rows are ordered by cell ID and then by time.
func Interpolate(ctx context.Context, records []common.RawRecord, config Config) ([]common.Table, error) {
	if err := grid.ValidateResolution(config.MaxResolution); err != nil {
		return nil, err
	}
	if config.Estimator == nil {
		return nil, common.NewConfigurationError("interpolation", "no estimator given")
	}
	if len(config.DataColumns) == 0 {
		return nil, common.NewConfigurationError("data_columns", "at least one data column is required")
	}
	parallelism := max(1, config.MaxParallelism)

	groups, err := groupByTime(records, config.Interval)
	if err != nil {
		return nil, err
	}

	sigolo.Infof("Interpolate %d records in %d time groups with estimator '%s' up to resolution %d", len(records), len(groups), config.Estimator.Name(), config.MaxResolution)

	schema := Schema(config.Interval, config.DataColumns)

	var tables []common.Table
	for resolution := common.MinResolution; resolution <= config.MaxResolution; resolution++ {
		startTime := time.Now()

		candidates, err := candidateCells(config.Region, resolution)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to determine candidate cells for resolution %d", resolution)
		}

		var cellRows []cellRow
		for _, group := range groups {
			groupRows, err := interpolateGroup(ctx, candidates, group, config, parallelism)
			if err != nil {
				return nil, err
			}
			cellRows = append(cellRows, groupRows...)
		}

		sort.SliceStable(cellRows, func(i, j int) bool {
			if cellRows[i].cell != cellRows[j].cell {
				return cellRows[i].cell < cellRows[j].cell
			}
			return cellRows[i].key.Less(cellRows[j].key)
		})

		table := common.Table{
			Name:   common.H3TableName(config.DatasetName, resolution),
			Schema: append(common.Schema{}, schema...),
			Rows:   make([]common.Row, len(cellRows)),
		}
		for i, r := range cellRows {
			table.Rows[i] = r.row
		}

		if len(table.Rows) == 0 {
			sigolo.Warnf("No cell at resolution %d received a value", resolution)
		}
		sigolo.Infof("Interpolated %d rows from %d candidate cells at resolution %d in %s", len(table.Rows), len(candidates), resolution, time.Since(startTime))

		tables = append(tables, table)
	}

	return tables, nil
}

// Schema returns the columns of the tables of a continuous dataset.
func Schema(interval common.Interval, dataColumns []string) common.Schema {
	schema := common.Schema{
		{Name: common.CellCol, Type: common.TypeVarchar},
		{Name: common.LatitudeCol, Type: common.TypeDouble},
		{Name: common.LongitudeCol, Type: common.TypeDouble},
	}
	for _, col := range interval.TimeColumns() {
		schema = append(schema, common.Column{Name: col, Type: common.TypeBigInt})
	}
	for _, col := range dataColumns {
		schema = append(schema, common.Column{Name: col, Type: common.TypeDouble})
	}
	return schema
}

func groupByTime(records []common.RawRecord, interval common.Interval) ([]*timeGroup, error) {
	groupMap := map[common.TimeKey]*timeGroup{}
	for _, record := range records {
		if err := record.Validate(interval); err != nil {
			return nil, err
		}

		key := record.TimeKey()
		group, ok := groupMap[key]
		if !ok {
			group = &timeGroup{key: key}
			groupMap[key] = group
		}
		group.records = append(group.records, record)
	}

	var groups []*timeGroup
	for _, group := range groupMap {
		locations := make([]orb.Point, len(group.records))
		for i, record := range group.records {
			locations[i] = orb.Point{record.Longitude, record.Latitude}
		}
		group.index = newSampleIndex(locations)
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key.Less(groups[j].key)
	})

	return groups, nil
}

func candidateCells(r *region.Region, resolution int) ([]grid.Cell, error) {
	if r != nil {
		return r.CandidateCells(resolution)
	}
	return grid.AllCells(resolution)
}

// interpolateGroup splits the candidates into contiguous partitions, one per worker. Each worker only writes into its
// own result slice, so the results can be concatenated in partition order afterward.
func interpolateGroup(ctx context.Context, candidates []grid.Cell, group *timeGroup, config Config, parallelism int) ([]cellRow, error) {
	partitions := partition(len(candidates), parallelism)
	results := make([][]cellRow, len(partitions))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		g.Go(func() error {
			var rows []cellRow
			for _, cell := range candidates[p[0]:p[1]] {
				if err := ctx.Err(); err != nil {
					return err
				}

				row, ok := estimateCell(cell, group, config)
				if ok {
					rows = append(rows, cellRow{cell: cell, key: group.key, row: row})
				}
			}
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "Unable to interpolate time group %v", group.key)
	}

	var rows []cellRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, nil
}

// partition returns up to n contiguous [start, end) ranges covering [0, length).
func partition(length int, n int) [][2]int {
	if length == 0 {
		return nil
	}
	n = min(n, length)

	var partitions [][2]int
	size := length / n
	remainder := length % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < remainder {
			end++
		}
		partitions = append(partitions, [2]int{start, end})
		start = end
	}
	return partitions
}

// estimateCell returns the row of the cell or false if none of the data columns got a value.
func estimateCell(cell grid.Cell, group *timeGroup, config Config) (common.Row, bool) {
	centroid := cell.Centroid()
	baseCount := max(1, config.Estimator.NeighborCount())

	values := map[string]float64{}
	remaining := append([]string{}, config.DataColumns...)
	for factor := 1; factor <= maxRetryFactor && len(remaining) > 0; factor++ {
		count := min(baseCount*factor, len(group.records))
		nearest := group.index.nearest(centroid, count)

		var stillMissing []string
		for _, column := range remaining {
			var neighbors []Neighbor
			for _, n := range nearest {
				value, ok := group.records[n.index].Values[column]
				if ok && !math.IsNaN(value) {
					neighbors = append(neighbors, Neighbor{DistanceKm: n.distanceKm, Value: value})
				}
			}

			value, ok := config.Estimator.Estimate(neighbors)
			if ok {
				values[column] = value
			} else {
				stillMissing = append(stillMissing, column)
			}
		}
		remaining = stillMissing

		if count == len(group.records) {
			break
		}
	}

	if len(values) == 0 {
		if sigolo.ShouldLogTrace() {
			sigolo.Tracef("No value for cell %s in time group %v", cell.String(), group.key)
		}
		return nil, false
	}

	row := common.Row{
		common.CellCol:      cell.String(),
		common.LatitudeCol:  centroid.Lat(),
		common.LongitudeCol: centroid.Lon(),
	}
	group.key.Apply(row, config.Interval)
	for _, column := range config.DataColumns {
		if value, ok := values[column]; ok {
			row[column] = value
		} else {
			row[column] = nil
		}
	}

	return row, true
}
