package aggregation

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"math"
	"sort"
	"strings"
	"time"
)

type Config struct {
	TableName      string
	DataColumns    []string
	KeyColumns     []string
	Resolution     int
	Steps          []Step
	MaxParallelism int
}

type outputColumn struct {
	name       string
	dataColumn string
	step       Step
}

// group contains the samples of one combination of key values and cell.
type group struct {
	keys    []string
	cell    grid.Cell
	records []*common.RawRecord
}

// OutputColumns returns the aggregation columns in step order per data column. Two steps producing the same column
// name are a configuration error.
func OutputColumns(dataColumns []string, steps []Step) (common.Schema, error) {
	columns, err := outputColumns(dataColumns, steps)
	if err != nil {
		return nil, err
	}

	var schema common.Schema
	for _, c := range columns {
		schema = append(schema, common.Column{Name: c.name, Type: c.step.OutputType()})
	}
	return schema, nil
}

func outputColumns(dataColumns []string, steps []Step) ([]outputColumn, error) {
	var columns []outputColumn
	seen := map[string]bool{}
	for _, dataColumn := range dataColumns {
		for _, step := range steps {
			name := dataColumn + "_" + step.Suffix()
			if seen[name] {
				return nil, common.NewConfigurationError("aggregation_steps", "aggregation output column name %s is already in use by another aggregation", name)
			}
			seen[name] = true
			columns = append(columns, outputColumn{name: name, dataColumn: dataColumn, step: step})
		}
	}
	return columns, nil
}

// Aggregate groups the records by their key columns and the cell they lie in and applies every step to every data
// column of each group. Cells without samples do not appear in the result. Rows are ordered by cell and key values.
func Aggregate(ctx context.Context, records []common.RawRecord, config Config) (*common.Table, error) {
	startTime := time.Now()

	if err := grid.ValidateResolution(config.Resolution); err != nil {
		return nil, common.NewConfigurationError("aggregation_resolution", "%s", err.Error())
	}
	if len(config.Steps) == 0 {
		return nil, common.NewConfigurationError("aggregation_steps", "at least one aggregation step is required")
	}

	columns, err := outputColumns(config.DataColumns, config.Steps)
	if err != nil {
		return nil, err
	}

	groups, err := groupRecords(records, config)
	if err != nil {
		return nil, err
	}

	sigolo.Infof("Aggregate %d records into %d groups at resolution %d", len(records), len(groups), config.Resolution)

	rows := make([]common.Row, len(groups))
	parallelism := max(1, min(config.MaxParallelism, len(groups)))
	chunkSize := (len(groups) + parallelism - 1) / max(1, parallelism)

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(groups); start += chunkSize {
		end := min(start+chunkSize, len(groups))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rows[i] = aggregateGroup(groups[i], columns, config.KeyColumns)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "Unable to aggregate records")
	}

	table := &common.Table{
		Name:   config.TableName,
		Schema: Schema(config.KeyColumns, columns),
		Rows:   rows,
	}

	sigolo.Infof("Aggregated %d rows in %s", len(rows), time.Since(startTime))
	return table, nil
}

func Schema(keyColumns []string, columns []outputColumn) common.Schema {
	schema := common.Schema{
		{Name: common.CellCol, Type: common.TypeVarchar},
		{Name: common.LatitudeCol, Type: common.TypeDouble},
		{Name: common.LongitudeCol, Type: common.TypeDouble},
	}
	for _, key := range keyColumns {
		schema = append(schema, common.Column{Name: key, Type: common.TypeVarchar})
	}
	for _, c := range columns {
		schema = append(schema, common.Column{Name: c.name, Type: c.step.OutputType()})
	}
	return schema
}

func groupRecords(records []common.RawRecord, config Config) ([]*group, error) {
	groupMap := map[string]*group{}

	for i := range records {
		record := &records[i]

		cell, err := grid.CellForPoint(record.Latitude, record.Longitude, config.Resolution)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to determine cell of record %s", record.String())
		}

		keys := make([]string, len(config.KeyColumns))
		for k, keyColumn := range config.KeyColumns {
			keys[k] = record.Keys[keyColumn]
		}

		id := strings.Join(keys, "\x00") + "\x00" + cell.String()
		g, ok := groupMap[id]
		if !ok {
			g = &group{keys: keys, cell: cell}
			groupMap[id] = g
		}
		g.records = append(g.records, record)
	}

	groups := make([]*group, 0, len(groupMap))
	for _, g := range groupMap {
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].cell != groups[j].cell {
			return groups[i].cell < groups[j].cell
		}
		for k := range groups[i].keys {
			if groups[i].keys[k] != groups[j].keys[k] {
				return groups[i].keys[k] < groups[j].keys[k]
			}
		}
		return false
	})

	return groups, nil
}

func aggregateGroup(g *group, columns []outputColumn, keyColumns []string) common.Row {
	centroid := g.cell.Centroid()
	row := common.Row{
		common.CellCol:      g.cell.String(),
		common.LatitudeCol:  centroid.Lat(),
		common.LongitudeCol: centroid.Lon(),
	}
	for k, keyColumn := range keyColumns {
		row[keyColumn] = g.keys[k]
	}

	valuesByColumn := map[string][]float64{}
	for _, c := range columns {
		values, ok := valuesByColumn[c.dataColumn]
		if !ok {
			for _, record := range g.records {
				value, exists := record.Values[c.dataColumn]
				if exists && !math.IsNaN(value) {
					values = append(values, value)
				}
			}
			valuesByColumn[c.dataColumn] = values
		}

		if len(values) == 0 {
			row[c.name] = nil
			continue
		}
		row[c.name] = c.step.Aggregate(values)
	}

	return row
}
