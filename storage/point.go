package storage

import (
	"geomesh/common"
	"geomesh/grid"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PointSchema returns the columns of a point dataset: a generated key, the exact coordinates, the time columns, the
// value columns and one cell column per resolution.
func PointSchema(interval common.Interval, dataColumns []string, maxResolution int) common.Schema {
	schema := common.Schema{
		{Name: common.KeyCol, Type: common.TypeVarchar},
		{Name: common.LatitudeCol, Type: common.TypeDouble},
		{Name: common.LongitudeCol, Type: common.TypeDouble},
	}
	for _, col := range interval.TimeColumns() {
		schema = append(schema, common.Column{Name: col, Type: common.TypeBigInt})
	}
	for _, col := range dataColumns {
		schema = append(schema, common.Column{Name: col, Type: common.TypeDouble})
	}
	for res := common.MinResolution; res <= maxResolution; res++ {
		schema = append(schema, common.Column{Name: common.PointCellCol(res), Type: common.TypeVarchar})
	}
	return schema
}

// PointTable converts raw records into the rows of a point dataset. Each row gets a random key, since points are not
// identified by a cell.
func PointTable(dataset string, records []common.RawRecord, interval common.Interval, dataColumns []string, maxResolution int) (*common.Table, error) {
	if err := grid.ValidateResolution(maxResolution); err != nil {
		return nil, err
	}

	table := &common.Table{
		Name:   dataset,
		Schema: PointSchema(interval, dataColumns, maxResolution),
		Rows:   make([]common.Row, 0, len(records)),
	}

	for _, record := range records {
		if err := record.Validate(interval); err != nil {
			return nil, err
		}

		row := common.Row{
			common.KeyCol:       uuid.NewString(),
			common.LatitudeCol:  record.Latitude,
			common.LongitudeCol: record.Longitude,
		}
		record.TimeKey().Apply(row, interval)

		for _, col := range dataColumns {
			if value, ok := record.Values[col]; ok {
				row[col] = value
			} else {
				row[col] = nil
			}
		}

		for res := common.MinResolution; res <= maxResolution; res++ {
			cell, err := grid.CellForPoint(record.Latitude, record.Longitude, res)
			if err != nil {
				return nil, errors.Wrapf(err, "Unable to determine cell of record %s", record.String())
			}
			row[common.PointCellCol(res)] = cell.String()
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
