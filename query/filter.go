package query

import (
	"context"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/storage"
	"github.com/hauke96/sigolo/v2"
	"time"
)

type Asset struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Filter is a condition "<column> <comparator> <target>" on the cell of an asset.
type Filter struct {
	Column     string  `json:"column"`
	Comparator string  `json:"comparator"`
	Target     float64 `json:"target"`
}

type DatasetFilter struct {
	Name    string     `json:"name"`
	Filters []Filter   `json:"filters"`
	Time    TimeFilter `json:"time"`
}

type assetFilter struct {
	column   string
	operator storage.Operator
	target   float64
}

// FilterAssets returns the assets whose cell satisfies all filters of all datasets. Each asset is resolved to its
// containing cell at the resolution of each dataset. The filters of one dataset must hold for the same stored row.
// Assets without a stored cell are excluded.
func (e *Engine) FilterAssets(ctx context.Context, assets []Asset, datasets []DatasetFilter) ([]Asset, error) {
	startTime := time.Now()

	for _, asset := range assets {
		if err := grid.ValidateCoordinate(asset.Latitude, asset.Longitude); err != nil {
			return nil, common.NewInvalidArgumentError("assets", "asset %s: %s", asset.ID, err.Error())
		}
	}

	remaining := assets
	for _, datasetFilter := range datasets {
		var err error
		remaining, err = e.filterByDataset(ctx, remaining, datasetFilter)
		if err != nil {
			return nil, err
		}
	}

	sigolo.Debugf("Kept %d of %d assets for %d datasets in %s", len(remaining), len(assets), len(datasets), time.Since(startTime))
	if remaining == nil {
		return []Asset{}, nil
	}
	return remaining, nil
}

func (e *Engine) filterByDataset(ctx context.Context, assets []Asset, datasetFilter DatasetFilter) ([]Asset, error) {
	entry, store, release, err := e.dataset(ctx, datasetFilter.Name)
	if err != nil {
		return nil, err
	}
	defer release()
	if entry.DatasetType == common.DatasetTypePoint {
		return nil, common.NewUnsupportedOperationError("asset filter", entry.DatasetName, entry.DatasetType)
	}

	table, err := cellTable(entry, entry.MaxResolution, "asset filter")
	if err != nil {
		return nil, err
	}

	conditions, err := datasetFilter.Time.conditions(entry)
	if err != nil {
		return nil, err
	}

	schema, err := store.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	var filters []assetFilter
	for _, filter := range datasetFilter.Filters {
		if err = common.ValidateColumnName(filter.Column); err != nil {
			return nil, err
		}
		columnIndex := schema.Index(filter.Column)
		if columnIndex == -1 || common.IsReservedCol(filter.Column) {
			return nil, common.NewInvalidArgumentError("column", "dataset %s has no value column %s", entry.DatasetName, filter.Column)
		}
		if !schema[columnIndex].Type.IsNumeric() {
			return nil, common.NewInvalidArgumentError("column", "column %s of dataset %s is not numeric", filter.Column, entry.DatasetName)
		}

		operator, err := storage.ParseComparator(filter.Comparator)
		if err != nil {
			return nil, err
		}
		filters = append(filters, assetFilter{column: filter.Column, operator: operator, target: filter.Target})
	}

	assetCells := make([]string, len(assets))
	for i, asset := range assets {
		cell, err := grid.CellForPoint(asset.Latitude, asset.Longitude, entry.MaxResolution)
		if err != nil {
			return nil, err
		}
		assetCells[i] = cell.String()
	}
	if len(assets) == 0 {
		return nil, nil
	}

	conditions = append(conditions, storage.In(common.CellCol, sortedCellStrings(assetCells)))
	rows, err := store.Select(ctx, table, storage.Query{Conditions: conditions})
	if err != nil {
		return nil, err
	}

	matchingCells := map[string]bool{}
	for _, row := range rows {
		cell, _ := row[common.CellCol].(string)
		if !matchingCells[cell] && rowMatches(row, filters) {
			matchingCells[cell] = true
		}
	}

	var result []Asset
	for i, asset := range assets {
		if matchingCells[assetCells[i]] {
			result = append(result, asset)
		}
	}

	sigolo.Debugf("%d of %d assets match the filters of dataset %s", len(result), len(assets), entry.DatasetName)
	return result, nil
}

// rowMatches returns true when all filters hold. Missing values never match.
func rowMatches(row common.Row, filters []assetFilter) bool {
	for _, filter := range filters {
		value, ok := storage.ToFloat(row[filter.column])
		if !ok || !filter.operator.Matches(value, filter.target) {
			return false
		}
	}
	return true
}
