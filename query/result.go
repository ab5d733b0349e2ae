package query

import (
	"geomesh/common"
	"geomesh/registry"
	"geomesh/storage"
	"sort"
)

type CellResult struct {
	Cell      string         `json:"cell"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Values    map[string]any `json:"values"`
}

type PointResult struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Values    map[string]any `json:"values"`
	// Cells maps the cell columns ("res0" to "res15") to the cells containing the point.
	Cells map[string]string `json:"cells"`
}

// Result contains either cells (continuous and index datasets) or points (point datasets).
type Result struct {
	Dataset     string             `json:"dataset"`
	DatasetType common.DatasetType `json:"dataset_type"`
	Cells       []CellResult       `json:"cells,omitempty"`
	Points      []PointResult      `json:"points,omitempty"`
}

func (r *Result) Len() int {
	return len(r.Cells) + len(r.Points)
}

// resultColumns returns the columns to put into the values of each result: keys, time and value columns.
func resultColumns(entry *registry.Entry) []string {
	var columns []string
	columns = append(columns, entry.KeyColumns.Names()...)
	columns = append(columns, entry.Interval.TimeColumns()...)
	columns = append(columns, entry.ValueColumns.Names()...)
	return columns
}

func cellResult(entry *registry.Entry, rows []common.Row) *Result {
	result := &Result{Dataset: entry.DatasetName, DatasetType: entry.DatasetType, Cells: []CellResult{}}
	columns := resultColumns(entry)

	for _, row := range rows {
		cell, _ := row[common.CellCol].(string)
		latitude, _ := storage.ToFloat(row[common.LatitudeCol])
		longitude, _ := storage.ToFloat(row[common.LongitudeCol])

		values := map[string]any{}
		for _, column := range columns {
			values[column] = row[column]
		}

		result.Cells = append(result.Cells, CellResult{
			Cell:      cell,
			Latitude:  latitude,
			Longitude: longitude,
			Values:    values,
		})
	}

	return result
}

func pointResult(entry *registry.Entry, rows []common.Row) *Result {
	result := &Result{Dataset: entry.DatasetName, DatasetType: entry.DatasetType, Points: []PointResult{}}
	columns := resultColumns(entry)

	for _, row := range rows {
		latitude, _ := storage.ToFloat(row[common.LatitudeCol])
		longitude, _ := storage.ToFloat(row[common.LongitudeCol])

		values := map[string]any{}
		for _, column := range columns {
			values[column] = row[column]
		}

		cells := map[string]string{}
		for column, value := range row {
			if cell, ok := value.(string); ok && common.IsPointCellCol(column) {
				cells[column] = cell
			}
		}

		result.Points = append(result.Points, PointResult{
			Latitude:  latitude,
			Longitude: longitude,
			Values:    values,
			Cells:     cells,
		})
	}

	return result
}

// sortedCellStrings returns the unique cell ids as query values.
func sortedCellStrings(cells []string) []any {
	unique := map[string]bool{}
	for _, cell := range cells {
		unique[cell] = true
	}

	sorted := make([]string, 0, len(unique))
	for cell := range unique {
		sorted = append(sorted, cell)
	}
	sort.Strings(sorted)

	values := make([]any, len(sorted))
	for i, cell := range sorted {
		values[i] = cell
	}
	return values
}
