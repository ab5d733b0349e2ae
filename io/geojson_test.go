package io

import (
	"bytes"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/query"
	"geomesh/util"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"os"
	"path/filepath"
	"testing"
)

func testResult(t *testing.T) *query.Result {
	cell, err := grid.CellForPoint(52.518, 13.405, 5)
	util.AssertNil(t, err)
	centroid := cell.Centroid()

	return &query.Result{
		Dataset:     "temp",
		DatasetType: common.DatasetTypeH3,
		Cells: []query.CellResult{{
			Cell:      cell.String(),
			Latitude:  centroid.Lat(),
			Longitude: centroid.Lon(),
			Values:    map[string]any{"temperature": 12.5, "year": int64(2020)},
		}},
		Points: []query.PointResult{{
			Latitude:  52.518,
			Longitude: 13.405,
			Values:    map[string]any{"rainfall": 570.0},
			Cells:     map[string]string{"res5": cell.String()},
		}},
	}
}

func TestToFeatureCollection(t *testing.T) {
	// Arrange
	result := testResult(t)

	// Act
	collection, err := ToFeatureCollection(result)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(collection.Features))

	polygon, ok := collection.Features[0].Geometry.(orb.Polygon)
	util.AssertTrue(t, ok)
	util.AssertEqual(t, 7, len(polygon[0]))
	util.AssertEqual(t, result.Cells[0].Cell, collection.Features[0].Properties["cell"])
	util.AssertEqual(t, 12.5, collection.Features[0].Properties["temperature"])

	point, ok := collection.Features[1].Geometry.(orb.Point)
	util.AssertTrue(t, ok)
	util.AssertEqual(t, orb.Point{13.405, 52.518}, point)
	util.AssertEqual(t, result.Cells[0].Cell, collection.Features[1].Properties["res5"])
}

func TestWriteResultAsGeoJson(t *testing.T) {
	// Arrange
	buffer := &bytes.Buffer{}

	// Act
	err := WriteResultAsGeoJson(testResult(t), buffer)

	// Assert
	util.AssertNil(t, err)
	collection, err := geojson.UnmarshalFeatureCollection(buffer.Bytes())
	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(collection.Features))
	util.AssertEqual(t, 570.0, collection.Features[1].Properties["rainfall"])
}

func TestWriteResultAsGeoJsonFile(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "result.geojson")

	// Act
	err := WriteResultAsGeoJsonFile(testResult(t), path)

	// Assert
	util.AssertNil(t, err)
	content, err := os.ReadFile(path)
	util.AssertNil(t, err)
	util.AssertMatch(t, `"type":"FeatureCollection"`, string(content))
}
