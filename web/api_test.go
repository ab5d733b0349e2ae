package web

import (
	"context"
	"encoding/json"
	"geomesh/common"
	"geomesh/grid"
	"geomesh/query"
	"geomesh/registry"
	"geomesh/storage"
	"geomesh/util"
	"github.com/gorilla/mux"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setupRouter(t *testing.T) *mux.Router {
	dir := t.TempDir()

	cell, err := grid.CellForPoint(52.518, 13.405, 3)
	util.AssertNil(t, err)
	centroid := cell.Centroid()
	table := common.Table{
		Name: "temp_3",
		Schema: common.Schema{
			{Name: common.CellCol, Type: common.TypeVarchar},
			{Name: common.LatitudeCol, Type: common.TypeDouble},
			{Name: common.LongitudeCol, Type: common.TypeDouble},
			{Name: "temperature", Type: common.TypeDouble},
		},
		Rows: []common.Row{{
			common.CellCol:      cell.String(),
			common.LatitudeCol:  centroid.Lat(),
			common.LongitudeCol: centroid.Lon(),
			"temperature":       9.5,
		}},
	}
	err = storage.NewWriter(dir, "temp").Write(context.Background(), []common.Table{table}, storage.ModeCreate)
	util.AssertNil(t, err)

	engine, err := query.NewEngine(dir)
	util.AssertNil(t, err)
	t.Cleanup(func() {
		engine.Close()
	})

	err = engine.Registry().AddMeta(context.Background(), registry.Entry{
		DatasetName:   "temp",
		ValueColumns:  common.Schema{{Name: "temperature", Type: common.TypeDouble}},
		DatasetType:   common.DatasetTypeH3,
		Interval:      common.IntervalOneTime,
		MaxResolution: 3,
	})
	util.AssertNil(t, err)

	table.Name = "temp_index"
	err = storage.NewWriter(dir, "temp_index").Write(context.Background(), []common.Table{table}, storage.ModeCreate)
	util.AssertNil(t, err)
	err = engine.Registry().AddMeta(context.Background(), registry.Entry{
		DatasetName:   "temp_index",
		ValueColumns:  common.Schema{{Name: "temperature", Type: common.TypeDouble}},
		DatasetType:   common.DatasetTypeH3Index,
		Interval:      common.IntervalOneTime,
		MaxResolution: 3,
	})
	util.AssertNil(t, err)

	return initRouter(engine)
}

func request(t *testing.T, router *mux.Router, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestLatLong(t *testing.T) {
	// Arrange
	router := setupRouter(t)

	// Act
	response := request(t, router, http.MethodPost, "/api/v1/geomesh/latlong/temp", `{"latitude": 52.518, "longitude": 13.405, "resolution": 3}`)

	// Assert
	util.AssertEqual(t, http.StatusOK, response.Code)
	var result query.Result
	err := json.Unmarshal(response.Body.Bytes(), &result)
	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(result.Cells))
	util.AssertEqual(t, 9.5, result.Cells[0].Values["temperature"])
}

func TestLatLongRadius_geojson(t *testing.T) {
	// Arrange
	router := setupRouter(t)

	// Act
	response := request(t, router, http.MethodPost, "/api/v1/geomesh/latlong/radius/temp?format=geojson", `{"latitude": 52.518, "longitude": 13.405, "radius": 100}`)

	// Assert
	util.AssertEqual(t, http.StatusOK, response.Code)
	util.AssertEqual(t, "application/geo+json", response.Header().Get("Content-Type"))
	util.AssertMatch(t, `"FeatureCollection"`, response.Body.String())
	util.AssertMatch(t, `"temperature":9.5`, response.Body.String())
}

func TestQuery_errorResponses(t *testing.T) {
	// Arrange
	router := setupRouter(t)

	testCases := []struct {
		path      string
		body      string
		status    int
		errorType string
	}{
		{"/api/v1/geomesh/latlong/humidity", `{"latitude": 52.5, "longitude": 13.4}`, http.StatusNotFound, "UnknownDatasetError"},
		{"/api/v1/geomesh/cell/temp", `{"cell": "nope"}`, http.StatusBadRequest, "InvalidArgumentError"},
		{"/api/v1/geomesh/cell/temp", `{"cell": `, http.StatusBadRequest, "RequestError"},
		{"/api/v1/geomesh/latlong/temp", `{"latitude": 52.5, "longitude": 13.4, "resolution": 3, "year": 2020}`, http.StatusBadRequest, "InvalidArgumentError"},
		{"/api/v1/geomesh/latlong/radius/temp", `{"latitude": 52.5, "longitude": 13.4, "radius": -5}`, http.StatusBadRequest, "InvalidArgumentError"},
		{"/api/v1/geomesh/shapefile/temp", `{"shapefile": ""}`, http.StatusBadRequest, "InvalidArgumentError"},
	}

	for _, testCase := range testCases {
		// Act
		response := request(t, router, http.MethodPost, testCase.path, testCase.body)

		// Assert
		util.AssertEqual(t, testCase.status, response.Code)
		var errorResponse ErrorResponse
		err := json.Unmarshal(response.Body.Bytes(), &errorResponse)
		util.AssertNil(t, err)
		util.AssertEqual(t, testCase.errorType, errorResponse.Type)
	}
}

func TestBoundingBox(t *testing.T) {
	// Arrange
	router := setupRouter(t)

	// Act
	response := request(t, router, http.MethodPost, "/api/v1/geomesh/boundingbox/temp", `{"min_latitude": 52, "min_longitude": 13, "max_latitude": 53, "max_longitude": 14, "resolution": 3}`)

	// Assert
	util.AssertEqual(t, http.StatusOK, response.Code)
	var result query.Result
	err := json.Unmarshal(response.Body.Bytes(), &result)
	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(result.Cells))
}

func TestFilter(t *testing.T) {
	// Arrange
	router := setupRouter(t)
	body := `{
		"assets": [{"id": "berlin", "lat": 52.518, "long": 13.405}, {"id": "paris", "lat": 48.85, "long": 2.35}],
		"datasets": [{"name": "temp_index", "filters": [{"column": "temperature", "filter_type": "greater_than", "target_value": 5}]}]
	}`

	// Act
	response := request(t, router, http.MethodPost, "/api/v1/geomesh/filter", body)

	// Assert
	util.AssertEqual(t, http.StatusOK, response.Code)
	var result filterResponse
	err := json.Unmarshal(response.Body.Bytes(), &result)
	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(result.Assets))
	util.AssertEqual(t, "berlin", result.Assets[0].ID)
}

func TestMeta(t *testing.T) {
	// Arrange
	router := setupRouter(t)
	body := `{
		"dataset_name": "flood",
		"description": "Flood depth",
		"value_columns": {"depth_max": "float", "depth_min": "DOUBLE"},
		"key_columns": [{"name": "scenario", "type": "str"}],
		"dataset_type": "h3_index",
		"max_resolution": 7
	}`

	// Act
	addResponse := request(t, router, http.MethodPost, "/api/v1/meta", body)
	duplicateResponse := request(t, router, http.MethodPost, "/api/v1/meta", body)
	showResponse := request(t, router, http.MethodGet, "/api/v1/meta", "")

	// Assert
	util.AssertEqual(t, http.StatusOK, addResponse.Code)
	util.AssertEqual(t, http.StatusConflict, duplicateResponse.Code)
	util.AssertEqual(t, http.StatusOK, showResponse.Code)

	var entries []registry.Entry
	err := json.Unmarshal(showResponse.Body.Bytes(), &entries)
	util.AssertNil(t, err)
	util.AssertEqual(t, 3, len(entries))
	util.AssertEqual(t, "flood", entries[0].DatasetName)
	util.AssertEqual(t, common.Schema{{Name: "depth_max", Type: common.TypeReal}, {Name: "depth_min", Type: common.TypeDouble}}, entries[0].ValueColumns)
	util.AssertEqual(t, common.IntervalOneTime, entries[0].Interval)
}

func TestColumnArgs_keepsOrder(t *testing.T) {
	// Arrange
	var columns ColumnArgs

	// Act
	err := json.Unmarshal([]byte(`{"z": "DOUBLE", "a": "VARCHAR", "m": "BIGINT"}`), &columns)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, []string{"z", "a", "m"}, common.Schema(columns).Names())
}
