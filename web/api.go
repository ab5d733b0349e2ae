package web

import (
	"context"
	"encoding/json"
	"geomesh/common"
	ownIo "geomesh/io"
	"geomesh/query"
	"geomesh/registry"
	"geomesh/util"
	"github.com/gorilla/mux"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"io"
	"net/http"
	"time"
)

const (
	defaultRadiusResolution = 3
	defaultResolution       = 7
	requestTimeout          = 5 * time.Minute
	maxLoggedBodyLength     = 500
)

func StartServer(port string, databaseDir string) {
	server, closeEngine := newServer(port, databaseDir)
	defer closeEngine()
	sigolo.Infof("Start server without TLS support on port %s", port)
	err := server.ListenAndServe()
	sigolo.FatalCheck(err)
}

func StartServerTls(port string, certFile string, keyFile string, databaseDir string) {
	server, closeEngine := newServer(port, databaseDir)
	defer closeEngine()
	sigolo.Infof("Start server with TLS support on port %s", port)
	err := server.ListenAndServeTLS(certFile, keyFile)
	sigolo.FatalCheck(err)
}

func newServer(port string, databaseDir string) (*http.Server, func()) {
	engine, err := query.NewEngine(databaseDir)
	sigolo.FatalCheck(err)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      initRouter(engine),
		ReadTimeout:  time.Minute,
		WriteTimeout: requestTimeout,
	}
	return server, func() {
		if err := engine.Close(); err != nil {
			sigolo.Errorf("Unable to close query engine: %+v", err)
		}
	}
}

type api struct {
	engine *query.Engine
}

func initRouter(engine *query.Engine) *mux.Router {
	a := &api{engine: engine}

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/geomesh/latlong/radius/{dataset}", a.handle(a.latLongRadius)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/latlong/{dataset}", a.handle(a.latLong)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/cell/radius/{dataset}", a.handle(a.cellRadius)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/cell/{dataset}", a.handle(a.cell)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/shapefile/{dataset}", a.handle(a.shapefile)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/boundingbox/{dataset}", a.handle(a.boundingBox)).Methods(http.MethodPost)
	v1.HandleFunc("/geomesh/filter", a.handleJson(a.filter)).Methods(http.MethodPost)
	v1.HandleFunc("/meta", a.handleJson(a.showMeta)).Methods(http.MethodGet)
	v1.HandleFunc("/meta", a.handleJson(a.addMeta)).Methods(http.MethodPost)

	return r
}

type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

type queryHandler func(ctx context.Context, dataset string, request *http.Request) (*query.Result, error)

type jsonHandler func(ctx context.Context, request *http.Request) (any, error)

// handle runs the query and writes the result as JSON, or as GeoJSON with "?format=geojson".
func (a *api) handle(handler queryHandler) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Access-Control-Allow-Origin", "*")
		dataset := mux.Vars(request)["dataset"]
		sigolo.Infof("Query %s on dataset %s", request.URL.Path, dataset)
		startTime := time.Now()

		result, err := handler(request.Context(), dataset, request)
		if err != nil {
			writeError(writer, request, err)
			return
		}
		sigolo.Debugf("Found %d results in %s", result.Len(), time.Since(startTime))

		if request.URL.Query().Get("format") == "geojson" {
			writer.Header().Set("Content-Type", "application/geo+json")
			err = ownIo.WriteResultAsGeoJson(result, writer)
			if err != nil {
				sigolo.Errorf("Error writing query result: %+v", err)
			}
			return
		}

		writeJson(writer, http.StatusOK, result)
	}
}

func (a *api) handleJson(handler jsonHandler) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Access-Control-Allow-Origin", "*")
		sigolo.Infof("Request %s %s", request.Method, request.URL.Path)

		result, err := handler(request.Context(), request)
		if err != nil {
			writeError(writer, request, err)
			return
		}

		writeJson(writer, http.StatusOK, result)
	}
}

func writeJson(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	err := json.NewEncoder(writer).Encode(body)
	if err != nil {
		sigolo.Errorf("Error writing response: %+v", err)
	}
}

func writeError(writer http.ResponseWriter, request *http.Request, err error) {
	status, errorType := statusOf(err)
	if status == http.StatusInternalServerError {
		sigolo.Errorf("Error handling request to '%s': %+v", request.URL.Path, err)
	} else {
		sigolo.Debugf("Rejected request to '%s': %s", request.URL.Path, err.Error())
	}
	writeJson(writer, status, ErrorResponse{Error: err.Error(), Type: errorType})
}

func statusOf(err error) (int, string) {
	var unknownDatasetErr *common.UnknownDatasetError
	var regionNotFoundErr *common.RegionNotFoundError
	var invalidArgumentErr *common.InvalidArgumentError
	var missingTemporalKeyErr *common.MissingTemporalKeyError
	var unsupportedOperationErr *common.UnsupportedOperationError
	var configurationErr *common.ConfigurationError
	var duplicateDatasetErr *common.DuplicateDatasetError
	var requestErr *requestError

	switch {
	case errors.As(err, &unknownDatasetErr):
		return http.StatusNotFound, "UnknownDatasetError"
	case errors.As(err, &regionNotFoundErr):
		return http.StatusNotFound, "RegionNotFoundError"
	case errors.As(err, &invalidArgumentErr):
		return http.StatusBadRequest, "InvalidArgumentError"
	case errors.As(err, &missingTemporalKeyErr):
		return http.StatusBadRequest, "MissingTemporalKeyError"
	case errors.As(err, &unsupportedOperationErr):
		return http.StatusBadRequest, "UnsupportedOperationError"
	case errors.As(err, &configurationErr):
		return http.StatusBadRequest, "ConfigurationError"
	case errors.As(err, &requestErr):
		return http.StatusBadRequest, "RequestError"
	case errors.As(err, &duplicateDatasetErr):
		return http.StatusConflict, "DuplicateDatasetError"
	}
	return http.StatusInternalServerError, "InternalError"
}

// requestError is returned for request bodies that can't be decoded.
type requestError struct {
	cause error
}

func (e *requestError) Error() string {
	return "Unable to decode request body: " + e.cause.Error()
}

func decode(request *http.Request, target any) error {
	body, err := io.ReadAll(request.Body)
	if err != nil {
		return &requestError{cause: err}
	}
	sigolo.Tracef("Request body: %s", util.TruncateForLog(string(body), maxLoggedBodyLength))

	err = json.Unmarshal(body, target)
	if err != nil {
		return &requestError{cause: err}
	}
	return nil
}

type timeArgs struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

func (t timeArgs) filter() query.TimeFilter {
	return query.TimeFilter{Year: t.Year, Month: t.Month, Day: t.Day}
}

func resolutionOrDefault(resolution *int, defaultValue int) int {
	if resolution == nil {
		return defaultValue
	}
	return *resolution
}

type latLongRadiusArgs struct {
	timeArgs
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Radius     float64 `json:"radius"`
	Resolution *int    `json:"resolution"`
}

func (a *api) latLongRadius(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args latLongRadiusArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	return a.engine.ByPointRadius(ctx, dataset, args.Latitude, args.Longitude, args.Radius, resolutionOrDefault(args.Resolution, defaultRadiusResolution), args.filter())
}

type latLongArgs struct {
	timeArgs
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Resolution *int    `json:"resolution"`
}

func (a *api) latLong(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args latLongArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	return a.engine.ByPoint(ctx, dataset, args.Latitude, args.Longitude, resolutionOrDefault(args.Resolution, defaultResolution), args.filter())
}

type cellArgs struct {
	timeArgs
	Cell   string  `json:"cell"`
	Radius float64 `json:"radius"`
}

func (a *api) cellRadius(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args cellArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	return a.engine.ByCellRadius(ctx, dataset, args.Cell, args.Radius, args.filter())
}

func (a *api) cell(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args cellArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	return a.engine.ByCell(ctx, dataset, args.Cell, args.filter())
}

type shapefileArgs struct {
	timeArgs
	Shapefile  string `json:"shapefile"`
	NameField  string `json:"name_field"`
	Region     string `json:"region"`
	Resolution *int   `json:"resolution"`
}

func (a *api) shapefile(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args shapefileArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	if args.Shapefile == "" {
		return nil, common.NewInvalidArgumentError("shapefile", "no shapefile given")
	}
	return a.engine.ByShapefile(ctx, dataset, args.Shapefile, args.NameField, args.Region, resolutionOrDefault(args.Resolution, defaultResolution), args.filter())
}

type boundingBoxArgs struct {
	timeArgs
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
	Resolution   *int    `json:"resolution"`
}

func (a *api) boundingBox(ctx context.Context, dataset string, request *http.Request) (*query.Result, error) {
	var args boundingBoxArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}
	return a.engine.ByBoundingBox(ctx, dataset, args.MinLatitude, args.MinLongitude, args.MaxLatitude, args.MaxLongitude, resolutionOrDefault(args.Resolution, defaultResolution), args.filter())
}

type assetArgs struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"long"`
}

type assetFilterArgs struct {
	Column      string  `json:"column"`
	FilterType  string  `json:"filter_type"`
	TargetValue float64 `json:"target_value"`
}

type datasetArgs struct {
	timeArgs
	Name    string            `json:"name"`
	Filters []assetFilterArgs `json:"filters"`
}

type filterArgs struct {
	Assets   []assetArgs   `json:"assets"`
	Datasets []datasetArgs `json:"datasets"`
}

type filterResponse struct {
	Assets []query.Asset `json:"assets"`
}

func (a *api) filter(ctx context.Context, request *http.Request) (any, error) {
	var args filterArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}

	var assets []query.Asset
	for _, asset := range args.Assets {
		assets = append(assets, query.Asset{ID: asset.ID, Latitude: asset.Latitude, Longitude: asset.Longitude})
	}

	var datasets []query.DatasetFilter
	for _, dataset := range args.Datasets {
		datasetFilter := query.DatasetFilter{Name: dataset.Name, Time: dataset.filter()}
		for _, filter := range dataset.Filters {
			datasetFilter.Filters = append(datasetFilter.Filters, query.Filter{Column: filter.Column, Comparator: filter.FilterType, Target: filter.TargetValue})
		}
		datasets = append(datasets, datasetFilter)
	}

	result, err := a.engine.FilterAssets(ctx, assets, datasets)
	if err != nil {
		return nil, err
	}
	return filterResponse{Assets: result}, nil
}

func (a *api) showMeta(ctx context.Context, request *http.Request) (any, error) {
	return a.engine.Registry().ShowMeta(ctx)
}

type addMetaArgs struct {
	DatasetName   string             `json:"dataset_name"`
	Description   string             `json:"description"`
	ValueColumns  ColumnArgs         `json:"value_columns"`
	KeyColumns    ColumnArgs         `json:"key_columns"`
	DatasetType   common.DatasetType `json:"dataset_type"`
	Interval      common.Interval    `json:"interval"`
	MaxResolution int                `json:"max_resolution"`
}

func (a *api) addMeta(ctx context.Context, request *http.Request) (any, error) {
	var args addMetaArgs
	if err := decode(request, &args); err != nil {
		return nil, err
	}

	entry := registry.Entry{
		DatasetName:   args.DatasetName,
		Description:   args.Description,
		ValueColumns:  common.Schema(args.ValueColumns),
		KeyColumns:    common.Schema(args.KeyColumns),
		DatasetType:   args.DatasetType,
		Interval:      args.Interval,
		MaxResolution: args.MaxResolution,
	}
	if err := a.engine.Registry().AddMeta(ctx, entry); err != nil {
		return nil, err
	}
	return a.engine.Registry().Get(ctx, args.DatasetName)
}
