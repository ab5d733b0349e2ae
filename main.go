package main

import (
	"context"
	"encoding/json"
	"fmt"
	"geomesh/common"
	ownIo "geomesh/io"
	"geomesh/pipeline"
	"geomesh/query"
	"geomesh/registry"
	"geomesh/web"
	"github.com/alecthomas/kong"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"os"
	"strings"
)

const VERSION = "v0.1.0"

type TimeFlags struct {
	Year  *int `help:"The year to retrieve data for." optional:""`
	Month *int `help:"The month to retrieve data for." optional:""`
	Day   *int `help:"The day to retrieve data for." optional:""`
}

func (t TimeFlags) filter() query.TimeFilter {
	return query.TimeFilter{Year: t.Year, Month: t.Month, Day: t.Day}
}

type OutputFlags struct {
	Output string `help:"Write the result as GeoJSON into this file instead of printing it as JSON." short:"o" placeholder:"<file>"`
}

var cli struct {
	Logging     string      `help:"Logging verbosity." enum:"info,debug,trace" short:"l" default:"info"`
	Version     VersionFlag `help:"Print version information and quit" name:"version" short:"v"`
	DatabaseDir string      `help:"The directory containing the datasets and the metadata registry." short:"d" default:"geomesh-data" type:"path"`
	Load        struct {
		Config string `help:"The pipeline configuration file." placeholder:"<config-file>" arg:"" type:"existingfile"`
	} `cmd:"" help:"Runs the loading pipeline of the given configuration file."`
	Addmeta struct {
		DatasetName   string   `help:"Name of the dataset." required:""`
		Description   string   `help:"Description of the dataset."`
		ValueColumns  []string `help:"Value columns as name:type pairs, e.g. temperature:DOUBLE." required:""`
		KeyColumns    []string `help:"Key columns as name:type pairs."`
		DatasetType   string   `help:"Type of the dataset." enum:"h3,point,h3_index" default:"h3"`
		Interval      string   `help:"Interval of the dataset." enum:"one-time,yearly,monthly,daily" default:"one-time"`
		MaxResolution int      `help:"Maximum resolution of the dataset." default:"7"`
	} `cmd:"" help:"Registers the metadata of a dataset."`
	Showmeta struct {
	} `cmd:"" help:"Prints the metadata of all registered datasets."`
	Query struct {
		Radius struct {
			Dataset    string  `arg:"" help:"The dataset to query."`
			Latitude   float64 `help:"Latitude of the center." required:""`
			Longitude  float64 `help:"Longitude of the center." required:""`
			Radius     float64 `help:"Radius in kilometers, -1 for everything." required:""`
			Resolution int     `help:"The resolution to retrieve data for." default:"3"`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns all cells or points within the radius around a location."`
		Point struct {
			Dataset    string  `arg:"" help:"The dataset to query."`
			Latitude   float64 `help:"Latitude of the location." required:""`
			Longitude  float64 `help:"Longitude of the location." required:""`
			Resolution int     `help:"The resolution to retrieve data for." default:"7"`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns the cell containing a location."`
		Cellradius struct {
			Dataset string  `arg:"" help:"The dataset to query."`
			Cell    string  `help:"The ID of the central cell." required:""`
			Radius  float64 `help:"Radius in kilometers, -1 for everything." required:""`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns all cells or points within the radius around a cell."`
		Cell struct {
			Dataset string `arg:"" help:"The dataset to query."`
			Cell    string `help:"The ID of the cell." required:""`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns the data of one cell."`
		Region struct {
			Dataset    string `arg:"" help:"The dataset to query."`
			Shapefile  string `help:"The shapefile containing the region." required:"" type:"existingfile"`
			NameField  string `help:"The attribute of the shapefile containing the region names." default:"name"`
			Region     string `help:"The name of the region within the shapefile. All polygons are used when empty."`
			Resolution int    `help:"The resolution to retrieve data for." default:"7"`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns all cells or points within a region of a shapefile."`
		Bbox struct {
			Dataset    string  `arg:"" help:"The dataset to query."`
			MinLat     float64 `help:"Minimum latitude." required:""`
			MinLon     float64 `help:"Minimum longitude." required:""`
			MaxLat     float64 `help:"Maximum latitude." required:""`
			MaxLon     float64 `help:"Maximum longitude." required:""`
			Resolution int     `help:"The resolution to retrieve data for." default:"7"`
			TimeFlags
			OutputFlags
		} `cmd:"" help:"Returns all cells or points within a bounding box."`
		Filter struct {
			Request string `arg:"" help:"JSON file with 'assets' and 'datasets' as accepted by the filter endpoint." type:"existingfile"`
		} `cmd:"" help:"Returns the assets matching all dataset filters."`
	} `cmd:"" help:"Queries a dataset."`
	Serve struct {
		Port    string `help:"The port to listen on." default:"8080"`
		TlsCert string `help:"Certificate file, enables TLS together with --tls-key." type:"existingfile"`
		TlsKey  string `help:"Key file of the certificate." type:"existingfile"`
	} `cmd:"" help:"Starts the HTTP API."`
}

type VersionFlag string

func (v VersionFlag) Decode(ctx *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                         { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	ctx := kong.Parse(
		&cli,
		kong.Name("geomesh"),
		kong.Description("Loads geospatial datasets into a hexagonal grid and queries them."),
		kong.Vars{
			"version": VERSION,
		},
	)

	if strings.ToLower(cli.Logging) == "debug" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_DEBUG)
	} else if strings.ToLower(cli.Logging) == "trace" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_TRACE)
	} else if strings.ToLower(cli.Logging) == "info" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_INFO)
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
	} else {
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
		sigolo.Fatalf("Unknown logging level '%s'", cli.Logging)
	}

	background := context.Background()

	switch ctx.Command() {
	case "load <config>":
		err := pipeline.LoadFile(background, cli.Load.Config)
		sigolo.FatalCheck(err)
	case "addmeta":
		err := addMeta(background)
		sigolo.FatalCheck(err)
	case "showmeta":
		err := showMeta(background)
		sigolo.FatalCheck(err)
	case "serve":
		if cli.Serve.TlsCert != "" && cli.Serve.TlsKey != "" {
			web.StartServerTls(cli.Serve.Port, cli.Serve.TlsCert, cli.Serve.TlsKey, cli.DatabaseDir)
		} else {
			web.StartServer(cli.Serve.Port, cli.DatabaseDir)
		}
	default:
		if strings.HasPrefix(ctx.Command(), "query ") {
			err := runQuery(background, ctx.Command())
			sigolo.FatalCheck(err)
			return
		}
		sigolo.Errorf("Unknown command '%s'", ctx.Command())
	}
}

func addMeta(ctx context.Context) error {
	valueColumns, err := parseColumns(cli.Addmeta.ValueColumns)
	if err != nil {
		return err
	}
	keyColumns, err := parseColumns(cli.Addmeta.KeyColumns)
	if err != nil {
		return err
	}

	r, err := registry.Open(cli.DatabaseDir)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.AddMeta(ctx, registry.Entry{
		DatasetName:   cli.Addmeta.DatasetName,
		Description:   cli.Addmeta.Description,
		ValueColumns:  valueColumns,
		KeyColumns:    keyColumns,
		DatasetType:   common.DatasetType(cli.Addmeta.DatasetType),
		Interval:      common.Interval(cli.Addmeta.Interval),
		MaxResolution: cli.Addmeta.MaxResolution,
	})
}

// parseColumns parses "name:type" pairs.
func parseColumns(pairs []string) (common.Schema, error) {
	var schema common.Schema
	for _, pair := range pairs {
		name, columnType, found := strings.Cut(pair, ":")
		if !found || name == "" || columnType == "" {
			return nil, common.NewInvalidArgumentError("columns", "'%s' is not of the form name:type", pair)
		}
		schema = append(schema, common.Column{Name: strings.TrimSpace(name), Type: common.ColumnType(strings.TrimSpace(columnType))})
	}
	return schema, nil
}

func showMeta(ctx context.Context) error {
	r, err := registry.Open(cli.DatabaseDir)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, err := r.ShowMeta(ctx)
	if err != nil {
		return err
	}
	return printJson(entries)
}

func runQuery(ctx context.Context, command string) error {
	engine, err := query.NewEngine(cli.DatabaseDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	var result *query.Result
	var output string
	q := &cli.Query

	switch command {
	case "query radius <dataset>":
		result, err = engine.ByPointRadius(ctx, q.Radius.Dataset, q.Radius.Latitude, q.Radius.Longitude, q.Radius.Radius, q.Radius.Resolution, q.Radius.filter())
		output = q.Radius.Output
	case "query point <dataset>":
		result, err = engine.ByPoint(ctx, q.Point.Dataset, q.Point.Latitude, q.Point.Longitude, q.Point.Resolution, q.Point.filter())
		output = q.Point.Output
	case "query cellradius <dataset>":
		result, err = engine.ByCellRadius(ctx, q.Cellradius.Dataset, q.Cellradius.Cell, q.Cellradius.Radius, q.Cellradius.filter())
		output = q.Cellradius.Output
	case "query cell <dataset>":
		result, err = engine.ByCell(ctx, q.Cell.Dataset, q.Cell.Cell, q.Cell.filter())
		output = q.Cell.Output
	case "query region <dataset>":
		result, err = engine.ByShapefile(ctx, q.Region.Dataset, q.Region.Shapefile, q.Region.NameField, q.Region.Region, q.Region.Resolution, q.Region.filter())
		output = q.Region.Output
	case "query bbox <dataset>":
		result, err = engine.ByBoundingBox(ctx, q.Bbox.Dataset, q.Bbox.MinLat, q.Bbox.MinLon, q.Bbox.MaxLat, q.Bbox.MaxLon, q.Bbox.Resolution, q.Bbox.filter())
		output = q.Bbox.Output
	case "query filter <request>":
		return filterAssets(ctx, engine, q.Filter.Request)
	default:
		return errors.Errorf("Unknown query command '%s'", command)
	}
	if err != nil {
		return err
	}

	sigolo.Infof("Found %d results", result.Len())
	if output != "" {
		return ownIo.WriteResultAsGeoJsonFile(result, output)
	}
	return printJson(result)
}

func filterAssets(ctx context.Context, engine *query.Engine, requestFile string) error {
	content, err := os.ReadFile(requestFile)
	if err != nil {
		return errors.Wrapf(err, "Unable to read filter request %s", requestFile)
	}

	var request struct {
		Assets   []query.Asset         `json:"assets"`
		Datasets []query.DatasetFilter `json:"datasets"`
	}
	if err = json.Unmarshal(content, &request); err != nil {
		return errors.Wrapf(err, "Unable to parse filter request %s", requestFile)
	}

	assets, err := engine.FilterAssets(ctx, request.Assets, request.Datasets)
	if err != nil {
		return err
	}
	return printJson(assets)
}

func printJson(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(value), "Unable to print result")
}
