package reader

import (
	"geomesh/common"
	"geomesh/util"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0644)
	util.AssertNil(t, err)
	return path
}

func csvColumns() Columns {
	return Columns{
		{Name: "latitude", Type: TypeFloat},
		{Name: "longitude", Type: TypeFloat},
		{Name: "year", Type: TypeInt},
		{Name: "region", Type: TypeString},
		{Name: "temperature", Type: TypeFloat},
	}
}

func TestColumns_keepsOrder(t *testing.T) {
	// Arrange
	var config struct {
		Columns Columns `yaml:"columns"`
	}

	// Act
	err := yaml.Unmarshal([]byte("columns:\n  longitude: float\n  latitude: float\n  value: int\n"), &config)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, []string{"longitude", "latitude", "value"}, config.Columns.Names())
	util.AssertEqual(t, TypeInt, config.Columns[2].Type)
}

func TestCSVReader_Read(t *testing.T) {
	// Arrange
	path := writeFile(t, "input.csv", "latitude,longitude,year,region,temperature\n45.5,-73.5,2020,north,12.5\n46,-74,2021,south,-3\n")
	reader, err := New("CSVLoader", Config{
		FilePath:     path,
		HasHeaderRow: true,
		Columns:      csvColumns(),
		DataColumns:  []string{"temperature"},
		KeyColumns:   []string{"region"},
		YearColumn:   "year",
	})
	util.AssertNil(t, err)

	// Act
	records, err := reader.Read()

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(records))
	util.AssertEqual(t, 45.5, records[0].Latitude)
	util.AssertEqual(t, -73.5, records[0].Longitude)
	util.AssertEqual(t, 2020, *records[0].Year)
	util.AssertNil(t, records[0].Month)
	util.AssertEqual(t, 12.5, records[0].Values["temperature"])
	util.AssertEqual(t, "north", records[0].Keys["region"])
	util.AssertEqual(t, -3.0, records[1].Values["temperature"])
}

func TestCSVReader_wrongColumnCount(t *testing.T) {
	// Arrange
	path := writeFile(t, "input.csv", "45.5,-73.5,2020,north,12.5\n46,-74,2021,south\n")
	reader, err := NewCSVReader(Config{
		FilePath:    path,
		Columns:     csvColumns(),
		DataColumns: []string{"temperature"},
	})
	util.AssertNil(t, err)

	// Act
	_, err = reader.Read()

	// Assert
	util.AssertNotNil(t, err)
	util.AssertTrue(t, strings.Contains(err.Error(), "line 2"))
}

func TestCSVReader_invalidConfig(t *testing.T) {
	// Arrange
	path := writeFile(t, "input.csv", "")

	// Act
	_, errUnknownData := NewCSVReader(Config{FilePath: path, Columns: csvColumns(), DataColumns: []string{"humidity"}})
	_, errStringData := NewCSVReader(Config{FilePath: path, Columns: csvColumns(), DataColumns: []string{"region"}})
	_, errType := NewCSVReader(Config{FilePath: path, Columns: Columns{{Name: "latitude", Type: "double"}}, DataColumns: []string{"latitude"}})
	_, errMissingFile := NewCSVReader(Config{FilePath: path + ".missing", Columns: csvColumns(), DataColumns: []string{"temperature"}})
	_, errUnknownReader := New("GeoTiffReader", Config{})

	// Assert
	util.AssertErrorType[*common.ConfigurationError](t, errUnknownData)
	util.AssertErrorType[*common.ConfigurationError](t, errStringData)
	util.AssertErrorType[*common.ConfigurationError](t, errType)
	util.AssertErrorType[*common.ConfigurationError](t, errMissingFile)
	util.AssertErrorType[*common.ConfigurationError](t, errUnknownReader)
}

type parquetSample struct {
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`
	Scenario  string  `parquet:"scenario"`
	Depth     float32 `parquet:"depth"`
	Count     int64   `parquet:"count"`
	Ignored   float64 `parquet:"ignored"`
}

func TestParquetReader_Read(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "input.parquet")
	err := parquet.WriteFile(path, []parquetSample{
		{Latitude: 10, Longitude: 20, Scenario: "rcp45", Depth: 1.5, Count: 3, Ignored: 99},
		{Latitude: 11, Longitude: 21, Scenario: "rcp85", Depth: 2.5, Count: 4, Ignored: 99},
	})
	util.AssertNil(t, err)

	reader, err := New("ParquetFileReader", Config{
		FilePath:    path,
		DataColumns: []string{"depth", "count"},
		KeyColumns:  []string{"scenario"},
	})
	util.AssertNil(t, err)

	// Act
	records, err := reader.Read()

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(records))
	util.AssertEqual(t, 10.0, records[0].Latitude)
	util.AssertEqual(t, 20.0, records[0].Longitude)
	util.AssertEqual(t, 1.5, records[0].Values["depth"])
	util.AssertEqual(t, 3.0, records[0].Values["count"])
	util.AssertEqual(t, 2, len(records[0].Values))
	util.AssertEqual(t, "rcp85", records[1].Keys["scenario"])
}

func TestParquetReader_missingColumn(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "input.parquet")
	err := parquet.WriteFile(path, []parquetSample{{Latitude: 10, Longitude: 20}})
	util.AssertNil(t, err)

	reader, err := NewParquetReader(Config{FilePath: path, DataColumns: []string{"humidity"}})
	util.AssertNil(t, err)

	// Act
	_, err = reader.Read()

	// Assert
	util.AssertErrorType[*common.ConfigurationError](t, err)
}
