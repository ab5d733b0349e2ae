package reader

import (
	"geomesh/common"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"sort"
	"strings"
)

// Reader turns one input file into raw records. Readers are external adapters, they do not know anything about the
// grid or datasets.
type Reader interface {
	Read() ([]common.RawRecord, error)
	Name() string
}

// ColumnSpec describes a column of a headerless tabular input. Types are "float", "int" and "str".
type ColumnSpec struct {
	Name string
	Type string
}

// Columns keeps the order of the YAML mapping, which is the order of the columns in the file.
type Columns []ColumnSpec

func (c *Columns) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.Errorf("Unable to parse columns in line %d: expected a mapping of column names to types", value.Line)
	}

	var columns Columns
	for i := 0; i+1 < len(value.Content); i += 2 {
		columns = append(columns, ColumnSpec{
			Name: value.Content[i].Value,
			Type: value.Content[i+1].Value,
		})
	}

	*c = columns
	return nil
}

func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

const (
	TypeFloat  = "float"
	TypeInt    = "int"
	TypeString = "str"
)

var supportedColumnTypes = []string{TypeFloat, TypeInt, TypeString}

// StorageType maps the reader level types onto the column types of stored datasets.
func StorageType(readerType string) (common.ColumnType, error) {
	switch readerType {
	case TypeFloat:
		return common.TypeDouble, nil
	case TypeInt:
		return common.TypeBigInt, nil
	case TypeString:
		return common.TypeVarchar, nil
	}
	return "", common.NewConfigurationError("columns", "column type '%s' is not supported, supported types are %v", readerType, supportedColumnTypes)
}

// Config contains all parameters of all readers. Which of them are used depends on the reader.
type Config struct {
	FilePath     string
	HasHeaderRow bool
	Columns      Columns
	DataColumns  []string
	KeyColumns   []string
	YearColumn   string
	MonthColumn  string
	DayColumn    string
}

func (c Config) timeColumns() map[string]string {
	result := map[string]string{}
	if c.YearColumn != "" {
		result[common.YearCol] = c.YearColumn
	}
	if c.MonthColumn != "" {
		result[common.MonthCol] = c.MonthColumn
	}
	if c.DayColumn != "" {
		result[common.DayCol] = c.DayColumn
	}
	return result
}

func (c Config) validateFile() error {
	if c.FilePath == "" {
		return common.NewConfigurationError("file_path", "no input file given")
	}

	stat, err := os.Stat(c.FilePath)
	if err != nil {
		return common.NewConfigurationError("file_path", "file %s does not exist", c.FilePath)
	}
	if stat.IsDir() {
		return common.NewConfigurationError("file_path", "file %s is a directory, not a file", c.FilePath)
	}

	if len(c.DataColumns) == 0 {
		return common.NewConfigurationError("data_columns", "at least one data column is required")
	}
	return nil
}

type Factory func(config Config) (Reader, error)

var factories = map[string]Factory{
	"CSVLoader":         func(config Config) (Reader, error) { return NewCSVReader(config) },
	"CSVFileReader":     func(config Config) (Reader, error) { return NewCSVReader(config) },
	"ParquetLoader":     func(config Config) (Reader, error) { return NewParquetReader(config) },
	"ParquetFileReader": func(config Config) (Reader, error) { return NewParquetReader(config) },
}

// New creates the reader registered under the given name.
func New(name string, config Config) (Reader, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, common.NewConfigurationError("loader_type", "unknown reader '%s', valid readers are %s", name, strings.Join(Names(), ", "))
	}
	return factory(config)
}

func Names() []string {
	var names []string
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
