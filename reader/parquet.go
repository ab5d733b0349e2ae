package reader

import (
	"fmt"
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

const parquetBatchSize = 1024

// ParquetReader reads flat parquet files. The file must contain the columns "latitude" and "longitude" and all data
// columns, all other columns except key and time columns are ignored.
type ParquetReader struct {
	config Config
}

func NewParquetReader(config Config) (*ParquetReader, error) {
	if err := config.validateFile(); err != nil {
		return nil, err
	}
	return &ParquetReader{config: config}, nil
}

func (r *ParquetReader) Name() string {
	return "ParquetReader"
}

type parquetColumnRole struct {
	name      string
	isData    bool
	isKey     bool
	timeField string
}

func (r *ParquetReader) Read() ([]common.RawRecord, error) {
	startTime := time.Now()
	sigolo.Debugf("Read parquet file %s", r.config.FilePath)

	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open parquet file %s", r.config.FilePath)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to stat parquet file %s", r.config.FilePath)
	}

	parquetFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open parquet file %s", r.config.FilePath)
	}

	roles, err := r.columnRoles(parquetFile.Schema())
	if err != nil {
		return nil, err
	}

	parquetReader := parquet.NewReader(parquetFile)
	defer parquetReader.Close()

	var records []common.RawRecord
	rows := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := parquetReader.ReadRows(rows)
		for _, row := range rows[:n] {
			record, convertErr := toRecord(row, roles)
			if convertErr != nil {
				return nil, errors.Wrapf(convertErr, "Unable to convert row %d of %s", len(records)+1, r.config.FilePath)
			}
			records = append(records, record)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to read rows from %s", r.config.FilePath)
		}
		if n == 0 {
			break
		}
	}

	sigolo.Debugf("Read %d records from %s in %s", len(records), r.config.FilePath, time.Since(startTime))
	return records, nil
}

// columnRoles maps each leaf column index of the schema to the role the column plays in a raw record.
func (r *ParquetReader) columnRoles(schema *parquet.Schema) (map[int]parquetColumnRole, error) {
	indices := map[string]int{}
	for i, path := range schema.Columns() {
		indices[strings.Join(path, ".")] = i
	}

	var existing []string
	for name := range indices {
		existing = append(existing, name)
	}

	roles := map[int]parquetColumnRole{}
	lookup := func(name string, field string) (int, error) {
		i, ok := indices[name]
		if !ok {
			return -1, common.NewConfigurationError(field, "column '%s' does not exist in %s, columns are %v", name, r.config.FilePath, existing)
		}
		return i, nil
	}

	for _, name := range []string{common.LatitudeCol, common.LongitudeCol} {
		i, err := lookup(name, "file_path")
		if err != nil {
			return nil, err
		}
		roles[i] = parquetColumnRole{name: name}
	}
	for _, name := range r.config.DataColumns {
		i, err := lookup(name, "data_columns")
		if err != nil {
			return nil, err
		}
		role := roles[i]
		role.name = name
		role.isData = true
		roles[i] = role
	}
	for _, name := range r.config.KeyColumns {
		i, err := lookup(name, "key_columns")
		if err != nil {
			return nil, err
		}
		role := roles[i]
		role.name = name
		role.isKey = true
		roles[i] = role
	}
	for field, name := range r.config.timeColumns() {
		i, err := lookup(name, field+"_column")
		if err != nil {
			return nil, err
		}
		role := roles[i]
		role.name = name
		role.timeField = field
		roles[i] = role
	}

	return roles, nil
}

func toRecord(row parquet.Row, roles map[int]parquetColumnRole) (common.RawRecord, error) {
	record := common.RawRecord{
		Values: map[string]float64{},
		Keys:   map[string]string{},
	}

	for _, value := range row {
		role, ok := roles[value.Column()]
		if !ok {
			continue
		}

		if role.isKey {
			record.Keys[role.name] = valueToString(value)
		}

		needsNumber := role.isData || role.timeField != "" || role.name == common.LatitudeCol || role.name == common.LongitudeCol
		if !needsNumber {
			continue
		}

		number, err := valueToFloat(value)
		if err != nil {
			return record, errors.Wrapf(err, "Unable to read column %s", role.name)
		}

		switch role.name {
		case common.LatitudeCol:
			record.Latitude = number
		case common.LongitudeCol:
			record.Longitude = number
		}
		if role.isData && !math.IsNaN(number) {
			record.Values[role.name] = number
		}
		if role.timeField != "" {
			component := int(math.Round(number))
			switch role.timeField {
			case common.YearCol:
				record.Year = &component
			case common.MonthCol:
				record.Month = &component
			case common.DayCol:
				record.Day = &component
			}
		}
	}

	return record, nil
}

// valueToFloat converts numeric parquet values. Nulls become NaN and are treated as missing data.
func valueToFloat(value parquet.Value) (float64, error) {
	if value.IsNull() {
		return math.NaN(), nil
	}

	switch value.Kind() {
	case parquet.Boolean:
		if value.Boolean() {
			return 1, nil
		}
		return 0, nil
	case parquet.Int32:
		return float64(value.Int32()), nil
	case parquet.Int64:
		return float64(value.Int64()), nil
	case parquet.Float:
		return float64(value.Float()), nil
	case parquet.Double:
		return value.Double(), nil
	}

	return 0, errors.Errorf("Value of kind %s is not numeric", value.Kind())
}

func valueToString(value parquet.Value) string {
	if value.IsNull() {
		return ""
	}

	switch value.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	case parquet.Int32:
		return fmt.Sprintf("%d", value.Int32())
	case parquet.Int64:
		return fmt.Sprintf("%d", value.Int64())
	}

	return value.String()
}
