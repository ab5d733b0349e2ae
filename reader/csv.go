package reader

import (
	"encoding/csv"
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type CSVReader struct {
	config Config
}

func NewCSVReader(config Config) (*CSVReader, error) {
	if err := config.validateFile(); err != nil {
		return nil, err
	}
	if len(config.Columns) == 0 {
		return nil, common.NewConfigurationError("columns", "CSV input requires the list of columns")
	}

	types := map[string]string{}
	for _, column := range config.Columns {
		if _, err := StorageType(column.Type); err != nil {
			return nil, err
		}
		types[column.Name] = column.Type
	}

	for _, required := range []string{common.LatitudeCol, common.LongitudeCol} {
		if t, ok := types[required]; !ok || t == TypeString {
			return nil, common.NewConfigurationError("columns", "numeric column '%s' is required", required)
		}
	}
	for _, column := range config.DataColumns {
		t, ok := types[column]
		if !ok {
			return nil, common.NewConfigurationError("data_columns", "column %s in data_columns is not present in columns", column)
		}
		if t == TypeString {
			return nil, common.NewConfigurationError("data_columns", "data column %s must be numeric but has type %s", column, t)
		}
	}
	for _, column := range config.KeyColumns {
		if _, ok := types[column]; !ok {
			return nil, common.NewConfigurationError("key_columns", "column %s in key_columns is not present in columns", column)
		}
	}
	for field, column := range config.timeColumns() {
		if t, ok := types[column]; !ok || t == TypeString {
			return nil, common.NewConfigurationError(field+"_column", "numeric column %s is not present in columns", column)
		}
	}

	return &CSVReader{config: config}, nil
}

func (r *CSVReader) Name() string {
	return "CSVReader"
}

func (r *CSVReader) Read() ([]common.RawRecord, error) {
	startTime := time.Now()
	sigolo.Debugf("Read CSV file %s", r.config.FilePath)

	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open CSV file %s", r.config.FilePath)
	}
	defer file.Close()

	csvReader := csv.NewReader(file)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	var records []common.RawRecord
	lineNumber := 0
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to read CSV file %s", r.config.FilePath)
		}
		lineNumber++

		if lineNumber == 1 && r.config.HasHeaderRow {
			continue
		}

		if len(row) != len(r.config.Columns) {
			return nil, errors.Errorf("Configuration expects %d columns, but line %d of %s had %d columns", len(r.config.Columns), lineNumber, r.config.FilePath, len(row))
		}

		record, err := r.toRecord(row)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to parse line %d of %s", lineNumber, r.config.FilePath)
		}
		records = append(records, record)
	}

	sigolo.Debugf("Read %d records from %s in %s", len(records), r.config.FilePath, time.Since(startTime))
	return records, nil
}

func (r *CSVReader) toRecord(row []string) (common.RawRecord, error) {
	record := common.RawRecord{
		Values: map[string]float64{},
		Keys:   map[string]string{},
	}
	timeColumns := r.config.timeColumns()

	for i, column := range r.config.Columns {
		raw := strings.TrimSpace(row[i])

		if slices.Contains(r.config.KeyColumns, column.Name) {
			record.Keys[column.Name] = raw
		}
		if column.Type == TypeString {
			continue
		}

		value, err := parseNumber(raw, column.Type)
		if err != nil {
			return record, errors.Wrapf(err, "Unable to parse column %s", column.Name)
		}

		switch column.Name {
		case common.LatitudeCol:
			record.Latitude = value
		case common.LongitudeCol:
			record.Longitude = value
		}
		if slices.Contains(r.config.DataColumns, column.Name) {
			record.Values[column.Name] = value
		}
		for field, timeColumn := range timeColumns {
			if timeColumn != column.Name {
				continue
			}
			component := int(math.Round(value))
			switch field {
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

func parseNumber(raw string, columnType string) (float64, error) {
	if columnType == TypeInt {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "Unable to parse '%s' as int", raw)
		}
		return float64(value), nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "Unable to parse '%s' as float", raw)
	}
	return value, nil
}
