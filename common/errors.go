package common

import (
	"fmt"
	"runtime"
	"strings"
)

type stack *[]uintptr

// getCurrentStack creates a new stack without the last three frames, because they are from the internal calls (e.g. to
// this function) and therefore irrelevant to the function creating the error.
func getCurrentStack() stack {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	var st = pcs[0:n]
	return &st
}

func getPrintableStackTrace(stack stack) string {
	var sb strings.Builder

	if stack == nil {
		return ""
	}

	for _, pc := range *stack {
		f := runtime.FuncForPC(pc)
		if f == nil {
			continue
		}
		file, line := f.FileLine(pc)
		sb.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", f.Name(), file, line))
	}

	return sb.String()
}

// geomeshError is embedded by all error types of the taxonomy below. It holds the human-readable message and the
// stack of the place the error was created at, so that "%+v" prints something useful.
type geomeshError struct {
	Message string `json:"message"`
	stack   stack
}

func newGeomeshError(format string, args ...interface{}) geomeshError {
	return geomeshError{
		Message: fmt.Sprintf(format, args...),
		stack:   getCurrentStack(),
	}
}

func (e geomeshError) Error() string {
	return e.Message
}

func formatError(s fmt.State, verb rune, e geomeshError) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s\n%s", e.Error(), getPrintableStackTrace(e.stack))
			return
		}
		fmt.Fprintf(s, "%s", e.Error())
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	}
}

// ConfigurationError is returned when a pipeline configuration misses a field or contains a value that is not valid
// for the combination of interval and dataset type.
type ConfigurationError struct {
	geomeshError
	Field string `json:"field"`
}

func NewConfigurationError(field string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		geomeshError: newGeomeshError("Invalid configuration of '%s': %s", field, fmt.Sprintf(format, args...)),
		Field:        field,
	}
}

func (e *ConfigurationError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// DatasetExistsError is returned when a dataset is written in "create" mode but its store already exists.
type DatasetExistsError struct {
	geomeshError
	Dataset string `json:"dataset"`
}

func NewDatasetExistsError(dataset string) *DatasetExistsError {
	return &DatasetExistsError{
		geomeshError: newGeomeshError("Dataset '%s' already exists and cannot be written in 'create' mode", dataset),
		Dataset:      dataset,
	}
}

func (e *DatasetExistsError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// SchemaMismatchError is returned when rows are inserted into an existing store whose columns differ.
type SchemaMismatchError struct {
	geomeshError
	Dataset  string   `json:"dataset"`
	Table    string   `json:"table"`
	Expected []string `json:"expected"`
	Actual   []string `json:"actual"`
}

func NewSchemaMismatchError(dataset string, table string, expected []string, actual []string) *SchemaMismatchError {
	return &SchemaMismatchError{
		geomeshError: newGeomeshError("Schema of table '%s' in dataset '%s' does not match: existing columns %v, incoming columns %v", table, dataset, expected, actual),
		Dataset:      dataset,
		Table:        table,
		Expected:     expected,
		Actual:       actual,
	}
}

func (e *SchemaMismatchError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// UnknownDatasetError is returned when a dataset name is not registered in the metadata registry.
type UnknownDatasetError struct {
	geomeshError
	Dataset string `json:"dataset"`
}

func NewUnknownDatasetError(dataset string) *UnknownDatasetError {
	return &UnknownDatasetError{
		geomeshError: newGeomeshError("Dataset '%s' is not registered in the metadata registry", dataset),
		Dataset:      dataset,
	}
}

func (e *UnknownDatasetError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// DuplicateDatasetError is returned when metadata for an already registered dataset is added again.
type DuplicateDatasetError struct {
	geomeshError
	Dataset string `json:"dataset"`
}

func NewDuplicateDatasetError(dataset string) *DuplicateDatasetError {
	return &DuplicateDatasetError{
		geomeshError: newGeomeshError("Dataset '%s' is already registered in the metadata registry", dataset),
		Dataset:      dataset,
	}
}

func (e *DuplicateDatasetError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// RegionNotFoundError is returned when a named sub-region does not exist in a polygon set.
type RegionNotFoundError struct {
	geomeshError
	Region string `json:"region"`
	Source string `json:"source"`
}

func NewRegionNotFoundError(region string, source string) *RegionNotFoundError {
	return &RegionNotFoundError{
		geomeshError: newGeomeshError("Region '%s' does not exist in '%s'", region, source),
		Region:       region,
		Source:       source,
	}
}

func (e *RegionNotFoundError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// UnsupportedOperationError is returned when an operation is not valid for the type of the dataset.
type UnsupportedOperationError struct {
	geomeshError
	Operation   string      `json:"operation"`
	Dataset     string      `json:"dataset"`
	DatasetType DatasetType `json:"dataset-type"`
}

func NewUnsupportedOperationError(operation string, dataset string, datasetType DatasetType) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		geomeshError: newGeomeshError("Operation '%s' is not supported for dataset '%s' of type '%s'", operation, dataset, datasetType),
		Operation:    operation,
		Dataset:      dataset,
		DatasetType:  datasetType,
	}
}

func (e *UnsupportedOperationError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// MissingTemporalKeyError is returned when the interval of a dataset requires a year, month or day which was not
// given.
type MissingTemporalKeyError struct {
	geomeshError
	Dataset   string   `json:"dataset"`
	Component string   `json:"component"`
	Interval  Interval `json:"interval"`
}

func NewMissingTemporalKeyError(dataset string, component string, interval Interval) *MissingTemporalKeyError {
	return &MissingTemporalKeyError{
		geomeshError: newGeomeshError("No %s was given but dataset '%s' with interval '%s' requires it", component, dataset, interval),
		Dataset:      dataset,
		Component:    component,
		Interval:     interval,
	}
}

func (e *MissingTemporalKeyError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }

// InvalidArgumentError is returned for malformed request parameters like out of range coordinates, resolutions or
// cell IDs.
type InvalidArgumentError struct {
	geomeshError
	Argument string `json:"argument"`
}

func NewInvalidArgumentError(argument string, format string, args ...interface{}) *InvalidArgumentError {
	return &InvalidArgumentError{
		geomeshError: newGeomeshError("Invalid argument '%s': %s", argument, fmt.Sprintf(format, args...)),
		Argument:     argument,
	}
}

func (e *InvalidArgumentError) Format(s fmt.State, verb rune) { formatError(s, verb, e.geomeshError) }
