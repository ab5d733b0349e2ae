package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
	"os"
	"path/filepath"
	"strings"
)

const (
	MetadataDatasetName = "dataset_metadata"
	metadataTableName   = "dataset_metadata"
)

// Entry describes one dataset. Queries only work on registered datasets.
type Entry struct {
	DatasetName   string             `json:"dataset_name"`
	Description   string             `json:"description"`
	KeyColumns    common.Schema      `json:"key_columns"`
	ValueColumns  common.Schema      `json:"value_columns"`
	DatasetType   common.DatasetType `json:"dataset_type"`
	Interval      common.Interval    `json:"interval"`
	MaxResolution int                `json:"max_resolution"`
}

// Normalize validates the entry and converts all column types into their canonical form.
func (e *Entry) Normalize() error {
	if err := ValidateDatasetName(e.DatasetName); err != nil {
		return err
	}

	var columnErrors []string
	normalize := func(columns common.Schema) common.Schema {
		var result common.Schema
		for _, column := range columns {
			if err := common.ValidateColumnName(column.Name); err != nil {
				columnErrors = append(columnErrors, err.Error())
				continue
			}
			t, err := common.ParseColumnType(string(column.Type))
			if err != nil {
				columnErrors = append(columnErrors, "column "+column.Name+": "+err.Error())
				continue
			}
			result = append(result, common.Column{Name: column.Name, Type: t})
		}
		return result
	}

	e.ValueColumns = normalize(e.ValueColumns)
	e.KeyColumns = normalize(e.KeyColumns)
	if len(columnErrors) > 0 {
		return common.NewInvalidArgumentError("columns", "one or more columns are invalid: %s", strings.Join(columnErrors, "; "))
	}

	datasetType, err := common.ParseDatasetType(string(e.DatasetType))
	if err != nil {
		return err
	}
	e.DatasetType = datasetType

	interval, err := common.ParseInterval(string(e.Interval))
	if err != nil {
		return err
	}
	e.Interval = interval

	if e.MaxResolution < common.MinResolution || e.MaxResolution > common.MaxResolution {
		return common.NewInvalidArgumentError("max_resolution", "%d must be within [%d, %d]", e.MaxResolution, common.MinResolution, common.MaxResolution)
	}

	return nil
}

// ValidateDatasetName makes sure the name can be used as file and table name and is not reserved.
func ValidateDatasetName(name string) error {
	if name == "" {
		return common.NewInvalidArgumentError("dataset_name", "dataset name must not be empty")
	}
	if name == MetadataDatasetName {
		return common.NewInvalidArgumentError("dataset_name", "name %s is reserved and cannot be used as a dataset name", MetadataDatasetName)
	}
	if err := common.ValidateColumnName(name); err != nil {
		return common.NewInvalidArgumentError("dataset_name", "dataset names must contain only '_' and alphanumeric characters but was '%s'", name)
	}
	return nil
}

// Registry stores the metadata entries in the file "dataset_metadata.sqlite" of the database directory.
type Registry struct {
	db   *sql.DB
	path string
}

func Open(databaseDir string) (*Registry, error) {
	if _, err := os.Stat(databaseDir); os.IsNotExist(err) {
		sigolo.Infof("Database directory %s does not exist, create it now", databaseDir)
		if err := os.MkdirAll(databaseDir, os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "Unable to create database directory %s", databaseDir)
		}
	}

	path := filepath.Join(databaseDir, MetadataDatasetName+".sqlite")
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open metadata store %s", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + metadataTableName + ` (
			dataset_name    VARCHAR PRIMARY KEY,
			description     VARCHAR,
			key_columns     VARCHAR,
			value_columns   VARCHAR,
			dataset_type    VARCHAR,
			interval        VARCHAR,
			max_resolution  INTEGER
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Unable to create metadata table in %s", path)
	}

	return &Registry{db: db, path: path}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// AddMeta registers the dataset. An already registered name results in a DuplicateDatasetError.
func (r *Registry) AddMeta(ctx context.Context, entry Entry) error {
	if err := entry.Normalize(); err != nil {
		return err
	}

	keyColumns, err := json.Marshal(columnsOrEmpty(entry.KeyColumns))
	if err != nil {
		return errors.Wrapf(err, "Unable to encode key columns of dataset %s", entry.DatasetName)
	}
	valueColumns, err := json.Marshal(columnsOrEmpty(entry.ValueColumns))
	if err != nil {
		return errors.Wrapf(err, "Unable to encode value columns of dataset %s", entry.DatasetName)
	}

	exists, err := r.Exists(ctx, entry.DatasetName)
	if err != nil {
		return err
	}
	if exists {
		return common.NewDuplicateDatasetError(entry.DatasetName)
	}

	_, err = r.db.ExecContext(ctx, "INSERT INTO "+metadataTableName+" VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.DatasetName, entry.Description, string(keyColumns), string(valueColumns), string(entry.DatasetType), string(entry.Interval), entry.MaxResolution)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.NewDuplicateDatasetError(entry.DatasetName)
		}
		return errors.Wrapf(err, "Unable to add metadata entry for dataset %s", entry.DatasetName)
	}

	sigolo.Infof("Added metadata entry for dataset '%s' of type '%s'", entry.DatasetName, entry.DatasetType)
	return nil
}

// ShowMeta returns all entries ordered by dataset name.
func (r *Registry) ShowMeta(ctx context.Context) ([]Entry, error) {
	return r.selectEntries(ctx, "", nil)
}

// Get returns the entry of the dataset or an UnknownDatasetError.
func (r *Registry) Get(ctx context.Context, datasetName string) (*Entry, error) {
	entries, err := r.selectEntries(ctx, " WHERE dataset_name = ?", []any{datasetName})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, common.NewUnknownDatasetError(datasetName)
	}
	return &entries[0], nil
}

func (r *Registry) Exists(ctx context.Context, datasetName string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+metadataTableName+" WHERE dataset_name = ?", datasetName).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, "Unable to check whether dataset %s exists", datasetName)
	}
	return count > 0, nil
}

func (r *Registry) selectEntries(ctx context.Context, where string, args []any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT dataset_name, description, key_columns, value_columns, dataset_type, interval, max_resolution FROM "+metadataTableName+where+" ORDER BY dataset_name", args...)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read metadata from %s", r.path)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var keyColumns, valueColumns, datasetType, interval string
		err = rows.Scan(&entry.DatasetName, &entry.Description, &keyColumns, &valueColumns, &datasetType, &interval, &entry.MaxResolution)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to read metadata entry from %s", r.path)
		}

		if err = json.Unmarshal([]byte(keyColumns), &entry.KeyColumns); err != nil {
			return nil, errors.Wrapf(err, "Unable to decode key columns of dataset %s", entry.DatasetName)
		}
		if err = json.Unmarshal([]byte(valueColumns), &entry.ValueColumns); err != nil {
			return nil, errors.Wrapf(err, "Unable to decode value columns of dataset %s", entry.DatasetName)
		}
		entry.DatasetType = common.DatasetType(datasetType)
		entry.Interval = common.Interval(interval)

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func columnsOrEmpty(columns common.Schema) common.Schema {
	if columns == nil {
		return common.Schema{}
	}
	return columns
}
