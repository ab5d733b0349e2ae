package pipeline

import (
	"context"
	"geomesh/aggregation"
	"geomesh/common"
	"geomesh/interpolation"
	"geomesh/postprocess"
	"geomesh/reader"
	"geomesh/registry"
	"geomesh/storage"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"slices"
	"time"
)

// LoadFile reads, validates and runs the pipeline configuration file.
func LoadFile(ctx context.Context, configPath string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	plan, err := Resolve(config)
	if err != nil {
		return err
	}

	return Run(ctx, plan)
}

// Run executes the plan: read, restrict to the region, produce the tables of the dataset type, postprocess, write.
// In create mode, the dataset is registered in the metadata registry afterwards.
func Run(ctx context.Context, plan *Plan) error {
	startTime := time.Now()
	sigolo.Infof("Start loading dataset '%s' of type %s (mode=%s, interval=%s, resolution<=%d)", plan.DatasetName, plan.DatasetType, plan.Mode, plan.Interval, plan.MaxResolution)

	if plan.Mode == storage.ModeCreate && storage.DatasetExists(plan.DatabaseDir, plan.DatasetName) {
		return common.NewDatasetExistsError(plan.DatasetName)
	}

	records, err := read(plan)
	if err != nil {
		return err
	}

	tables, err := buildTables(ctx, plan, records)
	if err != nil {
		return err
	}

	for i := range tables {
		if len(tables[i].Rows) == 0 {
			sigolo.Warnf("Table %s of dataset %s has no rows", tables[i].Name, plan.DatasetName)
		}
		if err = postprocess.Run(plan.PostprocessingSteps, &tables[i]); err != nil {
			return err
		}
	}

	writer := storage.NewWriter(plan.DatabaseDir, plan.DatasetName)
	if err = writer.Write(ctx, tables, plan.Mode); err != nil {
		return err
	}

	if plan.Mode == storage.ModeCreate {
		if err = register(ctx, plan, tables); err != nil {
			// A created store must not remain without metadata entry.
			writer.Remove()
			return err
		}
	}

	sigolo.Infof("Finished loading dataset '%s' in %s", plan.DatasetName, time.Since(startTime))
	return nil
}

func read(plan *Plan) ([]common.RawRecord, error) {
	r, err := reader.New(plan.ReaderName, plan.ReaderConfig)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	records, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read input of dataset %s with %s", plan.DatasetName, r.Name())
	}
	sigolo.Infof("Read %d records with %s in %s", len(records), r.Name(), time.Since(startTime))

	for _, record := range records {
		if err = record.Validate(plan.Interval); err != nil {
			return nil, err
		}
	}

	// Interpolation handles the region itself, since cells near the border may use samples outside of it.
	if plan.Region == nil || plan.DatasetType == common.DatasetTypeH3 {
		return records, nil
	}

	var filtered []common.RawRecord
	for _, record := range records {
		if plan.Region.Contains(record.Latitude, record.Longitude) {
			filtered = append(filtered, record)
		}
	}
	sigolo.Infof("Kept %d of %d records within region '%s'", len(filtered), len(records), plan.Region.Name)
	return filtered, nil
}

func buildTables(ctx context.Context, plan *Plan, records []common.RawRecord) ([]common.Table, error) {
	switch plan.DatasetType {
	case common.DatasetTypeH3:
		return interpolation.Interpolate(ctx, records, interpolation.Config{
			DatasetName:    plan.DatasetName,
			DataColumns:    plan.DataColumns,
			Interval:       plan.Interval,
			MaxResolution:  plan.MaxResolution,
			MaxParallelism: plan.MaxParallelism,
			Region:         plan.Region,
			Estimator:      plan.Estimator,
		})
	case common.DatasetTypePoint:
		table, err := storage.PointTable(plan.DatasetName, records, plan.Interval, plan.DataColumns, plan.MaxResolution)
		if err != nil {
			return nil, err
		}
		return []common.Table{*table}, nil
	case common.DatasetTypeH3Index:
		table, err := aggregation.Aggregate(ctx, records, aggregation.Config{
			TableName:      plan.DatasetName,
			DataColumns:    plan.DataColumns,
			KeyColumns:     plan.KeyColumns,
			Resolution:     plan.MaxResolution,
			Steps:          plan.AggregationSteps,
			MaxParallelism: plan.MaxParallelism,
		})
		if err != nil {
			return nil, err
		}
		return []common.Table{*table}, nil
	}

	return nil, common.NewConfigurationError("dataset_type", "unsupported dataset type '%s'", plan.DatasetType)
}

// register adds the metadata entry of a newly created dataset. The value columns are taken from the written tables,
// so that columns added by postprocessing are queryable as well.
func register(ctx context.Context, plan *Plan, tables []common.Table) error {
	entry := registry.Entry{
		DatasetName:   plan.DatasetName,
		Description:   plan.Description,
		DatasetType:   plan.DatasetType,
		Interval:      plan.Interval,
		MaxResolution: plan.MaxResolution,
	}

	keyColumns := map[string]bool{}
	for _, column := range plan.KeyColumns {
		keyColumns[column] = true
		entry.KeyColumns = append(entry.KeyColumns, common.Column{Name: column, Type: common.TypeVarchar})
	}
	if len(tables) > 0 {
		for _, column := range tables[0].ValueColumns() {
			if !keyColumns[column.Name] {
				entry.ValueColumns = append(entry.ValueColumns, column)
			}
		}
	}

	r, err := registry.Open(plan.DatabaseDir)
	if err != nil {
		return err
	}
	defer r.Close()

	err = r.AddMeta(ctx, entry)
	var duplicateErr *common.DuplicateDatasetError
	if !errors.As(err, &duplicateErr) {
		return err
	}

	existing, err := r.Get(ctx, plan.DatasetName)
	if err != nil {
		return err
	}
	if mismatch := entryMismatch(existing, &entry); mismatch != "" {
		return common.NewConfigurationError("dataset_name", "dataset %s is already registered with a different %s", plan.DatasetName, mismatch)
	}

	sigolo.Warnf("Dataset '%s' has already been registered, keep the existing metadata entry", plan.DatasetName)
	return nil
}

// entryMismatch returns the name of the first property in which both entries differ or "" when they describe the same
// dataset. Descriptions and column types are not compared.
func entryMismatch(existing *registry.Entry, entry *registry.Entry) string {
	switch {
	case existing.DatasetType != entry.DatasetType:
		return "dataset type"
	case existing.Interval != entry.Interval:
		return "interval"
	case existing.MaxResolution != entry.MaxResolution:
		return "max resolution"
	case !slices.Equal(existing.ValueColumns.Names(), entry.ValueColumns.Names()):
		return "value columns"
	case !slices.Equal(existing.KeyColumns.Names(), entry.KeyColumns.Names()):
		return "key columns"
	}
	return ""
}
