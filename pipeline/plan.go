package pipeline

import (
	"geomesh/aggregation"
	"geomesh/common"
	"geomesh/interpolation"
	"geomesh/postprocess"
	"geomesh/reader"
	"geomesh/region"
	"geomesh/registry"
	"geomesh/storage"
	"github.com/hauke96/sigolo/v2"
	"os"
	"strings"
)

const DefaultMaxParallelism = 4

var outputStepNames = []string{"LocalOutputStep", "LocalDuckdbOutputStep", "loader.output_step.LocalDuckdbOutputStep"}

// Plan is a validated configuration. All steps are instantiated and all referenced files have been checked, so
// running a plan only fails because of the data or the file system.
type Plan struct {
	DatasetName    string
	Description    string
	DatasetType    common.DatasetType
	DatabaseDir    string
	Interval       common.Interval
	MaxResolution  int
	DataColumns    []string
	KeyColumns     []string
	Mode           storage.Mode
	MaxParallelism int

	ReaderName   string
	ReaderConfig reader.Config

	// Region restricts the loaded data. Nil means no restriction.
	Region *region.Region

	Estimator           interpolation.Estimator
	AggregationSteps    []aggregation.Step
	PostprocessingSteps []postprocess.Step

	postprocessingSpecs []StepSpec
}

// Resolve validates the configuration and turns it into a plan. Every problem results in a ConfigurationError.
func Resolve(config *Config) (*Plan, error) {
	var plan *Plan
	var err error
	if config.IsAdvanced() {
		plan, err = resolveAdvanced(config)
	} else {
		plan, err = resolveSimple(config)
	}
	if err != nil {
		return nil, err
	}

	if err = validateCommon(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func resolveSimple(config *Config) (*Plan, error) {
	if config.LoaderType == "" {
		return nil, common.NewConfigurationError("loader_type", "either 'loader_type' or 'reading_step' must be given")
	}

	if config.DatasetType == "" {
		return nil, common.NewConfigurationError("dataset_type", "parameter is mandatory")
	}
	datasetType, err := common.ParseDatasetType(config.DatasetType)
	if err != nil {
		return nil, common.NewConfigurationError("dataset_type", "%s", err.Error())
	}
	if datasetType == common.DatasetTypeH3Index {
		return nil, common.NewConfigurationError("dataset_type", "datasets of type %s are loaded with a 'reading_step' and 'aggregation_steps'", datasetType)
	}

	interval, err := common.ParseInterval(config.Interval)
	if err != nil {
		return nil, common.NewConfigurationError("interval", "%s", err.Error())
	}

	if config.MaxResolution == nil {
		return nil, common.NewConfigurationError("max_resolution", "parameter is mandatory")
	}

	mode, err := storage.ParseMode(config.Mode)
	if err != nil {
		return nil, common.NewConfigurationError("mode", "%s", err.Error())
	}

	plan := &Plan{
		DatasetName:    config.DatasetName,
		Description:    config.Description,
		DatasetType:    datasetType,
		DatabaseDir:    config.DatabaseDir,
		Interval:       interval,
		MaxResolution:  *config.MaxResolution,
		DataColumns:    config.DataColumns,
		KeyColumns:     config.KeyColumns,
		Mode:           mode,
		MaxParallelism: config.MaxParallelism,
		ReaderName:     config.LoaderType,
		ReaderConfig: reader.Config{
			FilePath:     config.FilePath,
			HasHeaderRow: config.HasHeaderRow,
			Columns:      config.Columns,
			DataColumns:  config.DataColumns,
			KeyColumns:   config.KeyColumns,
			YearColumn:   config.YearColumn,
			MonthColumn:  config.MonthColumn,
			DayColumn:    config.DayColumn,
		},
		postprocessingSpecs: config.PostprocessingSteps,
	}

	if config.Shapefile != "" {
		plan.Region, err = loadRegion(config.Shapefile, config.ShapefileNameField, config.Region)
		if err != nil {
			return nil, err
		}
	} else if config.Region != "" {
		return nil, common.NewConfigurationError("region", "region '%s' given but no shapefile to take it from", config.Region)
	}

	if datasetType == common.DatasetTypeH3 {
		if plan.Mode == storage.ModeInsert && interval == common.IntervalOneTime {
			return nil, common.NewConfigurationError("mode", "inserting into a %s dataset without temporal columns is not possible, every insert would duplicate all cells", datasetType)
		}
		plan.Estimator, err = interpolation.NewEstimator(config.Interpolation, config.InterpolationParams)
		if err != nil {
			return nil, err
		}
	}

	if len(config.KeyColumns) > 0 {
		sigolo.Warnf("Key columns %v are ignored for datasets of type %s", config.KeyColumns, datasetType)
		plan.KeyColumns = nil
		plan.ReaderConfig.KeyColumns = nil
	}

	return plan, nil
}

func resolveAdvanced(config *Config) (*Plan, error) {
	params := config.ReadingStepParams
	output := config.OutputStepParams

	if config.OutputStep != "" && !isOutputStep(config.OutputStep) {
		return nil, common.NewConfigurationError("output_step", "unknown output step '%s', valid output steps are %s", config.OutputStep, strings.Join(outputStepNames, ", "))
	}

	datasetType := common.DatasetTypeH3Index
	if output.DatasetType != "" {
		t, err := common.ParseDatasetType(output.DatasetType)
		if err != nil {
			return nil, common.NewConfigurationError("dataset_type", "%s", err.Error())
		}
		if t != common.DatasetTypeH3Index {
			return nil, common.NewConfigurationError("dataset_type", "aggregating pipelines produce datasets of type %s but %s was given", common.DatasetTypeH3Index, t)
		}
		datasetType = t
	}

	if params.YearColumn != "" || params.MonthColumn != "" || params.DayColumn != "" {
		return nil, common.NewConfigurationError("reading_step_params", "datasets of type %s have no temporal columns, use key columns instead", datasetType)
	}

	if len(config.AggregationSteps) == 0 {
		return nil, common.NewConfigurationError("aggregation_steps", "at least one aggregation step is required")
	}
	if config.AggregationResolution == nil {
		return nil, common.NewConfigurationError("aggregation_resolution", "parameter is mandatory when aggregation steps are configured")
	}

	mode, err := storage.ParseMode(output.Mode)
	if err != nil {
		return nil, common.NewConfigurationError("mode", "%s", err.Error())
	}

	plan := &Plan{
		DatasetName:    output.DatasetName,
		Description:    output.Description,
		DatasetType:    datasetType,
		DatabaseDir:    output.DatabaseDir,
		Interval:       common.IntervalOneTime,
		MaxResolution:  *config.AggregationResolution,
		DataColumns:    params.DataColumns,
		KeyColumns:     params.KeyColumns,
		Mode:           mode,
		MaxParallelism: config.MaxParallelism,
		ReaderName:     config.ReadingStep,
		ReaderConfig: reader.Config{
			FilePath:     params.FilePath,
			HasHeaderRow: params.HasHeaderRow,
			Columns:      params.Columns,
			DataColumns:  params.DataColumns,
			KeyColumns:   params.KeyColumns,
		},
		postprocessingSpecs: config.PostprocessingSteps,
	}

	for _, step := range config.AggregationSteps {
		aggregationStep, err := aggregation.NewStep(step.Kind, step.Params)
		if err != nil {
			return nil, err
		}
		plan.AggregationSteps = append(plan.AggregationSteps, aggregationStep)
	}
	if _, err = aggregation.OutputColumns(plan.DataColumns, plan.AggregationSteps); err != nil {
		return nil, err
	}

	for _, step := range config.PreprocessingSteps {
		if !strings.HasSuffix(step.Kind, "ShapefileFilter") {
			return nil, common.NewConfigurationError("preprocessing_steps", "unknown preprocessing step '%s'", step.Kind)
		}
		if plan.Region != nil {
			return nil, common.NewConfigurationError("preprocessing_steps", "only one ShapefileFilter is supported")
		}

		shapefile, _ := step.Params["shapefile_path"].(string)
		regionName, _ := step.Params["region"].(string)
		nameField, _ := step.Params["name_field"].(string)
		if shapefile == "" {
			return nil, common.NewConfigurationError("shapefile_path", "parameter is mandatory for ShapefileFilter")
		}
		plan.Region, err = loadRegion(shapefile, nameField, regionName)
		if err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func validateCommon(plan *Plan) error {
	if plan.DatasetName == "" {
		return common.NewConfigurationError("dataset_name", "parameter is mandatory")
	}
	if err := registry.ValidateDatasetName(plan.DatasetName); err != nil {
		return common.NewConfigurationError("dataset_name", "%s", err.Error())
	}

	if plan.DatabaseDir == "" {
		return common.NewConfigurationError("database_dir", "parameter is mandatory")
	}
	if stat, err := os.Stat(plan.DatabaseDir); err == nil && !stat.IsDir() {
		return common.NewConfigurationError("database_dir", "%s is a file, not a directory", plan.DatabaseDir)
	}

	if plan.MaxResolution < common.MinResolution || plan.MaxResolution > common.MaxResolution {
		return common.NewConfigurationError("max_resolution", "%d must be within [%d, %d]", plan.MaxResolution, common.MinResolution, common.MaxResolution)
	}

	if len(plan.DataColumns) == 0 {
		return common.NewConfigurationError("data_columns", "at least one data column is required")
	}
	for _, column := range append(append([]string{}, plan.DataColumns...), plan.KeyColumns...) {
		if err := common.ValidateColumnName(column); err != nil {
			return common.NewConfigurationError("data_columns", "%s", err.Error())
		}
		if common.IsReservedCol(column) {
			return common.NewConfigurationError("data_columns", "column %s is managed by the system and cannot be loaded as data or key column", column)
		}
	}

	timeColumns := map[string]string{
		common.YearCol:  plan.ReaderConfig.YearColumn,
		common.MonthCol: plan.ReaderConfig.MonthColumn,
		common.DayCol:   plan.ReaderConfig.DayColumn,
	}
	required := map[string]bool{}
	for _, column := range plan.Interval.TimeColumns() {
		required[column] = true
	}
	for _, component := range []string{common.YearCol, common.MonthCol, common.DayCol} {
		given := timeColumns[component] != ""
		if required[component] && !given {
			return common.NewConfigurationError(component+"_column", "interval '%s' requires a %s column", plan.Interval, component)
		}
		if !required[component] && given {
			return common.NewConfigurationError(component+"_column", "interval '%s' has no %s component", plan.Interval, component)
		}
	}

	if plan.MaxParallelism <= 0 {
		plan.MaxParallelism = DefaultMaxParallelism
	}

	plan.PostprocessingSteps = nil
	for _, spec := range plan.postprocessingSpecs {
		step, err := postprocess.New(postprocess.StepConfig{Kind: spec.Kind, Params: spec.Params})
		if err != nil {
			return err
		}
		plan.PostprocessingSteps = append(plan.PostprocessingSteps, step)
	}

	_, err := reader.New(plan.ReaderName, plan.ReaderConfig)
	return err
}

func loadRegion(shapefile string, nameField string, regionName string) (*region.Region, error) {
	if _, err := os.Stat(shapefile); err != nil {
		return nil, common.NewConfigurationError("shapefile", "shapefile %s does not exist", shapefile)
	}
	return region.LoadShapefile(shapefile, nameField, regionName)
}

func isOutputStep(name string) bool {
	for _, n := range outputStepNames {
		if n == name || strings.HasSuffix(name, "."+n) {
			return true
		}
	}
	return false
}
