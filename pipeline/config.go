package pipeline

import (
	"geomesh/interpolation"
	"geomesh/reader"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
)

// Config is the YAML pipeline configuration. It has two forms: the simple form with a "loader_type" loads
// continuous (h3) or point datasets, the advanced form with a "reading_step" builds index (h3_index) datasets through
// aggregation and postprocessing steps.
type Config struct {
	LoaderType          string                        `yaml:"loader_type"`
	DatasetName         string                        `yaml:"dataset_name"`
	DatasetType         string                        `yaml:"dataset_type"`
	Description         string                        `yaml:"description"`
	DatabaseDir         string                        `yaml:"database_dir"`
	Interval            string                        `yaml:"interval"`
	MaxResolution       *int                          `yaml:"max_resolution"`
	DataColumns         []string                      `yaml:"data_columns"`
	KeyColumns          []string                      `yaml:"key_columns"`
	YearColumn          string                        `yaml:"year_column"`
	MonthColumn         string                        `yaml:"month_column"`
	DayColumn           string                        `yaml:"day_column"`
	Shapefile           string                        `yaml:"shapefile"`
	ShapefileNameField  string                        `yaml:"shapefile_name_field"`
	Region              string                        `yaml:"region"`
	Mode                string                        `yaml:"mode"`
	MaxParallelism      int                           `yaml:"max_parallelism"`
	FilePath            string                        `yaml:"file_path"`
	HasHeaderRow        bool                          `yaml:"has_header_row"`
	Columns             reader.Columns                `yaml:"columns"`
	Interpolation       string                        `yaml:"interpolation"`
	InterpolationParams interpolation.EstimatorParams `yaml:"interpolation_params"`
	PostprocessingSteps []StepSpec                    `yaml:"postprocessing_steps"`

	ReadingStep           string           `yaml:"reading_step"`
	ReadingStepParams     ReadingStepParams `yaml:"reading_step_params"`
	PreprocessingSteps    []StepSpec       `yaml:"preprocessing_steps"`
	AggregationSteps      []StepSpec       `yaml:"aggregation_steps"`
	AggregationResolution *int             `yaml:"aggregation_resolution"`
	OutputStep            string           `yaml:"output_step"`
	OutputStepParams      OutputStepParams `yaml:"output_step_params"`
}

func (c *Config) IsAdvanced() bool {
	return c.ReadingStep != ""
}

type ReadingStepParams struct {
	FilePath     string         `yaml:"file_path"`
	HasHeaderRow bool           `yaml:"has_header_row"`
	Columns      reader.Columns `yaml:"columns"`
	DataColumns  []string       `yaml:"data_columns"`
	KeyColumns   []string       `yaml:"key_columns"`
	YearColumn   string         `yaml:"year_column"`
	MonthColumn  string         `yaml:"month_column"`
	DayColumn    string         `yaml:"day_column"`
}

type OutputStepParams struct {
	DatabaseDir string `yaml:"database_dir"`
	DatasetName string `yaml:"dataset_name"`
	Mode        string `yaml:"mode"`
	Description string `yaml:"description"`
	DatasetType string `yaml:"dataset_type"`
}

// StepSpec is one entry of a step list. It is either just the kind of the step ("median") or a mapping with the kind
// in "class_name" (or "kind") and all further parameters of the step.
type StepSpec struct {
	Kind   string
	Params map[string]any
}

func (s *StepSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Kind = value.Value
		s.Params = map[string]any{}
		return nil
	}

	params := map[string]any{}
	if err := value.Decode(&params); err != nil {
		return errors.Wrapf(err, "Unable to parse step in line %d", value.Line)
	}

	for _, key := range []string{"class_name", "kind", "type"} {
		if kind, ok := params[key].(string); ok {
			s.Kind = kind
			delete(params, key)
			break
		}
	}
	if s.Kind == "" {
		return errors.Errorf("Unable to parse step in line %d: no 'class_name' given", value.Line)
	}

	s.Params = params
	return nil
}

// LoadConfig reads the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read pipeline configuration %s", path)
	}
	return ParseConfig(content)
}

func ParseConfig(content []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, errors.Wrap(err, "Unable to parse pipeline configuration")
	}
	return config, nil
}
