package config

import (
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get the configured jobs in run order
	GetJobs() ([]JobData, error)

	IsReadOnly() bool
	Close() error
}

// Job types
const (
	JobExtent        = "extent"
	JobSeasonalMean  = "seasonal-mean"
	JobSeriesStats   = "series-stats"
	JobRunningMean   = "running-mean"
	JobRegrid        = "regrid"
	JobCDRAnomaly    = "cdr-anomaly"
	JobPIOMASAnomaly = "piomas-anomaly"
	JobAtlasSubset   = "atlas-subset"
	JobAMSR2Extent   = "amsr2-extent"
)

// JobTypes lists every recognised job type
var JobTypes = []string{
	JobExtent, JobSeasonalMean, JobSeriesStats, JobRunningMean, JobRegrid,
	JobCDRAnomaly, JobPIOMASAnomaly, JobAtlasSubset, JobAMSR2Extent,
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	LogFile  string    `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	CacheDir string    `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	Archive  string    `json:"archive,omitempty" yaml:"archive,omitempty"`
	Jobs     []JobData `json:"jobs" yaml:"jobs"`
}

// JobData holds the options of one job. The common options apply to every
// type; each type reads its own block.
type JobData struct {
	Name           string             `json:"name" yaml:"name"`
	Type           string             `json:"type" yaml:"type"`
	InputPath      string             `json:"input_path,omitempty" yaml:"input_path,omitempty"`
	OutputPath     string             `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	YearRange      timeaxis.YearRange `json:"year_range,omitempty" yaml:"year_range,omitempty"`
	Threshold      float64            `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	LatitudeCutoff *float64           `json:"latitude_cutoff,omitempty" yaml:"latitude_cutoff,omitempty"`
	Profile        string             `json:"profile,omitempty" yaml:"profile,omitempty"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`

	Extent  *ExtentData  `json:"extent,omitempty" yaml:"extent,omitempty"`
	Series  *SeriesData  `json:"series,omitempty" yaml:"series,omitempty"`
	Stats   *StatsData   `json:"stats,omitempty" yaml:"stats,omitempty"`
	Regrid  *RegridData  `json:"regrid,omitempty" yaml:"regrid,omitempty"`
	Anomaly *AnomalyData `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
	Subset  *SubsetData  `json:"subset,omitempty" yaml:"subset,omitempty"`
	AMSR2   *AMSR2Data   `json:"amsr2,omitempty" yaml:"amsr2,omitempty"`
}

// ExtentData configures the extent job
type ExtentData struct {
	Variable    string   `json:"variable,omitempty" yaml:"variable,omitempty"`
	LatVariable string   `json:"lat_variable,omitempty" yaml:"lat_variable,omitempty"`
	LonVariable string   `json:"lon_variable,omitempty" yaml:"lon_variable,omitempty"`
	LonMin      *float64 `json:"lon_min,omitempty" yaml:"lon_min,omitempty"`
	LonMax      *float64 `json:"lon_max,omitempty" yaml:"lon_max,omitempty"`
	// InputScale multiplies concentrations before thresholding, e.g. 100
	// for fractional inputs.
	InputScale float64 `json:"input_scale,omitempty" yaml:"input_scale,omitempty"`
}

// SeriesData configures the seasonal-mean and running-mean jobs
type SeriesData struct {
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Scale  float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Column int      `json:"column,omitempty" yaml:"column,omitempty"`
	Window int      `json:"window,omitempty" yaml:"window,omitempty"`
}

// StatsData configures the series-stats job. The job's input_path series
// covers year_range; ReferencePath, if set, covers ReferenceYears.
type StatsData struct {
	Scale          float64            `json:"scale,omitempty" yaml:"scale,omitempty"`
	ReferencePath  string             `json:"reference_path,omitempty" yaml:"reference_path,omitempty"`
	ReferenceYears timeaxis.YearRange `json:"reference_years,omitempty" yaml:"reference_years,omitempty"`
	ReferenceScale float64            `json:"reference_scale,omitempty" yaml:"reference_scale,omitempty"`
	WindowA        timeaxis.YearRange `json:"window_a,omitempty" yaml:"window_a,omitempty"`
	WindowB        timeaxis.YearRange `json:"window_b,omitempty" yaml:"window_b,omitempty"`
	Baseline       timeaxis.YearRange `json:"baseline,omitempty" yaml:"baseline,omitempty"`
}

// RegridData configures the regrid job
type RegridData struct {
	Inputs      []string `json:"inputs" yaml:"inputs"`
	Variable    string   `json:"variable" yaml:"variable"`
	LatVariable string   `json:"lat_variable,omitempty" yaml:"lat_variable,omitempty"`
	LonVariable string   `json:"lon_variable,omitempty" yaml:"lon_variable,omitempty"`
	InputScale  float64  `json:"input_scale,omitempty" yaml:"input_scale,omitempty"`
	TargetGrid  string   `json:"target_grid" yaml:"target_grid"`
	TargetLat   string   `json:"target_lat,omitempty" yaml:"target_lat,omitempty"`
	TargetLon   string   `json:"target_lon,omitempty" yaml:"target_lon,omitempty"`
	Method      string   `json:"method,omitempty" yaml:"method,omitempty"`
	StoreName   string   `json:"store_name,omitempty" yaml:"store_name,omitempty"`
}

// AnomalyData configures the cdr-anomaly and piomas-anomaly jobs
type AnomalyData struct {
	Variable   string             `json:"variable,omitempty" yaml:"variable,omitempty"`
	Months     []int              `json:"months" yaml:"months"`
	TargetYear int                `json:"target_year" yaml:"target_year"`
	Baseline   timeaxis.YearRange `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	// FillMissing replaces missing anomaly cells when set
	FillMissing *float64 `json:"fill_missing,omitempty" yaml:"fill_missing,omitempty"`
	// MinValue marks source values below it as missing (PIOMAS). It applies
	// before Scale.
	MinValue float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	// Scale multiplies the source values, e.g. 100 for PIOMAS area fractions
	// in percent. Units labels the written layers.
	Scale float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Units string  `json:"units,omitempty" yaml:"units,omitempty"`
}

// SubsetData configures the atlas-subset job
type SubsetData struct {
	Variable    string `json:"variable,omitempty" yaml:"variable,omitempty"`
	LatVariable string `json:"lat_variable,omitempty" yaml:"lat_variable,omitempty"`
	LonVariable string `json:"lon_variable,omitempty" yaml:"lon_variable,omitempty"`
	// Month selects one calendar month (1-12) using the file's CF time
	// axis. Offset and Step are used when it is zero.
	Month        int      `json:"month,omitempty" yaml:"month,omitempty"`
	TimeVariable string   `json:"time_variable,omitempty" yaml:"time_variable,omitempty"`
	Offset       int      `json:"offset,omitempty" yaml:"offset,omitempty"`
	Step         int      `json:"step,omitempty" yaml:"step,omitempty"`
	Append       []string `json:"append,omitempty" yaml:"append,omitempty"`
	// AppendVariable is read from the appended files, which are usually
	// regrid outputs. Defaults to "sic".
	AppendVariable string `json:"append_variable,omitempty" yaml:"append_variable,omitempty"`
	// AppendStored names grid store entries appended after Append.
	AppendStored []string `json:"append_stored,omitempty" yaml:"append_stored,omitempty"`
}

// AMSR2Data configures the amsr2-extent job
type AMSR2Data struct {
	BaseURL     string   `json:"base_url" yaml:"base_url"`
	Start       string   `json:"start" yaml:"start"`
	End         string   `json:"end" yaml:"end"`
	Variable    string   `json:"variable,omitempty" yaml:"variable,omitempty"`
	LatVariable string   `json:"lat_variable,omitempty" yaml:"lat_variable,omitempty"`
	LonVariable string   `json:"lon_variable,omitempty" yaml:"lon_variable,omitempty"`
	LonMin      *float64 `json:"lon_min,omitempty" yaml:"lon_min,omitempty"`
	LonMax      *float64 `json:"lon_max,omitempty" yaml:"lon_max,omitempty"`
	Parallelism int      `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
}
