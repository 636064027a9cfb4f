package config

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// DateLayout is the layout of date options such as amsr2.start.
const DateLayout = "2006-01-02"

// Validate checks the configuration before any job runs. The first problem
// found is returned as a *seaice.ConfigError.
func (c *ConfigData) Validate() error {
	if len(c.Jobs) == 0 {
		return &seaice.ConfigError{Field: "jobs", Reason: "no jobs configured"}
	}
	seen := make(map[string]bool, len(c.Jobs))
	for i := range c.Jobs {
		j := &c.Jobs[i]
		if j.Name == "" {
			return &seaice.ConfigError{Field: fmt.Sprintf("jobs[%d].name", i), Reason: "required"}
		}
		if seen[j.Name] {
			return &seaice.ConfigError{Field: "jobs." + j.Name, Reason: "duplicate job name"}
		}
		seen[j.Name] = true
		if err := j.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Job returns the job named name.
func (c *ConfigData) Job(name string) (*JobData, error) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], nil
		}
	}
	return nil, &seaice.ConfigError{Field: "job", Reason: fmt.Sprintf("no job named %q", name)}
}

func (j *JobData) fail(field, format string, args ...interface{}) error {
	return &seaice.ConfigError{Field: j.Name + "." + field, Reason: fmt.Sprintf(format, args...)}
}

func (j *JobData) checkYears(field string, r timeaxis.YearRange) error {
	if err := r.Validate(); err != nil {
		return j.fail(field, "%v", err)
	}
	return nil
}

// Validate checks one job's options.
func (j *JobData) Validate() error {
	if !slices.Contains(JobTypes, j.Type) {
		return j.fail("type", "unknown job type %q", j.Type)
	}
	if j.OutputPath == "" {
		return j.fail("output_path", "required")
	}
	if j.Threshold != 0 {
		if err := seaice.ValidateThreshold(j.Threshold); err != nil {
			return err
		}
	}
	if c := j.LatitudeCutoff; c != nil && (math.IsNaN(*c) || *c < -90 || *c > 90) {
		return j.fail("latitude_cutoff", "%v is outside [-90, 90]", *c)
	}
	if j.Profile != "" {
		if _, err := seaice.LookupProfile(j.Profile); err != nil {
			return err
		}
	}

	switch j.Type {
	case JobExtent:
		if j.InputPath == "" {
			return j.fail("input_path", "required")
		}
		return j.checkYears("year_range", j.YearRange)

	case JobSeasonalMean:
		if j.Series == nil || len(j.Series.Inputs) == 0 {
			return j.fail("series.inputs", "at least one input series is required")
		}

	case JobRunningMean:
		if j.InputPath == "" {
			return j.fail("input_path", "required")
		}
		if j.Series == nil || j.Series.Window < 1 {
			return j.fail("series.window", "must be at least 1")
		}

	case JobSeriesStats:
		if j.InputPath == "" {
			return j.fail("input_path", "required")
		}
		if err := j.checkYears("year_range", j.YearRange); err != nil {
			return err
		}
		if j.Stats == nil {
			return j.fail("stats", "required")
		}
		if j.Stats.ReferencePath != "" {
			if err := j.checkYears("stats.reference_years", j.Stats.ReferenceYears); err != nil {
				return err
			}
		}

	case JobRegrid:
		r := j.Regrid
		if r == nil || len(r.Inputs) == 0 {
			return j.fail("regrid.inputs", "at least one input file is required")
		}
		if r.Variable == "" {
			return j.fail("regrid.variable", "required")
		}
		if r.TargetGrid == "" {
			return j.fail("regrid.target_grid", "required")
		}
		if r.Method != "" && r.Method != "linear" && r.Method != "nearest" {
			return j.fail("regrid.method", "unknown method %q", r.Method)
		}

	case JobCDRAnomaly, JobPIOMASAnomaly:
		if j.InputPath == "" {
			return j.fail("input_path", "required")
		}
		if err := j.checkYears("year_range", j.YearRange); err != nil {
			return err
		}
		a := j.Anomaly
		if a == nil || len(a.Months) == 0 {
			return j.fail("anomaly.months", "required")
		}
		for _, m := range a.Months {
			if m < 1 || m > 12 {
				return j.fail("anomaly.months", "month %d out of range", m)
			}
		}
		if !j.YearRange.Contains(a.TargetYear) {
			return j.fail("anomaly.target_year", "%d is outside %s", a.TargetYear, j.YearRange)
		}
		if j.Type == JobPIOMASAnomaly && a.Variable == "" {
			return j.fail("anomaly.variable", "required")
		}

	case JobAtlasSubset:
		if j.InputPath == "" {
			return j.fail("input_path", "required")
		}
		if j.Subset != nil && j.Subset.Step < 0 {
			return j.fail("subset.step", "must not be negative")
		}
		if j.Subset != nil && (j.Subset.Month < 0 || j.Subset.Month > 12) {
			return j.fail("subset.month", "month %d out of range", j.Subset.Month)
		}

	case JobAMSR2Extent:
		a := j.AMSR2
		if a == nil || a.BaseURL == "" {
			return j.fail("amsr2.base_url", "required")
		}
		start, err := time.Parse(DateLayout, a.Start)
		if err != nil {
			return j.fail("amsr2.start", "%v", err)
		}
		end, err := time.Parse(DateLayout, a.End)
		if err != nil {
			return j.fail("amsr2.end", "%v", err)
		}
		if end.Before(start) {
			return j.fail("amsr2.end", "%s is before %s", a.End, a.Start)
		}
	}
	return nil
}
