package etl

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/isolated-regex/internal/rule"
)

// RuleRecord is one row of a CSV or Parquet rule table. Scope is a
// comma-separated role list.
type RuleRecord struct {
	Avatar      string `parquet:"avatar" json:"avatar"`
	Enabled     bool   `parquet:"enabled" json:"enabled"`
	Pattern     string `parquet:"pattern" json:"pattern"`
	Replacement string `parquet:"replacement" json:"replacement"`
	Flags       string `parquet:"flags" json:"flags"`
	Scope       string `parquet:"scope" json:"scope"`
}

// jsonRecord is one line of a JSON-lines rule file
type jsonRecord struct {
	Avatar string `json:"avatar"`
	rule.Rule
}

// csvColumns is the header written on export, in order
var csvColumns = []string{"avatar", "enabled", "pattern", "replacement", "flags", "scope"}

// Entry is a parsed row waiting to be merged into the store
type Entry struct {
	Row    int64
	Avatar string
	Patch  rule.Patch
}

// ProcessingResult represents the result of processing a rule file
type ProcessingResult struct {
	TotalRecords    int64             `json:"total_records"`
	ProcessedOK     int64             `json:"processed_ok"`
	ProcessedFailed int64             `json:"processed_failed"`
	Duration        time.Duration     `json:"duration"`
	Errors          []ValidationError `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
	DryRun         bool `yaml:"dry_run" mapstructure:"dry_run"`
	MaxErrors      int  `yaml:"max_errors" mapstructure:"max_errors"` // errors kept in the result
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:      500,
		ProgressReport: 1000,
		MaxErrors:      100,
	}
}

// ValidationError represents a row that could not be imported
type ValidationError struct {
	Row     int64  `json:"row"`
	Avatar  string `json:"avatar,omitempty"`
	Message string `json:"message"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension. ok is false for
// unknown extensions.
func DetectFileFormat(filename string) (FileFormat, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, true
	case ".parquet":
		return FormatParquet, true
	case ".jsonl", ".ndjson", ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}
