package etl

import (
	"time"
)

// Record is a single utterance from a flat conversational dataset.
type Record struct {
	SessionID string `csv:"session_id" parquet:"session_id" json:"session_id"`
	Speaker   string `csv:"speaker" parquet:"speaker" json:"speaker"`
	Text      string `csv:"text" parquet:"text" json:"text"`
}

// MaskedRecord is the masked form of a Record plus its counters.
type MaskedRecord struct {
	SessionID string `csv:"session_id" parquet:"session_id" json:"session_id"`
	Speaker   string `csv:"speaker" parquet:"speaker" json:"speaker"`
	Text      string `csv:"text" parquet:"text" json:"text"`
	Words     int64  `csv:"words" parquet:"words" json:"words"`
	Masked    int64  `csv:"masked" parquet:"masked" json:"masked"`
}

// Result summarizes one dataset run.
type Result struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	Words           int64         `json:"words"`
	Masked          int64         `json:"masked"`
	Duration        time.Duration `json:"duration"`
	MaskTime        time.Duration `json:"mask_time"`
	WriteTime       time.Duration `json:"write_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains dataset pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	WorkerCount    int  `yaml:"worker_count" mapstructure:"worker_count"`       // 4
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`     // true
	MaxTextLength  int  `yaml:"max_text_length" mapstructure:"max_text_length"` // 10000
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"` // 1000
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      1000,
		WorkerCount:    4,
		ValidateData:   true,
		MaxTextLength:  10000,
		ProgressReport: 1000,
	}
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case len(filename) >= 4 && filename[len(filename)-4:] == ".csv":
		return FormatCSV
	case len(filename) >= 8 && filename[len(filename)-8:] == ".parquet":
		return FormatParquet
	case len(filename) >= 6 && filename[len(filename)-6:] == ".jsonl":
		return FormatJSON
	case len(filename) >= 5 && filename[len(filename)-5:] == ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}
