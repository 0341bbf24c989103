// =============================================================================
// docbatch - Configuration Module
// =============================================================================
//
// This module is responsible for loading the run configuration. Everything
// has a working default so the tool runs in a directory that only contains
// the spreadsheet, the template and the stamp images.
//
// SOURCES (later wins):
//   1. Built-in defaults
//   2. config.yaml (optional)
//   3. .env file in the working directory (optional)
//   4. DOCBATCH_* environment variables
//   5. Command line flags (applied by cmd)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Rotation strategies understood by the generator.
const (
	RotationAvoidRepeat = "avoid-repeat"
	RotationRoundRobin  = "round-robin"
)

// Stamp modes.
const (
	StampModePerCompany = "per-company"
	StampModeGlobal     = "global"
)

// DateLayout is the layout used for issuance date bounds in the config file.
const DateLayout = "2006-01-02"

// Environment variables that override file settings.
const (
	EnvSofficePath  = "DOCBATCH_SOFFICE"
	EnvPdftoppmPath = "DOCBATCH_PDFTOPPM"
	EnvLogLevel     = "DOCBATCH_LOG_LEVEL"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the whole run configuration.
type Config struct {
	// =========================================================================
	// WORKING DIRECTORY & INPUTS
	// =========================================================================

	// WorkDir is the directory the pipeline runs in. Relative paths in this
	// file are resolved against it.
	// Default: "."
	WorkDir string `yaml:"work_dir"`

	// DataFile is the spreadsheet holding the NUMBERS and COMPANY columns.
	// Both .xlsx and .csv are accepted.
	// Default: "data.xlsx"
	DataFile string `yaml:"data_file"`

	// Template is the Word template with {TOKEN} placeholders.
	// Default: "numbers.docx"
	Template string `yaml:"template"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogDir is where process_<timestamp>.log files are written.
	// Default: "logs"
	LogDir string `yaml:"log_dir"`

	// LogLevel controls console verbosity. The log file always gets debug.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogMaxSizeMB is the size at which the log file is rotated.
	// Default: 10
	LogMaxSizeMB int `yaml:"log_max_size_mb"`

	// LogBackups is the number of rotated log files kept.
	// Default: 5
	LogBackups int `yaml:"log_backups"`

	// =========================================================================
	// EXIT POLICY
	// =========================================================================

	// Strict makes any per-file failure produce a non-zero exit code.
	// Default: false
	Strict bool `yaml:"strict"`

	Records   RecordsConfig   `yaml:"records"`
	Generator GeneratorConfig `yaml:"generator"`
	Converter ConverterConfig `yaml:"converter"`
	Raster    RasterConfig    `yaml:"raster"`
	Stamp     StampConfig     `yaml:"stamp"`
}

// =============================================================================
// RECORD SETTINGS
// =============================================================================

// RecordsConfig describes how the spreadsheet is read.
type RecordsConfig struct {
	// NumbersColumn is the header of the phone number column.
	// Default: "NUMBERS"
	NumbersColumn string `yaml:"numbers_column"`

	// CompanyColumn is the header of the company column.
	// Default: "COMPANY"
	CompanyColumn string `yaml:"company_column"`

	// Sheet selects a worksheet by name. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// CSVDelimiter is used when DataFile is a .csv file.
	// Default: ","
	CSVDelimiter string `yaml:"csv_delimiter"`

	// SkipBlankNumbers drops empty NUMBERS cells instead of keeping them as
	// empty entries in a batch.
	// Default: false
	SkipBlankNumbers bool `yaml:"skip_blank_numbers"`

	// TransformationRules are applied to cell values after normalization.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
}

// TransformationRule defines a transformation to apply to a specific column.
type TransformationRule struct {
	// Field is the column header the rule applies to.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the type of transformation to apply.
	// Supported types:
	//   - "trim"                : Remove leading and trailing whitespace
	//   - "uppercase"           : Convert to uppercase
	//   - "lowercase"           : Convert to lowercase
	//   - "prepend_string"      : Add Value to the beginning
	//   - "append_string"       : Add Value to the end
	//   - "pad_zeros_to_length" : Pad with leading zeros to length Value
	//   - "replace"             : Replace Find with Value
	//   - "lookup"              : Replace the value using LookupTable
	Type string `yaml:"type"`

	Value string `yaml:"value"`

	// Find is used by "replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used by "lookup". Values not in the table are kept.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// GENERATOR SETTINGS
// =============================================================================

// GeneratorConfig controls batching, company rotation and naming.
type GeneratorConfig struct {
	// BatchSize is the number of phone numbers per document.
	// Default: 10
	BatchSize int `yaml:"batch_size"`

	// Delimiter joins the numbers of one batch.
	// Default: "、"
	Delimiter string `yaml:"delimiter"`

	// Rotation is the company selection strategy.
	// Valid values: "avoid-repeat", "round-robin"
	// Default: "avoid-repeat"
	Rotation string `yaml:"rotation"`

	// DocumentLabel is the middle part of generated file names.
	// Default: "号码归属证明"
	DocumentLabel string `yaml:"document_label"`

	// IssueDateStart and IssueDateEnd bound the random issuance date.
	// The range is half-open: the end date itself is never drawn.
	// Default: "2021-01-01" .. "2025-03-31"
	IssueDateStart string `yaml:"issue_date_start"`
	IssueDateEnd   string `yaml:"issue_date_end"`

	// RowFields lists extra spreadsheet columns exposed as {FIELD} tokens,
	// taken from the first row of the selected company.
	// Example: ["FAREN", "ZHIWU", "ID", "YEWU", "PHONE", "EMAIL"]
	RowFields []string `yaml:"row_fields"`

	// Seed makes company selection and issuance dates reproducible.
	// Zero means a random seed.
	Seed uint64 `yaml:"seed"`
}

// =============================================================================
// CONVERTER SETTINGS
// =============================================================================

// ConverterConfig controls the Word to PDF stage.
type ConverterConfig struct {
	// SofficePath is the LibreOffice binary.
	// Default: "soffice"
	SofficePath string `yaml:"soffice_path"`

	// MaxAttempts is the number of tries per document.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBackoff is the fixed wait between attempts.
	// Default: 2s
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// Timeout bounds a single conversion.
	// Default: 2m
	Timeout time.Duration `yaml:"timeout"`
}

// =============================================================================
// RASTER SETTINGS
// =============================================================================

// RasterConfig controls the PDF to JPEG stage.
type RasterConfig struct {
	// PdftoppmPath is the poppler renderer binary.
	// Default: "pdftoppm"
	PdftoppmPath string `yaml:"pdftoppm_path"`

	// DPI is the render resolution.
	// Default: 300
	DPI int `yaml:"dpi"`

	// PageSuffix is appended to the stem of multi-page output. It must
	// contain one %d verb for the 1-based page number.
	// Default: "_第%d页"
	PageSuffix string `yaml:"page_suffix"`

	// Quality is the JPEG quality (1-100).
	// Default: 95
	Quality int `yaml:"quality"`

	// Timeout bounds the rendering of a single page.
	// Default: 1m
	Timeout time.Duration `yaml:"timeout"`
}

// =============================================================================
// STAMP SETTINGS
// =============================================================================

// StampConfig controls the stamp overlay stage.
type StampConfig struct {
	// Mode is "per-company" or "global".
	// Default: "per-company"
	Mode string `yaml:"mode"`

	// Dir holds <company>.png images in per-company mode.
	// Default: "stamps"
	Dir string `yaml:"dir"`

	// GlobalFile is the single stamp used in global mode.
	// Default: "yinzhang.png"
	GlobalFile string `yaml:"global_file"`

	// OffsetX and OffsetY place the stamp's top-left corner in pixels.
	// Default: 1773, 1678
	OffsetX int `yaml:"offset_x"`
	OffsetY int `yaml:"offset_y"`

	// Opacity scales the stamp's alpha channel (0 < opacity <= 1).
	// Default: 0.7
	Opacity float64 `yaml:"opacity"`

	// Quality is the JPEG quality of stamped output.
	// Default: 95
	Quality int `yaml:"quality"`

	// OutputDir receives stamped images.
	// Default: "JPGOK"
	OutputDir string `yaml:"output_dir"`

	// OutputSuffix is appended to the stem of stamped images.
	// Default: "_印章"
	OutputSuffix string `yaml:"output_suffix"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. A missing file is not
//     an error; the defaults are returned instead.
//
// RETURNS:
//   - A pointer to the Config struct with defaults applied.
//   - An error if the file exists but cannot be read or parsed.
//
// Validation is left to Validate so that flags and environment overrides
// can be applied first.
func LoadMainConfig(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyMainConfigDefaults(&config)
	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var config Config
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *Config) {
	if config.WorkDir == "" {
		config.WorkDir = "."
	}
	if config.DataFile == "" {
		config.DataFile = "data.xlsx"
	}
	if config.Template == "" {
		config.Template = "numbers.docx"
	}
	if config.LogDir == "" {
		config.LogDir = "logs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogMaxSizeMB == 0 {
		config.LogMaxSizeMB = 10
	}
	if config.LogBackups == 0 {
		config.LogBackups = 5
	}

	r := &config.Records
	if r.NumbersColumn == "" {
		r.NumbersColumn = "NUMBERS"
	}
	if r.CompanyColumn == "" {
		r.CompanyColumn = "COMPANY"
	}
	if r.CSVDelimiter == "" {
		r.CSVDelimiter = ","
	}

	g := &config.Generator
	if g.BatchSize == 0 {
		g.BatchSize = 10
	}
	if g.Delimiter == "" {
		g.Delimiter = "、"
	}
	if g.Rotation == "" {
		g.Rotation = RotationAvoidRepeat
	}
	if g.DocumentLabel == "" {
		g.DocumentLabel = "号码归属证明"
	}
	if g.IssueDateStart == "" {
		g.IssueDateStart = "2021-01-01"
	}
	if g.IssueDateEnd == "" {
		g.IssueDateEnd = "2025-03-31"
	}

	c := &config.Converter
	if c.SofficePath == "" {
		c.SofficePath = "soffice"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}

	ra := &config.Raster
	if ra.PdftoppmPath == "" {
		ra.PdftoppmPath = "pdftoppm"
	}
	if ra.DPI == 0 {
		ra.DPI = 300
	}
	if ra.PageSuffix == "" {
		ra.PageSuffix = "_第%d页"
	}
	if ra.Quality == 0 {
		ra.Quality = 95
	}
	if ra.Timeout == 0 {
		ra.Timeout = time.Minute
	}

	s := &config.Stamp
	if s.Mode == "" {
		s.Mode = StampModePerCompany
	}
	if s.Dir == "" {
		s.Dir = "stamps"
	}
	if s.GlobalFile == "" {
		s.GlobalFile = "yinzhang.png"
	}
	if s.OffsetX == 0 && s.OffsetY == 0 {
		s.OffsetX, s.OffsetY = 1773, 1678
	}
	if s.Opacity == 0 {
		s.Opacity = 0.7
	}
	if s.Quality == 0 {
		s.Quality = 95
	}
	if s.OutputDir == "" {
		s.OutputDir = "JPGOK"
	}
	if s.OutputSuffix == "" {
		s.OutputSuffix = "_印章"
	}
}

// LoadEnv reads <WorkDir>/.env (if present) into the process environment and
// applies the DOCBATCH_* overrides. Variables already set in the environment
// are not replaced by the .env file.
func (c *Config) LoadEnv() error {
	envFile := c.Path(".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if v := os.Getenv(EnvSofficePath); v != "" {
		c.Converter.SofficePath = v
	}
	if v := os.Getenv(EnvPdftoppmPath); v != "" {
		c.Raster.PdftoppmPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	g := c.Generator
	if g.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("generator.batch_size must be at least 1, got %d", g.BatchSize))
	}
	if g.Rotation != RotationAvoidRepeat && g.Rotation != RotationRoundRobin {
		problems = append(problems, fmt.Sprintf("generator.rotation %q is not one of %s, %s", g.Rotation, RotationAvoidRepeat, RotationRoundRobin))
	}
	if start, end, err := c.IssueDateRange(); err != nil {
		problems = append(problems, err.Error())
	} else if !end.After(start) {
		problems = append(problems, fmt.Sprintf("generator.issue_date_end %s must be after issue_date_start %s", g.IssueDateEnd, g.IssueDateStart))
	}

	if c.Converter.MaxAttempts < 1 {
		problems = append(problems, "converter.max_attempts must be at least 1")
	}
	if c.Converter.RetryBackoff < 0 {
		problems = append(problems, "converter.retry_backoff must not be negative")
	}

	if c.Raster.DPI < 1 {
		problems = append(problems, "raster.dpi must be positive")
	}
	if c.Raster.Quality < 1 || c.Raster.Quality > 100 {
		problems = append(problems, "raster.quality must be between 1 and 100")
	}
	if strings.Count(c.Raster.PageSuffix, "%d") != 1 {
		problems = append(problems, fmt.Sprintf("raster.page_suffix %q must contain exactly one %%d", c.Raster.PageSuffix))
	}

	s := c.Stamp
	if s.Mode != StampModePerCompany && s.Mode != StampModeGlobal {
		problems = append(problems, fmt.Sprintf("stamp.mode %q is not one of %s, %s", s.Mode, StampModePerCompany, StampModeGlobal))
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		problems = append(problems, fmt.Sprintf("stamp.opacity must be in (0, 1], got %g", s.Opacity))
	}
	if s.Quality < 1 || s.Quality > 100 {
		problems = append(problems, "stamp.quality must be between 1 and 100")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IssueDateRange parses the issuance date bounds.
func (c *Config) IssueDateRange() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, c.Generator.IssueDateStart, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("generator.issue_date_start: %w", err)
	}
	end, err := time.ParseInLocation(DateLayout, c.Generator.IssueDateEnd, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("generator.issue_date_end: %w", err)
	}
	return start, end, nil
}

// Path resolves p against WorkDir unless it is already absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}
