package internal

import (
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Pipeline step names, in default execution order.
const (
	StepCheck       = "check"
	StepFilenames   = "filenames"
	StepFrontmatter = "frontmatter"
	StepMDLinks     = "mdlinks"
	StepWebLinks    = "weblinks"
	StepIndent      = "indent"
	StepUID         = "uid"
	StepAlias       = "alias"
)

// AllSteps lists every step in the order a full run executes them.
var AllSteps = []string{
	StepCheck, StepFilenames, StepFrontmatter, StepMDLinks,
	StepWebLinks, StepIndent, StepUID, StepAlias,
}

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	Truncation TruncationConfig  `yaml:"truncation"`
	Links      LinksConfig       `yaml:"links"`
	Indent     IndentConfig      `yaml:"indent"`
	Journal    JournalConfig     `yaml:"journal"`
	Pipeline   PipelineConfig    `yaml:"pipeline"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.Truncation, &c.Links, &c.Indent, &c.Pipeline,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	LogDir   string     `yaml:"log_dir"`
	Verbose  bool       `yaml:"verbose"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogDir, validation.Required),
	)
}

// ReportPath returns where the report file of a step is written.
func (c *ApplicationConfig) ReportPath(file string) string {
	return filepath.Join(c.LogDir, file)
}

// RenameMapPath returns the JSON file recording filename repairs.
func (c *ApplicationConfig) RenameMapPath() string {
	return filepath.Join(c.LogDir, "rename_map.json")
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TruncationConfig controls truncated-title detection and the map file.
type TruncationConfig struct {
	MapPath        string `yaml:"map_path"`
	ThresholdBytes int    `yaml:"threshold_bytes"`
}

// Validate validates the truncation configuration.
func (c *TruncationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MapPath, validation.Required),
		validation.Field(&c.ThresholdBytes, validation.Required, validation.Min(1), validation.Max(255)),
	)
}

// LinksConfig controls the identifier link rewrite.
type LinksConfig struct {
	MarkSymbol string `yaml:"mark_symbol"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MarkSymbol, validation.Required),
	)
}

// IndentConfig controls indentation normalization.
type IndentConfig struct {
	TabSize         int `yaml:"tab_size"`
	IndentUnit      int `yaml:"indent_unit"`
	SpacesPerIndent int `yaml:"spaces_per_indent"`
}

// Validate validates the indent configuration.
func (c *IndentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TabSize, validation.Required, validation.Min(1), validation.Max(16)),
		validation.Field(&c.IndentUnit, validation.Required, validation.Min(1), validation.Max(16)),
		validation.Field(&c.SpacesPerIndent, validation.Required, validation.Min(1), validation.Max(16)),
	)
}

// JournalConfig holds the optional SQLite run journal. An empty path
// disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs are journaled.
func (c *JournalConfig) Enabled() bool {
	return c.Path != ""
}

// PipelineConfig selects the steps of a full run.
type PipelineConfig struct {
	Steps []string `yaml:"steps"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	known := make([]interface{}, len(AllSteps))
	for i, s := range AllSteps {
		known[i] = s
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Steps, validation.Each(validation.In(known...))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogDir:   "./log",
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Truncation: TruncationConfig{
			MapPath:        "./log/truncation_map.json",
			ThresholdBytes: 70,
		},
		Links: LinksConfig{
			MarkSymbol: "@",
		},
		Indent: IndentConfig{
			TabSize:         3,
			IndentUnit:      3,
			SpacesPerIndent: 4,
		},
		Pipeline: PipelineConfig{
			Steps: append([]string(nil), AllSteps...),
		},
	}
}
