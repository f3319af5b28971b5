// Package config provides configuration loading and management for the
// kuwahara command. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"kuwahara/pkg/colorspace"
	"kuwahara/pkg/convolve"
	"kuwahara/pkg/kernel"
	"kuwahara/pkg/kuwahara"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Filter parameters
	Filter struct {
		// Method is "mean" or "gaussian"
		Method string `yaml:"method"`

		// Radius is the quadrant radius in pixels. It is read as a number so
		// that fractional values can be rejected with a clear message.
		Radius float64 `yaml:"radius"`

		// Sigma is the Gaussian standard deviation; 0 selects it from the radius
		Sigma float64 `yaml:"sigma"`

		// Measurement names the channel variances are computed on
		// (gray, gray-rgb, hsv-value, lab-lightness, channel:N)
		Measurement string `yaml:"measurement"`

		// Precision is "float32" or "float64"
		Precision string `yaml:"precision"`

		// Border is "reflect101", "reflect" or "replicate"
		Border string `yaml:"border"`
	} `yaml:"filter"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Format is the file extension of written images. Empty keeps the
		// input format.
		Format string `yaml:"format"`

		// JPEGQuality is used when writing JPEG files
		JPEGQuality int `yaml:"jpegQuality"`

		// SaveIntermediaryResults determines whether to save measurement
		// channels and quadrant selection maps
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose enables debug logging from the filter
		Verbose bool `yaml:"verbose"`

		// ReportMetrics prints quality metrics for every image
		ReportMetrics bool `yaml:"reportMetrics"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Filter.Method = "mean"
	cfg.Filter.Radius = 3
	cfg.Filter.Sigma = 0
	cfg.Filter.Measurement = "gray"
	cfg.Filter.Precision = "float32"
	cfg.Filter.Border = "reflect101"

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Format = ""
	cfg.Output.JPEGQuality = 95
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false
	cfg.Output.ReportMetrics = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks every field that FilterOptions would otherwise reject,
// plus the output settings.
func (c *Config) Validate() error {
	if _, err := c.FilterOptions(); err != nil {
		return err
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("jpegQuality must be between 1 and 100, got %d", c.Output.JPEGQuality)
	}
	switch strings.ToLower(strings.TrimPrefix(c.Output.Format, ".")) {
	case "", "png", "jpg", "jpeg", "bmp", "tif", "tiff":
	default:
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	if c.Output.SaveIntermediaryResults && c.Output.IntermediaryDir == "" {
		return fmt.Errorf("intermediaryDir must be set when saving intermediary results")
	}
	return nil
}

// FilterOptions converts the filter section to kuwahara.Options.
func (c *Config) FilterOptions() (kuwahara.Options, error) {
	var opts kuwahara.Options

	method, err := kernel.ParseMethod(c.Filter.Method)
	if err != nil {
		return opts, fmt.Errorf("filter.method: %w", err)
	}
	radius, err := kernel.RadiusFromFloat(c.Filter.Radius)
	if err != nil {
		return opts, fmt.Errorf("filter.radius: %w", err)
	}
	if c.Filter.Sigma < 0 {
		return opts, fmt.Errorf("filter.sigma: %w: must not be negative, got %v", kuwahara.ErrInvalidArgument, c.Filter.Sigma)
	}
	extractor, err := colorspace.Parse(c.Filter.Measurement)
	if err != nil {
		return opts, fmt.Errorf("filter.measurement: %w", err)
	}
	precision, err := kuwahara.ParsePrecision(c.Filter.Precision)
	if err != nil {
		return opts, fmt.Errorf("filter.precision: %w", err)
	}
	border, err := convolve.ParseBorder(c.Filter.Border)
	if err != nil {
		return opts, fmt.Errorf("filter.border: %w", err)
	}

	opts = kuwahara.Options{
		Method:    method,
		Radius:    radius,
		Sigma:     c.Filter.Sigma,
		Extractor: extractor,
		Precision: precision,
		Border:    border,
		Workers:   c.Processing.NumCores,
	}
	return opts, nil
}
