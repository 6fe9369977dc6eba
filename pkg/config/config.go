// Package config holds the settings shared by the tabula command and any
// embedding program: logging, default view construction, table discovery
// and Arrow export.
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.View.LengthPolicy = "ragged"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	opts, _ := cfg.ViewOptions()
//	v, err := tabular.NewView(a, root, opts...)
package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/export"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/tabular"
)

// Config is the complete tabula configuration.
type Config struct {
	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// View holds the defaults used when building views
	View ViewConfig `yaml:"view" json:"view"`

	// Discovery tunes the table-candidate scan
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`

	// Export selects the Arrow IPC framing and codec
	Export ExportConfig `yaml:"export" json:"export"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding"`
}

// ViewConfig holds view construction defaults.
type ViewConfig struct {
	// LengthPolicy is strict or ragged
	LengthPolicy string   `yaml:"length_policy" json:"length_policy"`
	Columns      []string `yaml:"columns" json:"columns"`
	Exclude      []string `yaml:"exclude" json:"exclude"`
}

// DiscoveryConfig tunes tabular.Discover.
type DiscoveryConfig struct {
	// Threshold is the minimum share of array-valued fields
	Threshold    float64  `yaml:"threshold" json:"threshold"`
	IgnoreFields []string `yaml:"ignore_fields" json:"ignore_fields"`
}

// ExportConfig selects Arrow output settings.
type ExportConfig struct {
	// Format is file or stream
	Format string `yaml:"format" json:"format"`
	// Compression is none, lz4 or zstd
	Compression     string `yaml:"compression" json:"compression"`
	SkipUnsupported bool   `yaml:"skip_unsupported" json:"skip_unsupported"`
}

// Default returns a Config with every section filled in.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		View: ViewConfig{
			LengthPolicy: tabular.Strict.String(),
			Columns:      []string{},
			Exclude:      []string{},
		},
		Discovery: DiscoveryConfig{
			Threshold:    tabular.DefaultDiscoveryThreshold,
			IgnoreFields: []string{},
		},
		Export: ExportConfig{
			Format:      string(export.FormatFile),
			Compression: string(export.None),
		},
	}
}

// Validate checks every section and reports the first problem as a
// config error.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", err)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	if _, err := tabular.ParseLengthPolicy(c.View.LengthPolicy); err != nil {
		return invalid("view.length_policy", err)
	}
	if c.Discovery.Threshold < 0 || c.Discovery.Threshold > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "discovery.threshold must be within [0, 1], got %g", c.Discovery.Threshold)
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return invalid("export.format", err)
	}
	if _, err := export.ParseCompression(c.Export.Compression); err != nil {
		return invalid("export.compression", err)
	}
	return nil
}

func invalid(field string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeConfig, "invalid "+field).WithDetail("field", field)
}

// LoggerConfig converts the logging section for logger.Init.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: []string{"stderr"},
	}
}

// ViewOptions converts the view section into construction options.
func (c *Config) ViewOptions() ([]tabular.ViewOption, error) {
	policy, err := tabular.ParseLengthPolicy(c.View.LengthPolicy)
	if err != nil {
		return nil, invalid("view.length_policy", err)
	}
	opts := []tabular.ViewOption{tabular.WithLengthPolicy(policy)}
	if len(c.View.Columns) > 0 {
		opts = append(opts, tabular.WithColumns(c.View.Columns...))
	}
	if len(c.View.Exclude) > 0 {
		opts = append(opts, tabular.WithoutColumns(c.View.Exclude...))
	}
	return opts, nil
}

// DiscoveryOptions converts the discovery section.
func (c *Config) DiscoveryOptions() tabular.DiscoveryOptions {
	return tabular.DiscoveryOptions{
		Threshold:    c.Discovery.Threshold,
		IgnoreFields: c.Discovery.IgnoreFields,
	}
}

// ExportOptions converts the export section.
func (c *Config) ExportOptions() (export.Options, error) {
	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, invalid("export.format", err)
	}
	compression, err := export.ParseCompression(c.Export.Compression)
	if err != nil {
		return export.Options{}, invalid("export.compression", err)
	}
	return export.Options{
		Format:          format,
		Compression:     compression,
		SkipUnsupported: c.Export.SkipUnsupported,
	}, nil
}
