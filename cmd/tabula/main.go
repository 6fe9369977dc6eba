package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tugtool/tugtool-sub001/pkg/config"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabula",
		Short: "tabula - tabular views over JSON documents",
		Long: `tabula loads JSON or NDJSON documents into a columnar arena and exposes
array-valued fields as tables: discover candidate tables, print rows of a
view as NDJSON, or export a view's columns as Apache Arrow.

Input files may be compressed (.gz, .zst, .lz4, .sz, .s2, .zz).`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	key := "config"
	root.PersistentFlags().String(key, "", WrapString("Path to a YAML configuration file"))

	key = "log-level"
	root.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	key = "split-array"
	root.PersistentFlags().Bool(key, false, WrapString("Treat each element of a top-level array as its own document"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tabula v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newDiscoverCmd(), newViewCmd(), newExportCmd())
	return root
}

// setup loads .env files, binds flags to viper and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("tabula")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	return nil
}

// loadConfig reads the --config file, if any, and applies flag and
// environment overrides on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if viper.IsSet("log-level") {
		cfg.Logging.Level = viper.GetString("log-level")
	}
	if viper.IsSet("length-policy") {
		cfg.View.LengthPolicy = viper.GetString("length-policy")
	}
	if viper.IsSet("columns") {
		cfg.View.Columns = viper.GetStringSlice("columns")
	}
	if viper.IsSet("exclude") {
		cfg.View.Exclude = viper.GetStringSlice("exclude")
	}
	if viper.IsSet("threshold") {
		cfg.Discovery.Threshold = viper.GetFloat64("threshold")
	}
	if viper.IsSet("ignore") {
		cfg.Discovery.IgnoreFields = viper.GetStringSlice("ignore")
	}
	if viper.IsSet("format") {
		cfg.Export.Format = viper.GetString("format")
	}
	if viper.IsSet("compression") {
		cfg.Export.Compression = viper.GetString("compression")
	}
	if viper.IsSet("skip-unsupported") {
		cfg.Export.SkipUnsupported = viper.GetBool("skip-unsupported")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Wrap is the number of characters to wrap flag help at
const Wrap = 60

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var (
		lines     []string
		line      strings.Builder
		lineWidth int
	)
	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			line.WriteString(" ")
			lineWidth++
		}
		line.WriteString(word)
		lineWidth += len(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
