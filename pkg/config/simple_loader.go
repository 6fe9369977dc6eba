package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
)

// Load reads a YAML file into config after substituting ${VAR_NAME}
// references with environment values. Fields absent from the file keep
// their current value.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	return nil
}

// LoadFile loads filePath over Default and validates the result.
func LoadFile(filePath string) (*Config, error) {
	cfg := Default()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to a YAML file.
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var sb strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		sb.WriteString(content[:start])
		sb.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	sb.WriteString(content)
	return sb.String()
}
