package config

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
)

// File holds the settings that may be kept in a file.
// Credentials are never read from a file.
type File struct {
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	Timeout     string   `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Tracing     *bool    `json:"tracing,omitempty" yaml:"tracing,omitempty" toml:"tracing,omitempty"`
	Project     string   `json:"project,omitempty" yaml:"project,omitempty" toml:"project,omitempty"`
	LogLevel    string   `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level,omitempty"`
}

// LoadFile reads settings from a YAML, JSON or TOML file.
// YAML and JSON values may reference environment variables.
func LoadFile(path string) (*File, error) {
	f := new(File)
	if path == "" {
		return f, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, f); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "failed to load %s: %v", path, err)
		}
	default:
		if err := configloader.UnmarshalAndExpand(path, f); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "failed to load %s: %v", path, err)
		}
	}
	return f, nil
}

func (f *File) values() map[string]string {
	m := map[string]string{}
	if f == nil {
		return m
	}
	m[KeyBaseURL] = f.BaseURL
	m[KeyModel] = f.Model
	m[KeyTimeout] = f.Timeout
	m[KeyProject] = f.Project
	m[KeyLogLevel] = f.LogLevel
	if f.Temperature != nil {
		m[KeyTemperature] = strconv.FormatFloat(*f.Temperature, 'f', -1, 64)
	}
	if f.Tracing != nil {
		m[KeyTracing] = strconv.FormatBool(*f.Tracing)
	}
	return m
}
