package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/giantswarm/multibranch/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/multibranch"
	configFileName = "config.yaml"
)

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults,
// resolves relative paths against configPath and validates the result.
// A missing file yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeIO, "cannot read configuration", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, parseError(configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	resolvePaths(&config, configPath)

	if errs := Validate(config); errs.HasErrors() {
		return Config{}, NewConfigurationError(configFilePath, ErrorTypeValidation, "invalid configuration", errs)
	}
	return config, nil
}

func parseError(path string, err error) ConfigurationError {
	ce := NewConfigurationError(path, ErrorTypeParse, "malformed configuration", err)
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		ce.LineNumber, _ = strconv.Atoi(m[1])
	}
	ce.Suggestions = []string{"check indentation and key names against the documented keys"}
	return ce
}

// resolvePaths makes file system paths absolute relative to base.
func resolvePaths(c *Config, base string) {
	c.StateDir = resolve(base, c.StateDir)
	for i := range c.Projects {
		src := &c.Projects[i].Source
		src.HeadsFile = resolve(base, src.HeadsFile)
		src.Path = resolve(base, src.Path)
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
