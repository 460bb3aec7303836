package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// ErrUserInitiatedExit signals that the user asked to leave, callers treat it
// as a clean exit rather than a failure.
var ErrUserInitiatedExit = errors.New("user initiated exit")

const configDirName = ".qw"

// GetConfigDir returns the qw configuration directory, normally
// $XDG_CONFIG_HOME/.qw. QW_CONFIG_DIR overrides it entirely.
func GetConfigDir() (string, error) {
	if override := os.Getenv("QW_CONFIG_DIR"); override != "" {
		return override, nil
	}
	confDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find user config dir: %w", err)
	}
	return filepath.Join(confDir, configDirName), nil
}

// CreateConfigDir ensures the configuration directory exists.
func CreateConfigDir(configDirPath string) error {
	if _, err := os.Stat(configDirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(configDirPath, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
		if misc.Truthy(os.Getenv("DEBUG")) {
			ancli.PrintOK(fmt.Sprintf("created config directory at: '%v'\n", configDirPath))
		}
	}
	return nil
}

// CreateFile writes v as indented json to path.
func CreateFile[T any](path string, v *T) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ReturnNonDefault picks whichever of a and b differs from defaultVal,
// erroring when both do. Used to merge short/long flag pairs.
func ReturnNonDefault[T comparable](a, b, defaultVal T) (T, error) {
	if a != defaultVal && b != defaultVal {
		return defaultVal, fmt.Errorf("values are mutually exclusive")
	}
	if a != defaultVal {
		return a, nil
	}
	if b != defaultVal {
		return b, nil
	}
	return defaultVal, nil
}

// LoadConfigFromFile reads configFileName from configDirPath, creating both
// the directory and a default-valued file when missing.
func LoadConfigFromFile[T any](configDirPath, configFileName string, dflt *T) (T, error) {
	var nilVal T
	if err := CreateConfigDir(configDirPath); err != nil {
		return nilVal, err
	}
	configFilePath := filepath.Join(configDirPath, configFileName)
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		if misc.Truthy(os.Getenv("DEBUG")) {
			ancli.PrintOK(fmt.Sprintf("attempting to create file: '%v'\n", configFilePath))
		}
		if err := CreateFile(configFilePath, dflt); err != nil {
			return nilVal, fmt.Errorf("failed to create default config: '%v', error: %w", configFileName, err)
		}
	}
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return nilVal, fmt.Errorf("failed to read config file: %w", err)
	}
	var conf T
	if err := json.Unmarshal(data, &conf); err != nil {
		return nilVal, fmt.Errorf("failed to parse config file: '%v', error: %w", configFilePath, err)
	}
	return conf, nil
}
