package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds the resolved configuration for all commands.
type Config struct {
	// StoreDir is the store directory, relative paths resolve against
	// the working directory.
	StoreDir string

	// Pretty indents documents written by put.
	Pretty bool

	// NoLock disables the advisory write lock.
	NoLock bool

	// LockTimeout bounds how long write operations wait for the lock.
	// Zero means the store default.
	LockTimeout time.Duration
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StoreDir: ".kiokufiles",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".kiokufiles.json"

// fileConfig is the on-disk shape. Pointer fields distinguish "absent"
// from an explicit false/empty so later layers only override what they set.
type fileConfig struct {
	StoreDir    *string `json:"store_dir"`
	Pretty      *bool   `json:"pretty"`
	NoLock      *bool   `json:"no_lock"`
	LockTimeout *string `json:"lock_timeout"`
}

// globalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/kiokufiles/config.json if set, otherwise
// ~/.config/kiokufiles/config.json. Returns empty string if the home
// directory cannot be determined.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "kiokufiles", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "kiokufiles", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "kiokufiles", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/kiokufiles/config.json)
// 3. Project config file at default location (.kiokufiles.json, if exists)
// 4. Explicit config file via configPath (if non-empty)
//
// Flag overrides are applied by the caller on top of the result.
func LoadConfig(workDir, configPath string, env map[string]string) (Config, ConfigSources, error) {
	cfg := DefaultConfig()

	var sources ConfigSources

	if path := globalConfigPath(env); path != "" {
		layer, loaded, err := loadConfigFile(path, false)
		if err != nil {
			return Config{}, ConfigSources{}, err
		}

		if loaded {
			sources.Global = path

			cfg, err = mergeConfig(cfg, layer, path)
			if err != nil {
				return Config{}, ConfigSources{}, err
			}
		}
	}

	path, mustExist := filepath.Join(workDir, ConfigFileName), false
	if configPath != "" {
		path, mustExist = configPath, true
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			return Config{}, ConfigSources{}, fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	}

	layer, loaded, err := loadConfigFile(path, mustExist)
	if err != nil {
		return Config{}, ConfigSources{}, err
	}

	if loaded {
		sources.Project = path

		cfg, err = mergeConfig(cfg, layer, path)
		if err != nil {
			return Config{}, ConfigSources{}, err
		}
	}

	if cfg.StoreDir == "" {
		return Config{}, ConfigSources{}, errStoreDirEmpty
	}

	return cfg, sources, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return a zero layer. Config files are JSONC, comments and trailing
// commas are allowed.
func loadConfigFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if mustExist {
			return fileConfig{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		return fileConfig{}, false, nil
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: invalid JSONC: %w", errConfigInvalid, path, err)
	}

	var layer fileConfig

	if err := json.Unmarshal(standardized, &layer); err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: invalid JSON: %w", errConfigInvalid, path, err)
	}

	return layer, true, nil
}

func mergeConfig(base Config, overlay fileConfig, path string) (Config, error) {
	if overlay.StoreDir != nil {
		if *overlay.StoreDir == "" {
			return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, errStoreDirEmpty)
		}

		base.StoreDir = *overlay.StoreDir
	}

	if overlay.Pretty != nil {
		base.Pretty = *overlay.Pretty
	}

	if overlay.NoLock != nil {
		base.NoLock = *overlay.NoLock
	}

	if overlay.LockTimeout != nil {
		d, err := time.ParseDuration(*overlay.LockTimeout)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w %s: lock_timeout: %q is not a positive duration", errConfigInvalid, path, *overlay.LockTimeout)
		}

		base.LockTimeout = d
	}

	return base, nil
}

// FormatConfig returns the config as formatted JSON.
func FormatConfig(cfg Config) (string, error) {
	out := struct {
		StoreDir    string `json:"store_dir"`
		Pretty      bool   `json:"pretty"`
		NoLock      bool   `json:"no_lock"`
		LockTimeout string `json:"lock_timeout,omitempty"`
	}{
		StoreDir: cfg.StoreDir,
		Pretty:   cfg.Pretty,
		NoLock:   cfg.NoLock,
	}
	if cfg.LockTimeout > 0 {
		out.LockTimeout = cfg.LockTimeout.String()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
