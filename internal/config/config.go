// Package config resolves launch defaults from the configuration file
// and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"

	// envPrefix namespaces the environment variables (STUDENTFS_*).
	envPrefix = "STUDENTFS"

	// systemDir is the machine-wide fallback location.
	systemDir = "/etc/studentfs"
)

// Config resolves launch defaults, with explicit fallbacks for unset keys.
type Config struct {
	v *viper.Viper
}

// Dir returns the path to the user configuration directory (~/.studentfs).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".studentfs")
	}

	return filepath.Join(home, ".studentfs")
}

// FilePath returns the full path to the user configuration file
// (~/.studentfs/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// Load reads the configuration file, if one exists, and wires up the
// environment; STUDENTFS_* variables take precedence over file values.
// Dashes in keys map to underscores in variable names, so the key
// "ring-buffer-size" reads STUDENTFS_RING_BUFFER_SIZE.
func Load() *Config {
	v := viper.New()

	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(Dir())
	v.AddConfigPath(systemDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// A missing file is fine; flags and built-ins cover everything.
	_ = v.ReadInConfig()

	return &Config{v: v}
}

// FileUsed returns the path of the configuration file that was read,
// or an empty string when none was found.
func (c *Config) FileUsed() string {
	return c.v.ConfigFileUsed()
}

// String returns the configured value for key, or fallback when unset.
func (c *Config) String(key, fallback string) string {
	if !c.v.IsSet(key) {
		return fallback
	}

	return c.v.GetString(key)
}

// Int returns the configured value for key, or fallback when unset.
func (c *Config) Int(key string, fallback int) int {
	if !c.v.IsSet(key) {
		return fallback
	}

	return c.v.GetInt(key)
}

// Uint64 returns the configured value for key, or fallback when unset.
func (c *Config) Uint64(key string, fallback uint64) uint64 {
	if !c.v.IsSet(key) {
		return fallback
	}

	return c.v.GetUint64(key)
}

// Bool returns the configured value for key, or fallback when unset.
func (c *Config) Bool(key string, fallback bool) bool {
	if !c.v.IsSet(key) {
		return fallback
	}

	return c.v.GetBool(key)
}
