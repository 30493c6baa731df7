// Package config provides configuration loading for the engine.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and
// environment variables. If configFile is empty, it searches for
// rolegate.yaml/.yml in standard locations. The search requires an
// explicit YAML extension to avoid matching the binary itself, which
// Viper's built-in SetConfigName would match (same base name, no
// extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name and
		// type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("rolegate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: ROLEGATE_DIRECTORY_BACKEND
	viper.SetEnvPrefix("ROLEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// findConfigFile searches standard locations for a rolegate config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".rolegate"),
		"/etc/rolegate",
	}
	for _, dir := range paths {
		for _, name := range []string{"rolegate.yaml", "rolegate.yml"} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}
