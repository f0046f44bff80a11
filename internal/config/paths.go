// ABOUTME: Default locations of the config file and the data directory
// ABOUTME: Follows the XDG base directory variables with home-directory fallbacks

package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "ERGO_CONFIG"

// Path returns the config file to use.
// Priority: flag value > ERGO_CONFIG env var > XDG_CONFIG_HOME/ergo/ergo.yaml > ~/.config/ergo/ergo.yaml
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "ergo.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ergo", "ergo.yaml")
}

// DataDir returns the ergo data directory.
// Priority: XDG_DATA_HOME/ergo > ~/.local/share/ergo
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "ergo")
}
