package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/cloudsync/internal/config"
	"github.com/openmined/cloudsync/internal/utils"
	"github.com/spf13/cobra"
)

const envConfigPath = config.EnvPrefix + "_CONFIG_PATH"

// explicitConfigPath is the config file named by --config or CLOUDSYNC_CONFIG_PATH.
func explicitConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}
	return os.Getenv(envConfigPath)
}

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) CLOUDSYNC_CONFIG_PATH environment variable
// 3) Existing config files in the search paths
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if path := explicitConfigPath(cmd); path != "" {
		return path
	}

	for _, dir := range config.SearchPaths {
		candidate := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileType)
		if utils.FileExists(candidate) {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}

	return config.DefaultConfigPath
}
