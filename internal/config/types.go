// SPDX-License-Identifier: MPL-2.0

package config

import (
	"path/filepath"
	"strings"
	"time"
)

type (
	// Config is the effective user configuration.
	Config struct {
		InstallDir string         `mapstructure:"install_dir"`
		Manifest   string         `mapstructure:"manifest"`
		Module     string         `mapstructure:"module"`
		Verbose    bool           `mapstructure:"verbose"`
		Timeouts   TimeoutsConfig `mapstructure:"timeouts"`
		MCP        MCPConfig      `mapstructure:"mcp"`
		Path       PathConfig     `mapstructure:"path"`
	}

	// TimeoutsConfig bounds the subprocesses run during installation.
	TimeoutsConfig struct {
		Build   time.Duration `mapstructure:"build"`
		Verify  time.Duration `mapstructure:"verify"`
		Install time.Duration `mapstructure:"install"`
	}

	// MCPConfig preselects the MCP provider so no prompt is shown.
	MCPConfig struct {
		Provider string `mapstructure:"provider"`
		BaseURL  string `mapstructure:"base_url"`
		Token    string `mapstructure:"token"`
	}

	// PathConfig controls shell profile edits.
	PathConfig struct {
		Configure bool `mapstructure:"configure"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		InstallDir: "~/.claude",
		Manifest:   "config.json",
		Module:     "core",
		Timeouts: TimeoutsConfig{
			Build:   5 * time.Minute,
			Verify:  60 * time.Second,
			Install: 120 * time.Second,
		},
	}
}

// ExpandHome replaces a leading "~" in path with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}
