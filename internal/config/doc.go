// SPDX-License-Identifier: MPL-2.0

// Package config handles user configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/ccg/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/ccg/config.cue on macOS, %APPDATA%\ccg\config.cue on
// Windows). Values supply defaults for the install command: install directory, manifest,
// module selection, subprocess timeouts and the MCP provider. Environment variables with
// the CCG_ prefix override the file, and command-line flags override both.
//
// Files are validated against an embedded CUE schema (config_schema.cue) before use.
package config
