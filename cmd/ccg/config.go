// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccg-dev/ccg/internal/ccgconfig"
	"github.com/ccg-dev/ccg/internal/config"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/mcpconfig"
	"github.com/ccg-dev/ccg/internal/provider"
)

// newConfigCommand creates the `ccg config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ccg configuration",
		Long: `Manage ccg configuration.

Configuration is stored in:
  - Linux: ~/.config/ccg/config.cue
  - macOS: ~/Library/Application Support/ccg/config.cue
  - Windows: %APPDATA%\ccg\config.cue

Every key can be overridden with a CCG_ environment variable, e.g.
CCG_MODULE=all or CCG_MCP_PROVIDER=none.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and MCP registration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return issue.WrapWithContext(err, "create config", "")
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configFile})
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configFile})
	if err != nil {
		return err
	}

	w := app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	row := func(key string, value any) {
		fmt.Fprintf(w, "  %s: %s\n", keyStyle.Render(key), valueStyle.Render(fmt.Sprint(value)))
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	row("install_dir", cfg.InstallDir)
	row("manifest", cfg.Manifest)
	row("module", cfg.Module)
	row("verbose", cfg.Verbose)
	row("timeouts.build", cfg.Timeouts.Build)
	row("timeouts.verify", cfg.Timeouts.Verify)
	row("timeouts.install", cfg.Timeouts.Install)
	provName := cfg.MCP.Provider
	if provName == "" {
		provName = "(prompt)"
	}
	row("mcp.provider", provName)
	if cfg.MCP.BaseURL != "" {
		row("mcp.base_url", cfg.MCP.BaseURL)
	}
	if cfg.MCP.Token != "" {
		row("mcp.token", "(set)")
	}
	row("path.configure", cfg.Path.Configure)

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("MCP Registration"))
	fmt.Fprintln(w)

	claudeJSON := app.claudeJSONPath()
	for _, id := range []string{provider.AceToolServerID, provider.AuggieServerID} {
		rec, err := mcpconfig.Lookup(claudeJSON, id)
		switch {
		case err == nil:
			row(id, rec.Command)
		case errors.Is(err, mcpconfig.ErrNotRegistered):
			fmt.Fprintf(w, "  %s: %s\n", keyStyle.Render(id), SubtitleStyle.Render("(not registered)"))
		default:
			fmt.Fprintf(w, "  %s: %s\n", keyStyle.Render(id), WarningStyle.Render(err.Error()))
		}
	}

	generated := filepath.Join(ccgconfig.DefaultDir(app.Env.Home), ccgconfig.FileName)
	ccgCfg, err := ccgconfig.Read(generated)
	switch {
	case err == nil:
		row("generated provider", ccgCfg.MCP.Provider)
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(w, "  %s: %s\n", keyStyle.Render("generated provider"), SubtitleStyle.Render("(not generated)"))
	default:
		fmt.Fprintf(w, "  %s: %s\n", keyStyle.Render("generated provider"), WarningStyle.Render(err.Error()))
	}

	return nil
}
