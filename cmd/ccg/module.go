// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccg-dev/ccg/internal/config"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/manifest"
)

func newModuleCommand(app *App) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect the modules of a pack manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var manifestPath string
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the modules a manifest declares",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configFile})
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("manifest") {
				manifestPath = cfg.Manifest
			}

			path, err := filepath.Abs(manifestPath)
			if err != nil {
				return issue.WrapWithContext(err, "resolve manifest path", manifestPath)
			}
			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			printModules(app.stdout, m)
			return nil
		},
	}
	listCmd.Flags().StringVar(&manifestPath, "manifest", config.DefaultConfig().Manifest, "path to the pack manifest")

	moduleCmd.AddCommand(listCmd)
	return moduleCmd
}

// printModules lists modules in manifest order with their enabled state.
func printModules(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, TitleStyle.Render("Available modules"))
	fmt.Fprintln(w)

	width := 0
	for _, mod := range m.Modules {
		width = max(width, len(mod.Name))
	}

	for _, mod := range m.Modules {
		state := SuccessStyle.Render("enabled ")
		if !mod.Enabled {
			state = SubtitleStyle.Render("disabled")
		}
		name := fmt.Sprintf("%-*s", width, mod.Name)
		fmt.Fprintf(w, "  %s  %s  %s\n", CmdStyle.Render(name), state, mod.Description)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render(`Install one with --module <name>, or every enabled module with --module all.`))
}
