// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ccg-dev/ccg/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the ccg command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ccg",
		Short: "Install Claude Code command packs",
		Long: TitleStyle.Render("ccg") + SubtitleStyle.Render(" - Claude Code command pack installer") + `

ccg reads a pack manifest and installs its modules into the Claude Code
configuration directory: slash commands, agent prompts, the helper binary
and an optional MCP code-search provider.

` + SubtitleStyle.Render("Examples:") + `
  ccg install                     Install the core module into ~/.claude
  ccg install --module all        Install every enabled module
  ccg install --list-modules      List the modules the manifest declares
  ccg config show                 Show the effective configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is $HOME/.config/ccg/config.cue)")

	rootCmd.AddCommand(newInstallCommand(app))
	rootCmd.AddCommand(newModuleCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with its status.
// This is called by main.main().
func Execute() {
	os.Exit(Run())
}

// Run executes the CLI against os.Args and returns the exit code.
func Run() int {
	return run(context.Background(), os.Args[1:], Dependencies{})
}

func run(ctx context.Context, args []string, deps Dependencies) int {
	app := NewApp(deps)
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// handleError prints command errors. A bare ExitError has already been
// reported by the command and is not printed again.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, a.verbose))
		if guide := a.renderIssue(issue.IssueOf(err)); guide != "" {
			fmt.Fprint(w, guide)
		}
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// renderIssue returns the catalog guidance for id, or "" when there is none
// or it cannot be rendered.
func (a *App) renderIssue(id issue.Id) string {
	entry := issue.Get(id)
	if entry == nil {
		return ""
	}
	out, err := entry.Render(a.markdownStyle())
	if err != nil {
		return ""
	}
	return out
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
