// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ccg-dev/ccg/internal/ccgconfig"
	"github.com/ccg-dev/ccg/internal/config"
	"github.com/ccg-dev/ccg/internal/installer"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/manifest"
	"github.com/ccg-dev/ccg/internal/provider"
)

// installOptions holds the install flags. Unset flags fall back to the
// loaded configuration.
type installOptions struct {
	installDir    string
	module        string
	manifest      string
	force         bool
	listModules   bool
	configurePath bool
	mcpProvider   string
	mcpToken      string
	mcpBaseURL    string
}

func newInstallCommand(app *App) *cobra.Command {
	var opts installOptions

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install modules from a pack manifest",
		Long: `Install modules from a pack manifest.

Sources are resolved against the manifest's directory and targets against
the install directory. The command exits non-zero when any operation of a
selected module failed; the remaining operations and modules still run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, app, &opts)
		},
	}

	defaults := config.DefaultConfig()
	flags := installCmd.Flags()
	flags.StringVarP(&opts.installDir, "install-dir", "d", defaults.InstallDir, "installation root")
	flags.StringVarP(&opts.module, "module", "m", defaults.Module, `module to install, or "all" for every enabled module`)
	flags.StringVar(&opts.manifest, "manifest", defaults.Manifest, "path to the pack manifest")
	flags.BoolVarP(&opts.force, "force", "f", false, "overwrite existing files (installs always overwrite)")
	flags.BoolVar(&opts.listModules, "list-modules", false, "list the manifest's modules and exit")
	flags.BoolVar(&opts.configurePath, "configure-path", false, "add the binary directory to the shell profile when it is not on PATH")
	flags.StringVar(&opts.mcpProvider, "mcp-provider", "", "MCP provider: ace-tool, auggie or none (prompted when omitted on a terminal)")
	flags.StringVar(&opts.mcpToken, "mcp-token", "", "API token for the MCP provider")
	flags.StringVar(&opts.mcpBaseURL, "mcp-base-url", "", "base URL for ace-tool (default "+provider.DefaultAceBaseURL+")")

	return installCmd
}

// mergeConfig fills every flag the user did not set from cfg.
func (o *installOptions) mergeConfig(flags *pflag.FlagSet, cfg *config.Config) {
	if !flags.Changed("install-dir") {
		o.installDir = cfg.InstallDir
	}
	if !flags.Changed("module") {
		o.module = cfg.Module
	}
	if !flags.Changed("manifest") {
		o.manifest = cfg.Manifest
	}
	if !flags.Changed("configure-path") {
		o.configurePath = cfg.Path.Configure
	}
	if !flags.Changed("mcp-provider") {
		o.mcpProvider = cfg.MCP.Provider
	}
	if !flags.Changed("mcp-token") {
		o.mcpToken = cfg.MCP.Token
	}
	if !flags.Changed("mcp-base-url") {
		o.mcpBaseURL = cfg.MCP.BaseURL
	}
}

func runInstall(cmd *cobra.Command, app *App, opts *installOptions) error {
	ctx := cmd.Context()

	cfg, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: app.configFile})
	if err != nil {
		return err
	}
	opts.mergeConfig(cmd.Flags(), cfg)
	verbose := app.verbose || cfg.Verbose
	logger := app.newLogger(verbose)

	// Validate the provider before touching anything.
	selector, err := app.selectorFor(opts)
	if err != nil {
		return err
	}

	manifestPath, err := filepath.Abs(opts.manifest)
	if err != nil {
		return issue.WrapWithContext(err, "resolve manifest path", opts.manifest)
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	if opts.listModules {
		printModules(app.stdout, m)
		return nil
	}

	modules, err := manifest.Select(m, opts.module)
	if err != nil {
		return unknownModuleError(err, opts.module, m)
	}
	if len(modules) == 0 {
		logger.Warn("no enabled modules to install", "manifest", manifestPath)
		return nil
	}

	installRoot, err := filepath.Abs(config.ExpandHome(opts.installDir, app.Env.Home))
	if err != nil {
		return issue.WrapWithContext(err, "resolve install directory", opts.installDir)
	}
	if err := installer.EnsureRoot(installRoot); err != nil {
		return err
	}

	if opts.force {
		logger.Debug("--force has no effect; existing files are always overwritten")
	}
	logger.Debug("installing", "manifest", manifestPath, "install_dir", installRoot, "module", opts.module)

	inst := app.newInstaller(runSettings{
		InstallRoot:    installRoot,
		SourceRoot:     filepath.Dir(manifestPath),
		ConfigurePath:  opts.configurePath,
		Timeouts:       cfg.Timeouts,
		Selector:       selector,
		ClaudeJSONPath: app.claudeJSONPath(),
		CCGConfigDir:   ccgconfig.DefaultDir(app.Env.Home),
	}, logger)

	report := inst.Run(ctx, modules)
	app.printSummary(report, installRoot)

	if !report.OK() {
		return &ExitError{Code: 1}
	}
	return nil
}

// selectorFor decides how MCP provider choices are made. An explicit
// provider (flag or config) wins; otherwise the user is prompted when a
// terminal is attached, and the step is skipped when it is not.
func (a *App) selectorFor(opts *installOptions) (provider.Selector, error) {
	creds := &provider.Selection{Token: opts.mcpToken, BaseURL: opts.mcpBaseURL}

	if strings.TrimSpace(opts.mcpProvider) != "" {
		name, err := provider.ParseName(opts.mcpProvider)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("select MCP provider").
				WithResource(opts.mcpProvider).
				WithSuggestion("Use --mcp-provider ace-tool, auggie or none").
				Wrap(err).
				BuildError()
		}
		creds.Provider = name
		return &provider.StaticSelector{Choice: creds}, nil
	}

	if a.isTerminal() {
		return &promptSelector{token: creds.Token, baseURL: creds.BaseURL}, nil
	}
	creds.Provider = provider.None
	return &provider.StaticSelector{Choice: creds}, nil
}

func unknownModuleError(err error, name string, m *manifest.Manifest) error {
	if !errors.Is(err, manifest.ErrUnknownModule) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("select module").
		WithResource(name).
		WithIssue(issue.ModuleNotFoundId).
		WithSuggestion("Available modules: " + strings.Join(m.Names(), ", ")).
		WithSuggestion(`Use --module all to install every enabled module`).
		Wrap(err).
		BuildError()
}
