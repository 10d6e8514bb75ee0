// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/ccg-dev/ccg/internal/ccgconfig"
	"github.com/ccg-dev/ccg/internal/config"
	"github.com/ccg-dev/ccg/internal/installer"
	"github.com/ccg-dev/ccg/internal/mcpconfig"
	"github.com/ccg-dev/ccg/internal/platform"
	"github.com/ccg-dev/ccg/internal/provider"
	"github.com/ccg-dev/ccg/internal/provision"
)

type (
	// App wires CLI services and shared dependencies. All command handlers
	// receive an App and build their collaborators through it.
	App struct {
		Config config.Provider
		Env    provision.Env
		// Key selects prebuilt artifacts; defaults to the running platform.
		Key platform.Key

		stdout     io.Writer
		stderr     io.Writer
		isTerminal func() bool

		// Bound to persistent flags by NewRootCommand.
		configFile string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Env    *provision.Env
		Stdout io.Writer
		Stderr io.Writer
		// IsTerminal reports whether prompts may be shown.
		IsTerminal func() bool
	}

	// runSettings is the merged view of config file, env and flags for one
	// install run.
	runSettings struct {
		InstallRoot    string
		SourceRoot     string
		ConfigurePath  bool
		Timeouts       config.TimeoutsConfig
		Selector       provider.Selector
		ClaudeJSONPath string
		CCGConfigDir   string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Env == nil {
		env := provision.EnvFromOS()
		deps.Env = &env
	}
	if deps.IsTerminal == nil {
		deps.IsTerminal = func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		}
	}

	return &App{
		Config:     deps.Config,
		Env:        *deps.Env,
		Key:        platform.NewKey(runtime.GOOS, runtime.GOARCH),
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		isTerminal: deps.IsTerminal,
	}
}

// newLogger builds the run logger. Verbose only lowers the level.
func (a *App) newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// newInstaller assembles the module installer for one run.
func (a *App) newInstaller(s runSettings, logger *log.Logger) *installer.Installer {
	resolver := &provision.Resolver{
		SourceRoot: s.SourceRoot,
		Key:        a.Key,
		Toolchain: provision.NewToolchain(
			provision.WithBuildTimeout(s.Timeouts.Build),
			provision.WithToolchainLogger(logger),
		),
		Installer: &provision.Installer{
			Env:           a.Env,
			ConfigurePath: s.ConfigurePath,
			Logger:        logger,
		},
		Logger: logger,
	}

	providers := provider.NewInstaller(s.ClaudeJSONPath,
		provider.WithVerifyTimeout(s.Timeouts.Verify),
		provider.WithInstallTimeout(s.Timeouts.Install),
		provider.WithLogger(logger),
	)

	return &installer.Installer{
		Executor: &installer.Executor{
			SourceRoot:  s.SourceRoot,
			InstallRoot: s.InstallRoot,
			Provisioner: resolver,
			Providers:   providers,
			Selector:    s.Selector,
			CCGConfig:   &ccgconfig.Writer{Dir: s.CCGConfigDir},
			Logger:      logger,
		},
		Logger: logger,
	}
}

// claudeJSONPath is ~/.claude.json for the App's home directory.
func (a *App) claudeJSONPath() string {
	return mcpconfig.DefaultPath(a.Env.Home)
}

// markdownStyle picks the glamour style for rendered output.
func (a *App) markdownStyle() string {
	if a.isTerminal() {
		return "dark"
	}
	return "notty"
}
