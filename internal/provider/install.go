// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/mcpconfig"
)

const (
	// DefaultVerifyTimeout bounds the post-registration ace-tool check.
	DefaultVerifyTimeout = 60 * time.Second
	// DefaultInstallTimeout bounds the global npm install of auggie.
	DefaultInstallTimeout = 120 * time.Second

	// AceToolServerID and AuggieServerID are the mcpServers keys written.
	AceToolServerID = "ace-tool"
	AuggieServerID  = "auggie-mcp"

	aceToolPackage = "ace-tool@latest"
	auggiePackage  = "@augmentcode/auggie@prerelease"

	// waitDelay bounds how long Wait keeps reading output after a timed-out
	// command is killed. npx leaves the package binary holding the pipes.
	waitDelay = 2 * time.Second
)

var (
	// ErrToolchainMissing is returned when npm cannot be run.
	ErrToolchainMissing = errors.New("npm not found")

	// ErrInstallFailed is returned when the provider package could not be
	// installed.
	ErrInstallFailed = errors.New("provider install failed")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Registration is what Install wrote to the MCP configuration.
	Registration struct {
		ServerID string
		Record   mcpconfig.Record
		// Verified is false when the post-install check failed or timed out.
		Verified bool
	}

	// Option configures an Installer.
	Option func(*Installer)

	// Installer installs a provider and registers it in ConfigPath.
	Installer struct {
		configPath     string
		execCommand    ExecCommandFunc
		verifyTimeout  time.Duration
		installTimeout time.Duration
		logger         *log.Logger
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(i *Installer) {
		i.execCommand = fn
	}
}

// WithVerifyTimeout overrides DefaultVerifyTimeout. Non-positive values are
// ignored.
func WithVerifyTimeout(d time.Duration) Option {
	return func(i *Installer) {
		if d > 0 {
			i.verifyTimeout = d
		}
	}
}

// WithInstallTimeout overrides DefaultInstallTimeout. Non-positive values
// are ignored.
func WithInstallTimeout(d time.Duration) Option {
	return func(i *Installer) {
		if d > 0 {
			i.installTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) {
		i.logger = l
	}
}

// NewInstaller creates an Installer that registers servers in configPath
// (normally ~/.claude.json).
func NewInstaller(configPath string, opts ...Option) *Installer {
	i := &Installer{
		configPath:     configPath,
		execCommand:    exec.CommandContext,
		verifyTimeout:  DefaultVerifyTimeout,
		installTimeout: DefaultInstallTimeout,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ConfigPath returns the MCP configuration file being written.
func (i *Installer) ConfigPath() string {
	return i.configPath
}

// Install provisions sel.Provider and registers it.
func (i *Installer) Install(ctx context.Context, sel Selection) (Registration, error) {
	switch sel.Provider {
	case AceTool, Auggie:
	default:
		return Registration{}, fmt.Errorf("%w: %q", ErrUnknownProvider, sel.Provider)
	}

	if err := i.checkNpm(ctx); err != nil {
		return Registration{}, err
	}

	if sel.Provider == Auggie {
		return i.installAuggie(ctx, sel)
	}
	return i.installAceTool(ctx, sel)
}

func (i *Installer) checkNpm(ctx context.Context) error {
	if _, err := i.execCommand(ctx, "npm", "--version").Output(); err != nil {
		return issue.NewErrorContext().
			WithOperation("check npm").
			WithIssue(issue.NpmMissingId).
			WithSuggestion("Install Node.js: https://nodejs.org/").
			Wrap(fmt.Errorf("%w: %w", ErrToolchainMissing, err)).
			BuildError()
	}
	return nil
}

func (i *Installer) installAceTool(ctx context.Context, sel Selection) (Registration, error) {
	baseURL := sel.BaseURL
	if baseURL == "" {
		baseURL = DefaultAceBaseURL
	}
	if sel.Token == "" {
		i.logger.Warn("ace-tool token is empty; set ACE_TOKEN in the MCP configuration later")
	}

	reg := Registration{
		ServerID: AceToolServerID,
		Record: mcpconfig.Record{
			Type:    "stdio",
			Command: "npx",
			Args:    []string{"-y", aceToolPackage},
			Env: map[string]string{
				"ACE_BASE_URL": baseURL,
				"ACE_TOKEN":    sel.Token,
			},
		},
	}
	if err := mcpconfig.Register(i.configPath, reg.ServerID, reg.Record); err != nil {
		return Registration{}, err
	}
	i.logger.Debug("registered MCP server", "id", reg.ServerID, "file", i.configPath)

	reg.Verified = i.verifyAceTool(ctx)
	return reg, nil
}

// verifyAceTool runs the package once. Failure is advisory: the
// registration has already been written.
func (i *Installer) verifyAceTool(ctx context.Context) bool {
	verifyCtx, cancel := context.WithTimeout(ctx, i.verifyTimeout)
	defer cancel()

	cmd := i.execCommand(verifyCtx, "npx", "-y", aceToolPackage, "--version")
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	switch {
	case errors.Is(verifyCtx.Err(), context.DeadlineExceeded):
		i.logger.Warn("ace-tool verification timed out; configuration was saved")
		return false
	case err != nil:
		i.logger.Debug("ace-tool verification failed; configuration was saved", "error", err)
		return false
	}

	version := strings.TrimSpace(string(out))
	if version == "" {
		version = "unknown"
	}
	i.logger.Debug("ace-tool verified", "version", version)
	return true
}

func (i *Installer) installAuggie(ctx context.Context, sel Selection) (Registration, error) {
	installCtx, cancel := context.WithTimeout(ctx, i.installTimeout)
	defer cancel()

	cmd := i.execCommand(installCtx, "npm", "install", "-g", auggiePackage)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(installCtx.Err(), context.DeadlineExceeded) {
			return Registration{}, fmt.Errorf("%w: npm install timed out after %s", ErrInstallFailed, i.installTimeout)
		}
		return Registration{}, fmt.Errorf("%w: %w: %s", ErrInstallFailed, err, strings.TrimSpace(stderr.String()))
	}
	if sel.Token == "" {
		i.logger.Warn("auggie token is empty; set AUGMENT_API_KEY in the MCP configuration later")
	}

	reg := Registration{
		ServerID: AuggieServerID,
		Record: mcpconfig.Record{
			Type:    "stdio",
			Command: "auggie",
			Args:    []string{},
			Env:     map[string]string{"AUGMENT_API_KEY": sel.Token},
		},
		Verified: true,
	}
	if err := mcpconfig.Register(i.configPath, reg.ServerID, reg.Record); err != nil {
		return Registration{}, err
	}
	i.logger.Debug("registered MCP server", "id", reg.ServerID, "file", i.configPath)
	return reg, nil
}
