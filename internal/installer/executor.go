// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ccg-dev/ccg/internal/ccgconfig"
	"github.com/ccg-dev/ccg/internal/fsops"
	"github.com/ccg-dev/ccg/internal/manifest"
	"github.com/ccg-dev/ccg/internal/provider"
	"github.com/ccg-dev/ccg/internal/provision"
)

// ErrUnknownOperation is the outcome error for an unrecognized operation
// type.
var ErrUnknownOperation = errors.New("unknown operation type")

type (
	// Provisioner resolves and installs build_binary operations.
	Provisioner interface {
		Provision(ctx context.Context, op manifest.Operation) (provision.Placement, error)
	}

	// ProviderInstaller installs and registers an MCP provider.
	ProviderInstaller interface {
		Install(ctx context.Context, sel provider.Selection) (provider.Registration, error)
	}

	// ConfigWriter regenerates the CCG configuration file for a provider.
	ConfigWriter interface {
		Write(provider string) (string, error)
	}

	// Outcome is the result of one operation.
	Outcome struct {
		Op  manifest.Operation
		OK  bool
		Err error
	}

	// Executor dispatches operations. Source paths are resolved against
	// SourceRoot and targets against InstallRoot.
	Executor struct {
		SourceRoot  string
		InstallRoot string
		Provisioner Provisioner
		Providers   ProviderInstaller
		Selector    provider.Selector
		CCGConfig   ConfigWriter
		Logger      *log.Logger
	}
)

// Execute runs op and reports its outcome. It never panics on operation
// errors and never returns a failed outcome for install_external_tool.
func (e *Executor) Execute(ctx context.Context, op manifest.Operation) Outcome {
	logger := e.logger()
	if op.Description != "" {
		logger.Debug(op.Description, "type", op.Type)
	}

	err := e.dispatch(ctx, op)
	if err != nil {
		if errors.Is(err, fsops.ErrSourceNotFound) {
			logger.Warn("source not found", "path", filepath.Join(e.SourceRoot, op.Source))
		} else {
			logger.Error("operation failed", "type", op.Type, "error", err)
		}
		return Outcome{Op: op, Err: err}
	}
	return Outcome{Op: op, OK: true}
}

func (e *Executor) dispatch(ctx context.Context, op manifest.Operation) error {
	src := filepath.Join(e.SourceRoot, op.Source)
	dst := filepath.Join(e.InstallRoot, op.Target)
	logger := e.logger()

	switch op.Type {
	case manifest.OpCopyFile:
		if err := fsops.CopyFile(src, dst); err != nil {
			return err
		}
		logger.Debug("copied file", "src", op.Source, "dst", dst)
		return nil

	case manifest.OpCopyDir:
		if err := fsops.CopyDir(src, dst); err != nil {
			return err
		}
		logger.Debug("copied directory", "src", op.Source, "dst", dst)
		return nil

	case manifest.OpMergeDir:
		return fsops.MergeDir(src, dst, func(kind, path string) {
			logger.Debug("merged", "kind", kind, "path", path)
		})

	case manifest.OpBuildBinary:
		if e.Provisioner == nil {
			return errors.New("no provisioner configured")
		}
		p, err := e.Provisioner.Provision(ctx, op)
		if err != nil {
			return err
		}
		logger.Debug("binary ready", "path", p.Path, "on_path", p.OnPath, "advice", p.Advice)
		return nil

	case manifest.OpInstallExternalTool:
		e.installExternalTool(ctx)
		return nil

	case manifest.OpInstallAceTool:
		e.installAceTool(ctx)
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}
}

// installExternalTool asks the selector for a provider and installs it.
// Every failure degrades to provider "none" in the generated configuration.
func (e *Executor) installExternalTool(ctx context.Context) {
	logger := e.logger()

	var sel *provider.Selection
	if e.Selector != nil {
		var err error
		sel, err = e.Selector.Select(ctx, "")
		if err != nil {
			logger.Warn("provider selection failed; skipping MCP setup", "error", err)
			e.writeCCGConfig(ccgconfig.ProviderNone)
			return
		}
	}
	if sel == nil || sel.Provider == provider.None {
		logger.Info("skipping MCP setup; configure it later by rerunning the installer")
		e.writeCCGConfig(ccgconfig.ProviderNone)
		return
	}

	if !e.installProvider(ctx, *sel) {
		e.writeCCGConfig(ccgconfig.ProviderNone)
		return
	}
	e.writeCCGConfig(sel.Provider.String())
}

// installAceTool registers ace-tool without offering a provider choice. A
// failure leaves the generated configuration untouched.
func (e *Executor) installAceTool(ctx context.Context) {
	sel := &provider.Selection{Provider: provider.AceTool}
	if e.Selector != nil {
		chosen, err := e.Selector.Select(ctx, provider.AceTool)
		if err != nil {
			e.logger().Warn("could not read ace-tool credentials; configure the MCP server later", "error", err)
			return
		}
		if chosen != nil {
			sel = chosen
		}
	}

	if e.installProvider(ctx, *sel) {
		e.writeCCGConfig(provider.AceTool.String())
	}
}

func (e *Executor) installProvider(ctx context.Context, sel provider.Selection) bool {
	logger := e.logger()
	if e.Providers == nil {
		logger.Warn("no provider installer configured", "provider", sel.Provider)
		return false
	}

	reg, err := e.Providers.Install(ctx, sel)
	if err != nil {
		logger.Warn("MCP provider setup failed; configure it later", "provider", sel.Provider, "error", err)
		return false
	}
	logger.Info("registered MCP server", "id", reg.ServerID)
	return true
}

// writeCCGConfig is advisory: failures are logged only.
func (e *Executor) writeCCGConfig(providerName string) {
	if e.CCGConfig == nil {
		return
	}
	path, err := e.CCGConfig.Write(providerName)
	if err != nil {
		e.logger().Warn("could not write CCG configuration", "error", err)
		return
	}
	e.logger().Debug("wrote CCG configuration", "path", path, "provider", providerName)
}

func (e *Executor) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}
