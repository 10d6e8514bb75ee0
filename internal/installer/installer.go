// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/ccg-dev/ccg/internal/manifest"
)

type (
	// ModuleReport aggregates the outcomes of one module.
	ModuleReport struct {
		Name      string
		Total     int
		Succeeded int
		Outcomes  []Outcome
	}

	// RunReport aggregates a whole run.
	RunReport struct {
		Modules []ModuleReport
	}

	// Installer runs modules through an Executor.
	Installer struct {
		Executor *Executor
		Logger   *log.Logger
	}
)

// FullySucceeded reports whether every operation succeeded.
func (r ModuleReport) FullySucceeded() bool {
	return r.Succeeded == r.Total
}

// Failed returns the number of failed operations.
func (r ModuleReport) Failed() int {
	return r.Total - r.Succeeded
}

// OK reports whether every module fully succeeded.
func (r RunReport) OK() bool {
	for _, m := range r.Modules {
		if !m.FullySucceeded() {
			return false
		}
	}
	return true
}

// EnsureRoot creates the installation root and its parents.
func EnsureRoot(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create install directory %s: %w", root, err)
	}
	return nil
}

// InstallModule executes every operation of mod in order.
func (i *Installer) InstallModule(ctx context.Context, mod *manifest.Module) ModuleReport {
	logger := i.logger()
	logger.Info("installing module", "module", mod.Name, "description", mod.Description)

	report := ModuleReport{
		Name:     mod.Name,
		Total:    len(mod.Operations),
		Outcomes: make([]Outcome, 0, len(mod.Operations)),
	}
	for _, op := range mod.Operations {
		outcome := i.Executor.Execute(ctx, op)
		if outcome.OK {
			report.Succeeded++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if report.FullySucceeded() {
		logger.Info("module installed", "module", mod.Name)
	} else {
		logger.Warn("module installed with failures", "module", mod.Name, "failed", report.Failed(), "total", report.Total)
	}
	return report
}

// Run installs modules in order. A partially failed module does not stop
// the ones after it.
func (i *Installer) Run(ctx context.Context, modules []*manifest.Module) RunReport {
	var report RunReport
	for _, mod := range modules {
		report.Modules = append(report.Modules, i.InstallModule(ctx, mod))
	}
	return report
}

func (i *Installer) logger() *log.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return log.Default()
}
