// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ccg-dev/ccg/internal/fsops"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/manifest"
	"github.com/ccg-dev/ccg/internal/platform"
)

// ErrNoBinaryName is returned for a build_binary operation without a binary
// name.
var ErrNoBinaryName = errors.New("operation has no binary name")

// Resolver provisions the binary described by a build_binary operation.
type Resolver struct {
	SourceRoot string
	Key        platform.Key
	Toolchain  *Toolchain
	Installer  *Installer
	Logger     *log.Logger
}

// Provision resolves op's binary and installs it. A prebuilt artifact for
// r.Key short-circuits the build, and the toolchain is never invoked in that
// case. When the toolchain is missing nothing is written to any candidate
// directory.
func (r *Resolver) Provision(ctx context.Context, op manifest.Operation) (Placement, error) {
	logger := r.logger()

	if op.Binary == "" {
		return Placement{}, ErrNoBinaryName
	}

	binaryPath, ok := FindPrebuilt(r.SourceRoot, op.Binary, r.Key)
	if ok {
		logger.Debug("using prebuilt binary", "path", binaryPath)
	} else {
		logger.Debug("no prebuilt binary, building from source", "platform", r.Key.String())

		built, err := r.build(ctx, op)
		if err != nil {
			return Placement{}, err
		}
		binaryPath = built
	}

	return r.Installer.Install(binaryPath, op.Binary)
}

func (r *Resolver) build(ctx context.Context, op manifest.Operation) (string, error) {
	srcDir := filepath.Join(r.SourceRoot, op.Source)
	if !fsops.Exists(srcDir) {
		return "", issue.NewErrorContext().
			WithOperation("build " + op.Binary).
			WithResource(srcDir).
			WithIssue(issue.SourceNotFoundId).
			Wrap(fmt.Errorf("%w: %s", fsops.ErrSourceNotFound, srcDir)).
			BuildError()
	}

	version, err := r.Toolchain.Available(ctx)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("build " + op.Binary).
			WithIssue(issue.GoToolchainMissingId).
			WithSuggestion("Install Go: https://go.dev/doc/install").
			Wrap(err).
			BuildError()
	}
	r.Toolchain.CheckGoDirective(srcDir, version)

	out, err := r.Toolchain.Build(ctx, srcDir, op.Binary)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("build " + op.Binary).
			WithResource(srcDir).
			WithIssue(issue.BuildFailedId).
			Wrap(err).
			BuildError()
	}
	return out, nil
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
