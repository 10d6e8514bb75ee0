// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/ccg-dev/ccg/internal/platform"
)

const (
	// DefaultBuildTimeout bounds a single go build invocation.
	DefaultBuildTimeout = 5 * time.Minute

	// waitDelay bounds how long Wait keeps reading output after the build
	// is killed, in case a child process still holds the pipes.
	waitDelay = 2 * time.Second
)

var (
	// ErrToolchainMissing is returned when the go command cannot be run.
	ErrToolchainMissing = errors.New("go toolchain not found")

	// ErrBuildFailed is returned when go build exits nonzero.
	ErrBuildFailed = errors.New("build failed")

	// ErrBuildTimeout is returned when go build exceeds the build timeout.
	ErrBuildTimeout = errors.New("build timed out")

	// ErrBuildOutputMissing is returned when go build reports success but
	// the expected executable is absent.
	ErrBuildOutputMissing = errors.New("build output missing")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BuildError describes a failed build. Stderr holds the compiler output
	// so it can be shown to the user verbatim.
	BuildError struct {
		Dir    string
		Stderr string
		Err    error
	}

	// ToolchainOption configures a Toolchain.
	ToolchainOption func(*Toolchain)

	// Toolchain runs the go command.
	Toolchain struct {
		execCommand  ExecCommandFunc
		goos         string
		buildTimeout time.Duration
		logger       *log.Logger
	}
)

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s in %s", e.Err, e.Dir)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ":\n" + stderr
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) ToolchainOption {
	return func(t *Toolchain) {
		t.execCommand = fn
	}
}

// WithGOOS sets the target OS used to name build output.
func WithGOOS(goos string) ToolchainOption {
	return func(t *Toolchain) {
		t.goos = goos
	}
}

// WithBuildTimeout overrides DefaultBuildTimeout. Non-positive values are
// ignored.
func WithBuildTimeout(d time.Duration) ToolchainOption {
	return func(t *Toolchain) {
		if d > 0 {
			t.buildTimeout = d
		}
	}
}

// WithToolchainLogger sets the logger used for advisories.
func WithToolchainLogger(l *log.Logger) ToolchainOption {
	return func(t *Toolchain) {
		t.logger = l
	}
}

// NewToolchain creates a Toolchain for the host.
func NewToolchain(opts ...ToolchainOption) *Toolchain {
	t := &Toolchain{
		execCommand:  exec.CommandContext,
		goos:         runtime.GOOS,
		buildTimeout: DefaultBuildTimeout,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Available runs "go version" and returns the toolchain version (e.g.
// "1.24.1"). Any failure to run the command, or a nonzero exit, means the
// toolchain is absent.
func (t *Toolchain) Available(ctx context.Context) (string, error) {
	cmd := t.execCommand(ctx, "go", "version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolchainMissing, err)
	}
	return parseGoVersion(string(out)), nil
}

// Build runs "go build -o <binary> ." in dir and returns the path of the
// produced executable. The Windows suffix is added to the output name when
// building for Windows.
func (t *Toolchain) Build(ctx context.Context, dir, binary string) (string, error) {
	output := platform.ExecutableName(binary, t.goos)

	buildCtx, cancel := context.WithTimeout(ctx, t.buildTimeout)
	defer cancel()

	cmd := t.execCommand(buildCtx, "go", "build", "-o", output, ".")
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("building", "dir", dir, "output", output)

	if err := cmd.Run(); err != nil {
		if errors.Is(buildCtx.Err(), context.DeadlineExceeded) {
			return "", &BuildError{Dir: dir, Stderr: stderr.String(), Err: ErrBuildTimeout}
		}
		return "", &BuildError{Dir: dir, Stderr: stderr.String(), Err: fmt.Errorf("%w: %w", ErrBuildFailed, err)}
	}

	path := filepath.Join(dir, output)
	if _, err := os.Stat(path); err != nil {
		return "", &BuildError{Dir: dir, Err: fmt.Errorf("%w: %s", ErrBuildOutputMissing, output)}
	}
	return path, nil
}

// CheckGoDirective compares the toolchain version with the go directive in
// dir/go.mod and logs an advisory when the toolchain is older. It returns
// the required version ("" when unknown).
func (t *Toolchain) CheckGoDirective(dir, version string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || f.Go == nil {
		return ""
	}

	required := f.Go.Version
	have, want := "v"+version, "v"+required
	if semver.IsValid(have) && semver.IsValid(want) && semver.Compare(have, want) < 0 {
		t.logger.Warn("go toolchain may be too old for this module",
			"have", version, "required", required)
	}
	return required
}

// parseGoVersion extracts "1.24.1" from "go version go1.24.1 linux/amd64".
func parseGoVersion(out string) string {
	fields := strings.Fields(out)
	if len(fields) >= 3 && fields[0] == "go" && fields[1] == "version" {
		return strings.TrimPrefix(fields[2], "go")
	}
	return strings.TrimSpace(out)
}
