// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/ccg-dev/ccg/internal/config"
	"github.com/ccg-dev/ccg/internal/provision"
)

type staticConfigProvider struct {
	cfg *config.Config
	err error
}

func (p *staticConfigProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

// testRun executes the CLI in-process with home as the home directory.
func testRun(t *testing.T, home string, cfg *config.Config, args ...string) (code int, stdout, stderr string) {
	t.Helper()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var out, errOut bytes.Buffer
	code = run(t.Context(), args, Dependencies{
		Config:     &staticConfigProvider{cfg: cfg},
		Env:        &provision.Env{GOOS: runtime.GOOS, Home: home},
		Stdout:     &out,
		Stderr:     &errOut,
		IsTerminal: func() bool { return false },
	})
	return code, out.String(), errOut.String()
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestRun_ConfigLoadError(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer
	code := run(t.Context(), []string{"install"}, Dependencies{
		Config:     &staticConfigProvider{err: context.DeadlineExceeded},
		Env:        &provision.Env{GOOS: runtime.GOOS, Home: t.TempDir()},
		Stdout:     &bytes.Buffer{},
		Stderr:     &errOut,
		IsTerminal: func() bool { return false },
	})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRun_ManifestMissing(t *testing.T) {
	t.Parallel()

	code, _, stderr := testRun(t, t.TempDir(), nil, "install", "--manifest", "does-not-exist.json")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "does-not-exist.json") {
		t.Errorf("stderr does not name the manifest:\n%s", stderr)
	}
	if !strings.Contains(stderr, "Manifest not found") {
		t.Errorf("stderr missing catalog guidance:\n%s", stderr)
	}
}
