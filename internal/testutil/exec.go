// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// missingCommand is a path that never exists, used to simulate an
// executable that is not installed.
const missingCommand = "/nonexistent/ccg-test-missing-command"

type (
	// CommandRecorder replaces an exec seam in tests. Every invocation is
	// recorded and answered by re-running the test binary as a helper
	// process (see HelperProcess) configured from a Response.
	//
	// Each package using it needs:
	//
	//	func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }
	CommandRecorder struct {
		mu          sync.Mutex
		invocations []Invocation

		// Responses are keyed by "name" or "name firstArg"; the longer key
		// wins.
		Responses map[string]Response
		// Default answers commands with no matching entry.
		Default Response
	}

	// Invocation is a single recorded command.
	Invocation struct {
		Name string
		Args []string
	}

	// Response configures the helper process for one command.
	Response struct {
		ExitCode int
		Stdout   string
		Stderr   string
		// WriteFile is created (relative to the command's Dir) before exit.
		WriteFile string
		// Sleep delays the exit, for timeout tests.
		Sleep time.Duration
		// Orphan starts a grandchild that holds the helper's stdout and
		// stderr open for this long, like a package binary run by npx.
		Orphan time.Duration
		// Missing makes the command fail to start, as if not installed.
		Missing bool
	}
)

// NewCommandRecorder returns a recorder whose default response is a
// successful, silent exit.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{Responses: make(map[string]Response)}
}

// On registers the response for key ("name" or "name firstArg").
func (r *CommandRecorder) On(key string, resp Response) *CommandRecorder {
	r.Responses[key] = resp
	return r
}

// CommandContext has the signature of exec.CommandContext.
func (r *CommandRecorder) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	r.mu.Lock()
	r.invocations = append(r.invocations, Invocation{Name: name, Args: args})
	resp := r.lookup(name, args)
	r.mu.Unlock()

	if resp.Missing {
		//nolint:gosec // fixed path
		return exec.CommandContext(ctx, missingCommand)
	}

	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	//nolint:gosec // TestHelperProcess is a test-only pattern
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{
		"GO_WANT_HELPER_PROCESS=1",
		fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", resp.ExitCode),
		"GO_HELPER_STDOUT=" + resp.Stdout,
		"GO_HELPER_STDERR=" + resp.Stderr,
		"GO_HELPER_WRITE_FILE=" + resp.WriteFile,
		"GO_HELPER_SLEEP=" + resp.Sleep.String(),
		"GO_HELPER_ORPHAN=" + resp.Orphan.String(),
	}
	return cmd
}

func (r *CommandRecorder) lookup(name string, args []string) Response {
	if len(args) > 0 {
		if resp, ok := r.Responses[name+" "+args[0]]; ok {
			return resp
		}
	}
	if resp, ok := r.Responses[name]; ok {
		return resp
	}
	return r.Default
}

// Invocations returns a copy of the recorded invocations.
func (r *CommandRecorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

// Called reports whether a command whose "name args..." line starts with
// prefix was invoked.
func (r *CommandRecorder) Called(prefix string) bool {
	for _, inv := range r.Invocations() {
		line := strings.Join(append([]string{inv.Name}, inv.Args...), " ")
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// HelperProcess implements the helper side of CommandRecorder. It returns
// immediately unless the process was started by a recorder.
func HelperProcess() {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_ORPHAN")); err == nil && d > 0 {
		startOrphan(d)
	}

	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil && d > 0 {
		time.Sleep(d)
	}

	if path := os.Getenv("GO_HELPER_WRITE_FILE"); path != "" {
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode)
	}
	os.Exit(exitCode)
}

// startOrphan launches a helper that outlives this process while sharing
// its stdout and stderr. It is not waited for.
func startOrphan(d time.Duration) {
	//nolint:gosec // TestHelperProcess is a test-only pattern
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", "orphan")
	cmd.Env = []string{
		"GO_WANT_HELPER_PROCESS=1",
		"GO_HELPER_SLEEP=" + d.String(),
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
