// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/ccg-dev/ccg/internal/fsops"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/manifest"
	"github.com/ccg-dev/ccg/internal/platform"
	"github.com/ccg-dev/ccg/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
}

func TestPrebuiltName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, arch string
		want       string
	}{
		{"linux", "x86_64", "codeagent-wrapper-linux-amd64"},
		{"darwin", "aarch64", "codeagent-wrapper-darwin-arm64"},
		{"windows", "AMD64", "codeagent-wrapper-windows-amd64.exe"},
	}
	for _, tt := range tests {
		if got := PrebuiltName("codeagent-wrapper", platform.NewKey(tt.goos, tt.arch)); got != tt.want {
			t.Errorf("PrebuiltName(%s/%s) = %q, want %q", tt.goos, tt.arch, got, tt.want)
		}
	}
}

func TestFindPrebuilt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"bin/codeagent-wrapper-linux-arm64": "elf"})

	if path, ok := FindPrebuilt(root, "codeagent-wrapper", platform.NewKey("linux", "aarch64")); !ok {
		t.Error("expected linux/arm64 artifact to be found")
	} else if filepath.Base(path) != "codeagent-wrapper-linux-arm64" {
		t.Errorf("path = %s", path)
	}

	if _, ok := FindPrebuilt(root, "codeagent-wrapper", platform.NewKey("linux", "amd64")); ok {
		t.Error("linux/amd64 artifact should not be found")
	}

	testutil.WriteTree(t, root, map[string]string{"bin/codeagent-wrapper-plan9-arm64": "x"})
	if _, ok := FindPrebuilt(root, "codeagent-wrapper", platform.NewKey("plan9", "arm64")); ok {
		t.Error("unsupported OS should never match a prebuilt artifact")
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  Env
		want []string
	}{
		{
			name: "unix",
			env:  Env{GOOS: "linux", Home: "/home/u"},
			want: []string{"/home/u/.local/bin", "/usr/local/bin"},
		},
		{
			name: "windows",
			env:  Env{GOOS: "windows", Home: "/users/u", LocalAppData: "/users/u/AppData/Local"},
			want: []string{"/users/u/.local/bin", "/users/u/AppData/Local/Programs/codeagent-wrapper", "/users/u/bin"},
		},
		{
			name: "windows without LOCALAPPDATA",
			env:  Env{GOOS: "windows", Home: "/users/u"},
			want: []string{"/users/u/.local/bin", "/users/u/bin"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Candidates(tt.env, "codeagent-wrapper.exe")
			for i := range got {
				got[i] = filepath.ToSlash(got[i])
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func writeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "built-binary")
	if err := os.WriteFile(path, []byte("binary"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInstall_FirstCandidate(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	bin := writeBinary(t, t.TempDir())
	userBin := filepath.Join(home, ".local", "bin")

	inst := &Installer{
		Env:    Env{GOOS: "linux", Home: home, PATH: "/usr/bin:" + userBin},
		Logger: quietLogger(),
	}
	p, err := inst.Install(bin, "codeagent-wrapper")
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	want := Placement{Dir: userBin, Path: filepath.Join(userBin, "codeagent-wrapper"), OnPath: true}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Placement mismatch (-want +got):\n%s", diff)
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestInstall_NotOnPath(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	inst := &Installer{
		Env:    Env{GOOS: "linux", Home: home, PATH: "/usr/bin"},
		Logger: quietLogger(),
	}
	p, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if err != nil {
		t.Fatal(err)
	}
	if p.OnPath {
		t.Error("OnPath should be false when the directory is not listed in PATH")
	}
	if issue.IssueOf(p.Advice) != issue.PathNotConfiguredId {
		t.Errorf("advice issue = %d, want PathNotConfiguredId", issue.IssueOf(p.Advice))
	}
	var ae *issue.ActionableError
	if !errors.As(p.Advice, &ae) || !slices.Contains(ae.Suggestions, ExportLine(p.Dir, "linux")) {
		t.Errorf("advice = %v, want the export line as a suggestion", p.Advice)
	}
}

func TestInstall_ConfiguredPathHasNoAdvice(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	inst := &Installer{
		Env:           Env{GOOS: "linux", Home: home, PATH: "/usr/bin", Shell: "/bin/bash"},
		ConfigurePath: true,
		Logger:        quietLogger(),
	}
	p, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if err != nil {
		t.Fatal(err)
	}
	if p.Advice != nil {
		t.Errorf("Advice = %v, want nil after the shell profile was updated", p.Advice)
	}
	if rc := testutil.MustReadFile(t, filepath.Join(home, ".bashrc")); !strings.Contains(rc, ExportLine(p.Dir, "linux")) {
		t.Errorf(".bashrc missing export line:\n%s", rc)
	}
}

// blockFirstCandidate turns ~/.local/bin into a regular file so creating it
// as a directory fails.
func blockFirstCandidate(t *testing.T, home string) {
	t.Helper()
	testutil.WriteTree(t, home, map[string]string{".local/bin": "not a directory"})
}

func TestInstall_AdvancesPastFailure(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	appData := t.TempDir()
	blockFirstCandidate(t, home)
	programs := filepath.Join(appData, "Programs", "codeagent-wrapper")
	testutil.MustMkdirAll(t, programs, 0o755)

	inst := &Installer{
		Env:    Env{GOOS: "windows", Home: home, LocalAppData: appData, PATH: programs},
		Logger: quietLogger(),
	}
	p, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if p.Path != filepath.Join(programs, "codeagent-wrapper.exe") {
		t.Errorf("Path = %s", p.Path)
	}
	if !p.OnPath {
		t.Error("OnPath should be true with ';'-separated PATH containing the dir")
	}
}

func TestInstall_AdvancesPastUnwritableDir(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	home := t.TempDir()
	appData := t.TempDir()
	userBin := filepath.Join(home, ".local", "bin")
	testutil.MustMkdirAll(t, userBin, 0o755)
	if err := os.Chmod(userBin, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(userBin, 0o755) })
	programs := filepath.Join(appData, "Programs", "codeagent-wrapper")
	testutil.MustMkdirAll(t, programs, 0o755)

	inst := &Installer{
		Env:    Env{GOOS: "windows", Home: home, LocalAppData: appData, PATH: programs},
		Logger: quietLogger(),
	}
	p, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if p.Dir != programs {
		t.Errorf("Dir = %s, want %s", p.Dir, programs)
	}
	if fsops.Exists(filepath.Join(userBin, "codeagent-wrapper.exe")) {
		t.Error("binary written into the read-only directory")
	}
}

func TestInstall_SkipsAbsentLaterCandidates(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	blockFirstCandidate(t, home)
	testutil.MustMkdirAll(t, filepath.Join(home, "bin"), 0o755)

	inst := &Installer{
		Env:    Env{GOOS: "windows", Home: home, LocalAppData: filepath.Join(home, "missing")},
		Logger: quietLogger(),
	}
	p, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if p.Dir != filepath.Join(home, "bin") {
		t.Errorf("Dir = %s, want ~/bin", p.Dir)
	}
	if fsops.Exists(filepath.Join(home, "missing")) {
		t.Error("absent later candidate must not be created")
	}
}

func TestInstall_Exhausted(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	blockFirstCandidate(t, home)

	inst := &Installer{
		Env:    Env{GOOS: "windows", Home: home},
		Logger: quietLogger(),
	}
	_, err := inst.Install(writeBinary(t, t.TempDir()), "codeagent-wrapper")
	if !errors.Is(err, ErrNoInstallDir) {
		t.Fatalf("error = %v, want ErrNoInstallDir", err)
	}
	if issue.IssueOf(err) != issue.NoInstallDirId {
		t.Errorf("issue = %d, want NoInstallDirId", issue.IssueOf(err))
	}
}

func TestExportLine(t *testing.T) {
	t.Parallel()

	if got, want := ExportLine("/home/u/.local/bin", "linux"), `export PATH="/home/u/.local/bin:$PATH"`; got != want {
		t.Errorf("ExportLine() = %q, want %q", got, want)
	}
	if got := ExportLine("/tmp/my dir", "darwin"); !strings.Contains(got, `'/tmp/my dir'`) {
		t.Errorf("ExportLine() with space = %q, want single-quoted dir", got)
	}
	if got, want := ExportLine(`C:\bin`, "windows"), `setx PATH "%PATH%;C:\bin"`; got != want {
		t.Errorf("ExportLine(windows) = %q, want %q", got, want)
	}
}

func TestConfigureShell(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	env := Env{GOOS: "linux", Home: home, Shell: "/usr/bin/zsh"}
	testutil.WriteTree(t, home, map[string]string{".zshrc": "alias ll='ls -l'"})
	dir := filepath.Join(home, ".local", "bin")

	rc, changed, err := ConfigureShell(env, dir)
	if err != nil {
		t.Fatalf("ConfigureShell() error: %v", err)
	}
	if rc != filepath.Join(home, ".zshrc") || !changed {
		t.Errorf("ConfigureShell() = %s, %v", rc, changed)
	}
	content := testutil.MustReadFile(t, rc)
	if !strings.HasPrefix(content, "alias ll='ls -l'\n") || !strings.Contains(content, ExportLine(dir, "linux")) {
		t.Errorf("unexpected rc content:\n%s", content)
	}

	if _, changed, err := ConfigureShell(env, dir); err != nil || changed {
		t.Errorf("second ConfigureShell() changed=%v err=%v, want no change", changed, err)
	}

	bash := Env{GOOS: "linux", Home: home, Shell: "/bin/bash"}
	if got := RCFile(bash); got != filepath.Join(home, ".bashrc") {
		t.Errorf("RCFile(bash) = %s", got)
	}
	if got := RCFile(Env{GOOS: "windows", Home: home}); got != "" {
		t.Errorf("RCFile(windows) = %q, want empty", got)
	}
}

func TestConfigureShell_MatchesWholeEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rc          string
		wantChanged bool
	}{
		{name: "empty", rc: "", wantChanged: true},
		{name: "exact export line", rc: `export PATH="/home/u/.local/bin:$PATH"` + "\n", wantChanged: false},
		{name: "entry in the middle", rc: `PATH=/opt/bin:/home/u/.local/bin:/usr/bin` + "\n", wantChanged: false},
		{name: "trailing slash", rc: `export PATH=$PATH:/home/u/.local/bin/` + "\n", wantChanged: false},
		{name: "longer sibling", rc: `export PATH="/home/u/.local/bin2:$PATH"` + "\n", wantChanged: true},
		{name: "nested subdirectory", rc: `export PATH="/home/u/.local/bin/extra:$PATH"` + "\n", wantChanged: true},
		{name: "parent prefix", rc: `export PATH="/srv/home/u/.local/bin:$PATH"` + "\n", wantChanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			home := t.TempDir()
			testutil.WriteTree(t, home, map[string]string{".bashrc": tt.rc})
			env := Env{GOOS: "linux", Home: home, Shell: "/bin/bash"}

			_, changed, err := ConfigureShell(env, "/home/u/.local/bin")
			if err != nil {
				t.Fatalf("ConfigureShell() error: %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
		})
	}
}

func TestToolchain_Available(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder().
		On("go version", testutil.Response{Stdout: "go version go1.24.1 linux/amd64\n"})
	tc := NewToolchain(WithExecCommand(rec.CommandContext), WithToolchainLogger(quietLogger()))

	v, err := tc.Available(context.Background())
	if err != nil {
		t.Fatalf("Available() error: %v", err)
	}
	if v != "1.24.1" {
		t.Errorf("version = %q, want 1.24.1", v)
	}

	missing := testutil.NewCommandRecorder().On("go", testutil.Response{Missing: true})
	tc = NewToolchain(WithExecCommand(missing.CommandContext))
	if _, err := tc.Available(context.Background()); !errors.Is(err, ErrToolchainMissing) {
		t.Errorf("error = %v, want ErrToolchainMissing", err)
	}

	failing := testutil.NewCommandRecorder().On("go", testutil.Response{ExitCode: 1})
	tc = NewToolchain(WithExecCommand(failing.CommandContext))
	if _, err := tc.Available(context.Background()); !errors.Is(err, ErrToolchainMissing) {
		t.Errorf("nonzero exit error = %v, want ErrToolchainMissing", err)
	}
}

func TestToolchain_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		goos     string
		resp     testutil.Response
		timeout  time.Duration
		wantErr  error
		wantName string
	}{
		{
			name:     "success",
			goos:     "linux",
			resp:     testutil.Response{WriteFile: "codeagent-wrapper"},
			wantName: "codeagent-wrapper",
		},
		{
			name:     "windows suffix",
			goos:     "windows",
			resp:     testutil.Response{WriteFile: "codeagent-wrapper.exe"},
			wantName: "codeagent-wrapper.exe",
		},
		{
			name:    "compile error",
			goos:    "linux",
			resp:    testutil.Response{ExitCode: 1, Stderr: "main.go:3:1: syntax error"},
			wantErr: ErrBuildFailed,
		},
		{
			name:    "output missing",
			goos:    "linux",
			resp:    testutil.Response{},
			wantErr: ErrBuildOutputMissing,
		},
		{
			name:    "timeout",
			goos:    "linux",
			resp:    testutil.Response{Sleep: 10 * time.Second},
			timeout: 200 * time.Millisecond,
			wantErr: ErrBuildTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			rec := testutil.NewCommandRecorder().On("go build", tt.resp)
			tc := NewToolchain(
				WithExecCommand(rec.CommandContext),
				WithGOOS(tt.goos),
				WithBuildTimeout(tt.timeout),
				WithToolchainLogger(quietLogger()),
			)

			out, err := tc.Build(context.Background(), dir, "codeagent-wrapper")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if out != filepath.Join(dir, tt.wantName) {
				t.Errorf("output = %s, want %s", out, tt.wantName)
			}

			inv := rec.Invocations()
			if diff := cmp.Diff([]string{"build", "-o", tt.wantName, "."}, inv[0].Args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolchain_BuildTimeoutWithLingeringChild(t *testing.T) {
	t.Parallel()

	// The killed build leaves a child holding its output pipes.
	rec := testutil.NewCommandRecorder().
		On("go build", testutil.Response{Sleep: 10 * time.Second, Orphan: 8 * time.Second})
	tc := NewToolchain(
		WithExecCommand(rec.CommandContext),
		WithBuildTimeout(200*time.Millisecond),
		WithToolchainLogger(quietLogger()),
	)

	start := time.Now()
	_, err := tc.Build(context.Background(), t.TempDir(), "codeagent-wrapper")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBuildTimeout) {
		t.Fatalf("error = %v, want ErrBuildTimeout", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Build() returned after %s, want the timeout plus wait delay", elapsed)
	}
}

func TestToolchain_BuildErrorCarriesStderr(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder().
		On("go build", testutil.Response{ExitCode: 2, Stderr: "undefined: foo"})
	tc := NewToolchain(WithExecCommand(rec.CommandContext), WithToolchainLogger(quietLogger()))

	_, err := tc.Build(context.Background(), t.TempDir(), "x")
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error = %T, want *BuildError", err)
	}
	if !strings.Contains(be.Stderr, "undefined: foo") {
		t.Errorf("Stderr = %q", be.Stderr)
	}
}

func TestToolchain_CheckGoDirective(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"go.mod": "module example.com/w\n\ngo 1.30\n"})
	tc := NewToolchain(WithToolchainLogger(quietLogger()))

	if got := tc.CheckGoDirective(dir, "1.21.0"); got != "1.30" {
		t.Errorf("CheckGoDirective() = %q, want 1.30", got)
	}
	if got := tc.CheckGoDirective(t.TempDir(), "1.21.0"); got != "" {
		t.Errorf("CheckGoDirective() without go.mod = %q, want empty", got)
	}
}

func newResolver(t *testing.T, root, home string, rec *testutil.CommandRecorder) *Resolver {
	t.Helper()
	return &Resolver{
		SourceRoot: root,
		Key:        platform.NewKey("linux", "x86_64"),
		Toolchain: NewToolchain(
			WithExecCommand(rec.CommandContext),
			WithGOOS("linux"),
			WithToolchainLogger(quietLogger()),
		),
		Installer: &Installer{Env: Env{GOOS: "linux", Home: home}, Logger: quietLogger()},
		Logger:    quietLogger(),
	}
}

var buildOp = manifest.Operation{
	Type:   manifest.OpBuildBinary,
	Source: "codeagent-wrapper",
	Target: "codeagent-wrapper",
	Binary: "codeagent-wrapper",
}

func TestResolver_PrebuiltSkipsToolchain(t *testing.T) {
	t.Parallel()

	root, home := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"bin/codeagent-wrapper-linux-amd64": "prebuilt"})
	rec := testutil.NewCommandRecorder()

	p, err := newResolver(t, root, home, rec).Provision(context.Background(), buildOp)
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if got := testutil.MustReadFile(t, p.Path); got != "prebuilt" {
		t.Errorf("installed content = %q, want prebuilt", got)
	}
	if filepath.Base(p.Path) != "codeagent-wrapper" {
		t.Errorf("installed name = %s", filepath.Base(p.Path))
	}
	if n := len(rec.Invocations()); n != 0 {
		t.Errorf("toolchain invoked %d times, want 0", n)
	}
}

func TestResolver_ToolchainMissingWritesNothing(t *testing.T) {
	t.Parallel()

	root, home := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"codeagent-wrapper/main.go": "package main"})
	rec := testutil.NewCommandRecorder().On("go", testutil.Response{Missing: true})

	_, err := newResolver(t, root, home, rec).Provision(context.Background(), buildOp)
	if !errors.Is(err, ErrToolchainMissing) {
		t.Fatalf("error = %v, want ErrToolchainMissing", err)
	}
	if issue.IssueOf(err) != issue.GoToolchainMissingId {
		t.Errorf("issue = %d, want GoToolchainMissingId", issue.IssueOf(err))
	}
	if rec.Called("go build") {
		t.Error("go build must not run without a toolchain")
	}
	if fsops.Exists(filepath.Join(home, ".local", "bin")) {
		t.Error("no candidate directory should be created")
	}
}

func TestResolver_BuildsAndInstalls(t *testing.T) {
	t.Parallel()

	root, home := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"codeagent-wrapper/main.go": "package main"})
	rec := testutil.NewCommandRecorder().
		On("go version", testutil.Response{Stdout: "go version go1.24.1 linux/amd64"}).
		On("go build", testutil.Response{WriteFile: "codeagent-wrapper"})

	p, err := newResolver(t, root, home, rec).Provision(context.Background(), buildOp)
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if p.Dir != filepath.Join(home, ".local", "bin") {
		t.Errorf("Dir = %s", p.Dir)
	}
	if !rec.Called("go build -o codeagent-wrapper .") {
		t.Errorf("expected go build invocation, got %+v", rec.Invocations())
	}
}

func TestResolver_SourceMissing(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	_, err := newResolver(t, t.TempDir(), t.TempDir(), rec).Provision(context.Background(), buildOp)
	if !errors.Is(err, fsops.ErrSourceNotFound) {
		t.Fatalf("error = %v, want ErrSourceNotFound", err)
	}
	if len(rec.Invocations()) != 0 {
		t.Error("toolchain should not be checked when the source is missing")
	}
}

func TestResolver_NoBinaryName(t *testing.T) {
	t.Parallel()

	op := buildOp
	op.Binary = ""
	_, err := newResolver(t, t.TempDir(), t.TempDir(), testutil.NewCommandRecorder()).Provision(context.Background(), op)
	if !errors.Is(err, ErrNoBinaryName) {
		t.Errorf("error = %v, want ErrNoBinaryName", err)
	}
}
