// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ccg-dev/ccg/internal/fsops"
	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/platform"
)

// ErrNoInstallDir is returned when no candidate directory accepted the
// binary.
var ErrNoInstallDir = errors.New("no writable install directory")

type (
	// Env is the ambient state consulted while installing. Use EnvFromOS for
	// the running process.
	Env struct {
		GOOS         string
		Home         string
		PATH         string
		LocalAppData string
		// Shell is the login shell ($SHELL), used to pick an rc file.
		Shell string
	}

	// Placement is where a binary ended up.
	Placement struct {
		Dir    string
		Path   string
		OnPath bool
		// Advice is set when Dir is not on PATH and the shell profile was
		// not updated. It carries the export line to add by hand.
		Advice error
	}

	// Installer copies binaries into the first usable candidate directory.
	Installer struct {
		Env Env
		// ConfigurePath appends an export line to the shell rc file when the
		// chosen directory is not on PATH.
		ConfigurePath bool
		Logger        *log.Logger
	}
)

// EnvFromOS captures Env from the running process.
func EnvFromOS() Env {
	home, _ := os.UserHomeDir()
	return Env{
		GOOS:         runtime.GOOS,
		Home:         home,
		PATH:         os.Getenv("PATH"),
		LocalAppData: os.Getenv("LOCALAPPDATA"),
		Shell:        os.Getenv("SHELL"),
	}
}

// Candidates returns the install directories in preference order. The
// first entry is always attempted; the rest only when they already exist.
func Candidates(env Env, program string) []string {
	userBin := filepath.Join(env.Home, ".local", "bin")
	if env.GOOS != platform.Windows {
		return []string{userBin, "/usr/local/bin"}
	}

	dirs := []string{userBin}
	if env.LocalAppData != "" {
		dirs = append(dirs, filepath.Join(env.LocalAppData, "Programs", strings.TrimSuffix(program, platform.ExeSuffix)))
	}
	return append(dirs, filepath.Join(env.Home, "bin"))
}

// Install copies binaryPath into the first candidate directory that accepts
// it, naming the copy targetName (with the Windows suffix where needed).
// Permission errors and other copy failures move on to the next candidate.
func (i *Installer) Install(binaryPath, targetName string) (Placement, error) {
	logger := i.logger()
	finalName := platform.ExecutableName(targetName, i.Env.GOOS)

	for idx, dir := range Candidates(i.Env, targetName) {
		if idx > 0 && !fsops.Exists(dir) {
			continue
		}

		target := filepath.Join(dir, finalName)
		if err := i.place(binaryPath, dir, target); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				logger.Debug("permission denied, trying next directory", "dir", dir)
			} else {
				logger.Debug("install failed, trying next directory", "dir", dir, "error", err)
			}
			continue
		}

		p := Placement{Dir: dir, Path: target, OnPath: i.onPath(dir)}
		logger.Info("installed binary", "path", target)
		if !p.OnPath {
			p.Advice = i.advisePath(dir)
		}
		return p, nil
	}

	suggestion := fmt.Sprintf("sudo cp %s /usr/local/bin/", binaryPath)
	if i.Env.GOOS == platform.Windows {
		suggestion = fmt.Sprintf("Copy %s to a directory on your PATH", binaryPath)
	}
	return Placement{}, issue.NewErrorContext().
		WithOperation("install " + finalName).
		WithIssue(issue.NoInstallDirId).
		WithSuggestion(suggestion).
		Wrap(ErrNoInstallDir).
		BuildError()
}

func (i *Installer) place(src, dir, target string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := fsops.CopyFile(src, target); err != nil {
		return err
	}
	if i.Env.GOOS != platform.Windows {
		return os.Chmod(target, 0o755)
	}
	return nil
}

func (i *Installer) onPath(dir string) bool {
	sep := ":"
	if i.Env.GOOS == platform.Windows {
		sep = ";"
	}
	want := filepath.Clean(dir)
	for _, entry := range strings.Split(i.Env.PATH, sep) {
		if entry != "" && filepath.Clean(entry) == want {
			return true
		}
	}
	return false
}

// advisePath updates the shell profile when ConfigurePath is set, and
// otherwise returns the manual instructions for putting dir on PATH.
func (i *Installer) advisePath(dir string) error {
	logger := i.logger()
	line := ExportLine(dir, i.Env.GOOS)

	if i.ConfigurePath {
		rc, changed, err := ConfigureShell(i.Env, dir)
		switch {
		case err != nil:
			logger.Warn("could not update shell profile", "file", rc, "error", err)
		case changed:
			logger.Info("added install directory to PATH; restart your shell", "file", rc)
			return nil
		case rc != "":
			logger.Info("shell profile already references install directory", "file", rc)
			return nil
		}
	}

	logger.Warn(dir+" may not be on PATH", "add", line)
	return issue.NewErrorContext().
		WithOperation("add install directory to PATH").
		WithResource(dir).
		WithIssue(issue.PathNotConfiguredId).
		WithSuggestion(line).
		BuildError()
}

func (i *Installer) logger() *log.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return log.Default()
}
