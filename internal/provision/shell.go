// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/ccg-dev/ccg/internal/platform"
)

// ExportLine returns the command a user runs to add dir to PATH.
func ExportLine(dir, goos string) string {
	if goos == platform.Windows {
		return fmt.Sprintf(`setx PATH "%%PATH%%;%s"`, dir)
	}

	quoted, err := syntax.Quote(dir, syntax.LangBash)
	if err != nil || quoted == dir {
		return fmt.Sprintf(`export PATH="%s:$PATH"`, dir)
	}
	return fmt.Sprintf(`export PATH=%s:"$PATH"`, quoted)
}

// RCFile returns the shell startup file to edit: ~/.zshrc for zsh users,
// ~/.bashrc otherwise. It returns "" on Windows.
func RCFile(env Env) string {
	if env.GOOS == platform.Windows {
		return ""
	}
	if strings.Contains(env.Shell, "zsh") {
		return filepath.Join(env.Home, ".zshrc")
	}
	return filepath.Join(env.Home, ".bashrc")
}

// ConfigureShell appends the export line for dir to the user's rc file
// unless the file already names dir as a whole PATH entry. It reports the file and whether it
// was changed.
func ConfigureShell(env Env, dir string) (string, bool, error) {
	rc := RCFile(env)
	if rc == "" {
		return "", false, nil
	}

	existing, err := os.ReadFile(rc)
	if err != nil && !os.IsNotExist(err) {
		return rc, false, fmt.Errorf("failed to read %s: %w", rc, err)
	}
	if mentionsDir(string(existing), dir) {
		return rc, false, nil
	}

	f, err := os.OpenFile(rc, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return rc, false, fmt.Errorf("failed to open %s: %w", rc, err)
	}
	defer func() { _ = f.Close() }()

	block := "\n# Added by ccg\n" + ExportLine(dir, env.GOOS) + "\n"
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		block = "\n" + block
	}
	if _, err := f.WriteString(block); err != nil {
		return rc, false, fmt.Errorf("failed to write %s: %w", rc, err)
	}
	return rc, true, nil
}

// pathDelims are the characters that can end or begin a PATH entry in an
// rc file line.
const pathDelims = ":;\"' \t\r\n="

// mentionsDir reports whether content contains dir as a complete entry, so
// /home/u/.local/bin does not match /home/u/.local/bin2.
func mentionsDir(content, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(content[from:], dir)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(dir)
		from = start + 1

		if start > 0 && !strings.ContainsRune(pathDelims, rune(content[start-1])) {
			continue
		}
		rest := strings.TrimPrefix(content[end:], "/")
		if rest == "" || strings.ContainsRune(pathDelims, rune(rest[0])) {
			return true
		}
	}
}
