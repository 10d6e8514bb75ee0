// SPDX-License-Identifier: MPL-2.0

// Package platform maps host OS and CPU names onto the tokens used to name
// prebuilt artifacts, and holds the small amount of Windows-specific naming
// logic the installer needs.
package platform

import (
	"strings"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"

	// ExeSuffix is appended to executable names on Windows.
	ExeSuffix = ".exe"
)

// archAliases folds the names reported by uname and by the Go runtime onto
// one canonical token per architecture.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"x64":     "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
}

// Key identifies a prebuilt artifact target, e.g. linux/amd64.
type Key struct {
	OS   string
	Arch string
}

// NewKey builds a Key from raw OS and architecture names. Unknown
// architectures pass through lowercased.
func NewKey(goos, arch string) Key {
	return Key{
		OS:   strings.ToLower(goos),
		Arch: NormalizeArch(arch),
	}
}

// NormalizeArch returns the canonical token for arch.
func NormalizeArch(arch string) string {
	a := strings.ToLower(strings.TrimSpace(arch))
	if canonical, ok := archAliases[a]; ok {
		return canonical
	}
	return a
}

// Supported reports whether prebuilt artifacts are published for this OS.
func (k Key) Supported() bool {
	switch k.OS {
	case Linux, Darwin, Windows:
		return true
	default:
		return false
	}
}

func (k Key) String() string {
	return k.OS + "-" + k.Arch
}

// ExecutableName appends the Windows executable suffix when goos is Windows
// and name does not already carry it.
func ExecutableName(name, goos string) string {
	if goos == Windows && !strings.HasSuffix(strings.ToLower(name), ExeSuffix) {
		return name + ExeSuffix
	}
	return name
}

// reservedNames cannot be used as file names on Windows, with or without an
// extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// IsWindowsReservedName reports whether name (ignoring any extension) is a
// reserved device name on Windows.
func IsWindowsReservedName(name string) bool {
	base := strings.ToUpper(name)
	if idx := strings.IndexByte(base, '.'); idx != -1 {
		base = base[:idx]
	}
	_, ok := reservedNames[base]
	return ok
}
