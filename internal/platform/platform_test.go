// SPDX-License-Identifier: MPL-2.0

package platform

import "testing"

func TestNewKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, arch string
		want       string
	}{
		{"Linux", "x86_64", "linux-amd64"},
		{"linux", "amd64", "linux-amd64"},
		{"darwin", "arm64", "darwin-arm64"},
		{"Darwin", "aarch64", "darwin-arm64"},
		{"windows", "AMD64", "windows-amd64"},
		{"linux", "riscv64", "linux-riscv64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.arch, func(t *testing.T) {
			t.Parallel()

			if got := NewKey(tt.goos, tt.arch).String(); got != tt.want {
				t.Errorf("NewKey(%q, %q) = %s, want %s", tt.goos, tt.arch, got, tt.want)
			}
		})
	}
}

func TestKey_Supported(t *testing.T) {
	t.Parallel()

	for _, goos := range []string{Linux, Darwin, Windows} {
		if !NewKey(goos, "amd64").Supported() {
			t.Errorf("%s should be supported", goos)
		}
	}
	if NewKey("plan9", "amd64").Supported() {
		t.Error("plan9 should not be supported")
	}
}

func TestExecutableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, goos, want string
	}{
		{"codeagent-wrapper", Linux, "codeagent-wrapper"},
		{"codeagent-wrapper", Windows, "codeagent-wrapper.exe"},
		{"codeagent-wrapper.exe", Windows, "codeagent-wrapper.exe"},
		{"tool.EXE", Windows, "tool.EXE"},
	}
	for _, tt := range tests {
		if got := ExecutableName(tt.name, tt.goos); got != tt.want {
			t.Errorf("ExecutableName(%q, %q) = %q, want %q", tt.name, tt.goos, got, tt.want)
		}
	}
}

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"CON", "nul", "com1.exe", "LPT9.txt"} {
		if !IsWindowsReservedName(name) {
			t.Errorf("IsWindowsReservedName(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"codeagent-wrapper", "console", "COM10"} {
		if IsWindowsReservedName(name) {
			t.Errorf("IsWindowsReservedName(%q) = true, want false", name)
		}
	}
}
