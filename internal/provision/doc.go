// SPDX-License-Identifier: MPL-2.0

// Package provision resolves a helper binary for the host and installs it
// onto the executable search path.
//
// Resolution is a short state machine: a prebuilt artifact matching the
// host platform key is preferred; otherwise the binary is built from source
// with the Go toolchain. The result is then copied into the first usable
// candidate directory. Ambient state (home, PATH, OS) is passed in through
// Env rather than read from the process, so every step can be exercised in
// tests.
package provision
