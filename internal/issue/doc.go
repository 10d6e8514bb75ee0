// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling for the installer CLI.
//
// ActionableError carries the operation that failed, the resource involved and
// remediation suggestions. Issue values hold longer Markdown guidance for the
// failure classes an install can hit (missing toolchains, unwritable PATH
// directories, a malformed ~/.claude.json) and render it with glamour.
package issue
