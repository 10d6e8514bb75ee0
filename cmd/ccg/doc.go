// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the ccg command tree: install, module list and the
// config subcommands.
package cmd
