// SPDX-License-Identifier: MPL-2.0

// Package installer runs manifest modules: the Executor dispatches single
// operations and the Installer aggregates their outcomes per module.
//
// Execution is sequential and in manifest order. Operation failures are
// captured in Outcomes and never abort the remaining operations; the only
// verdict is whether every operation of every selected module succeeded.
package installer
