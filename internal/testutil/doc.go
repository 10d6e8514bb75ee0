// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers for environment manipulation and
// building or inspecting small file trees.
package testutil
