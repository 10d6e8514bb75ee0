// SPDX-License-Identifier: MPL-2.0

// Package manifest loads the declarative module manifest that drives an
// installation. A manifest is a JSON or YAML document with a top-level
// "modules" mapping; module order in the document is preserved so that
// installing "all" modules follows declaration order.
package manifest
