// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccg-dev/ccg/internal/issue"
	"github.com/ccg-dev/ccg/internal/platform"
)

// ErrInvalid is wrapped by every structural problem found while decoding a
// manifest document.
var ErrInvalid = errors.New("invalid manifest")

type (
	rawOperation struct {
		Type        string `yaml:"type"`
		Source      string `yaml:"source"`
		Target      string `yaml:"target"`
		Description string `yaml:"description"`
		Binary      string `yaml:"binary"`
	}

	rawModule struct {
		Enabled     bool           `yaml:"enabled"`
		Description string         `yaml:"description"`
		Operations  []rawOperation `yaml:"operations"`
	}
)

// Load reads and decodes the manifest at path. JSON documents are accepted
// as YAML flow mappings, which keeps key order without a second decoder.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		ctx := issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(path).
			Wrap(err)
		if errors.Is(err, fs.ErrNotExist) {
			ctx = ctx.WithIssue(issue.ManifestNotFoundId).
				WithSuggestion("Run the installer from the unpacked pack directory").
				WithSuggestion("Pass --manifest with the path to the pack's config.json")
		}
		return nil, ctx.BuildError()
	}

	m, err := Parse(data)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse manifest").
			WithResource(path).
			WithIssue(issue.ManifestParseErrorId).
			WithSuggestion("Check that the file is valid JSON or YAML with a top-level 'modules' mapping").
			Wrap(err).
			BuildError()
	}
	return m, nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalid)
	}

	modulesNode := mappingValue(root, "modules")
	if modulesNode == nil {
		return nil, fmt.Errorf("%w: missing 'modules'", ErrInvalid)
	}
	if modulesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: 'modules' must be a mapping (line %d)", ErrInvalid, modulesNode.Line)
	}

	modules := make([]*Module, 0, len(modulesNode.Content)/2)
	for i := 0; i+1 < len(modulesNode.Content); i += 2 {
		keyNode, valueNode := modulesNode.Content[i], modulesNode.Content[i+1]

		var raw rawModule
		if err := valueNode.Decode(&raw); err != nil {
			return nil, fmt.Errorf("module %q: %w", keyNode.Value, err)
		}
		mod, err := raw.toModule(keyNode.Value)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}

	m, err := New(modules...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return m, nil
}

func (r rawModule) toModule(name string) (*Module, error) {
	mod := &Module{
		Name:        name,
		Description: r.Description,
		Enabled:     r.Enabled,
		Operations:  make([]Operation, 0, len(r.Operations)),
	}
	for i, op := range r.Operations {
		if err := checkBinaryName(op.Binary); err != nil {
			return nil, fmt.Errorf("%w: module %q operation %d: %w", ErrInvalid, name, i+1, err)
		}
		target := op.Target
		if target == "" {
			target = op.Source
		}
		mod.Operations = append(mod.Operations, Operation{
			Type:        ParseOpType(op.Type),
			Source:      op.Source,
			Target:      target,
			Description: op.Description,
			Binary:      op.Binary,
		})
	}
	return mod, nil
}

// checkBinaryName rejects binary names that cannot be installed as a single
// file on every platform. An empty name is left for provisioning to report.
func checkBinaryName(name string) error {
	switch {
	case name == "":
		return nil
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return fmt.Errorf("binary %q must be a file name, not a path", name)
	case platform.IsWindowsReservedName(name):
		return fmt.Errorf("binary %q is a reserved device name on Windows", name)
	}
	return nil
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
