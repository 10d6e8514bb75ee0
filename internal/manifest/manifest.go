// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
)

// AllModules selects every enabled module.
const AllModules = "all"

// Operation type tags understood by the executor.
const (
	OpCopyFile            OpType = "copy_file"
	OpCopyDir             OpType = "copy_dir"
	OpMergeDir            OpType = "merge_dir"
	OpBuildBinary         OpType = "build_binary"
	OpInstallExternalTool OpType = "install_external_tool"
	// OpInstallAceTool registers the ace-tool provider directly, without a
	// provider choice. Older manifests use it in place of install_mcp.
	OpInstallAceTool OpType = "install_ace_tool"
)

// ErrUnknownModule is returned by Select for a name the manifest does not
// declare.
var ErrUnknownModule = errors.New("unknown module")

// opAliases maps legacy tags onto their current names.
var opAliases = map[string]OpType{
	"build_go":    OpBuildBinary,
	"install_mcp": OpInstallExternalTool,
}

type (
	// OpType is the tag of an Operation.
	OpType string

	// Operation is one declarative installation step. Source and Target are
	// relative to the source root and the installation root respectively.
	Operation struct {
		Type        OpType
		Source      string
		Target      string
		Description string
		// Binary is the logical executable name for build_binary.
		Binary string
	}

	// Module is a named, ordered bundle of operations.
	Module struct {
		Name        string
		Description string
		Enabled     bool
		Operations  []Operation
	}

	// Manifest is the loaded module list. It is read-only after Load.
	Manifest struct {
		Modules []*Module
		index   map[string]*Module
	}
)

// ParseOpType resolves a raw tag, folding legacy aliases. Unrecognized tags
// are returned unchanged so that they fail at execution time rather than at
// load time.
func ParseOpType(raw string) OpType {
	if alias, ok := opAliases[raw]; ok {
		return alias
	}
	return OpType(raw)
}

// Known reports whether t is an operation type the executor can dispatch.
func (t OpType) Known() bool {
	switch t {
	case OpCopyFile, OpCopyDir, OpMergeDir, OpBuildBinary, OpInstallExternalTool, OpInstallAceTool:
		return true
	default:
		return false
	}
}

func (t OpType) String() string {
	return string(t)
}

// New builds a Manifest from modules in the given order. Module names must
// be unique.
func New(modules ...*Module) (*Manifest, error) {
	m := &Manifest{index: make(map[string]*Module, len(modules))}
	for _, mod := range modules {
		if _, dup := m.index[mod.Name]; dup {
			return nil, fmt.Errorf("duplicate module %q", mod.Name)
		}
		m.index[mod.Name] = mod
		m.Modules = append(m.Modules, mod)
	}
	return m, nil
}

// Lookup returns the module with the given name.
func (m *Manifest) Lookup(name string) (*Module, bool) {
	mod, ok := m.index[name]
	return mod, ok
}

// Names returns module names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Modules))
	for _, mod := range m.Modules {
		names = append(names, mod.Name)
	}
	return names
}

// Select resolves a module selector. AllModules yields the enabled modules
// in declaration order (possibly none). Any other name yields exactly that
// module, whether or not it is enabled.
func Select(m *Manifest, name string) ([]*Module, error) {
	if name == AllModules {
		var selected []*Module
		for _, mod := range m.Modules {
			if mod.Enabled {
				selected = append(selected, mod)
			}
		}
		return selected, nil
	}

	mod, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return []*Module{mod}, nil
}
