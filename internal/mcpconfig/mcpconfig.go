// SPDX-License-Identifier: MPL-2.0

// Package mcpconfig registers MCP servers in the shared Claude CLI
// configuration file (~/.claude.json) without disturbing anything else in
// it.
//
// The file is owned by another program and carries many unrelated keys.
// Register decodes only as far as the mcpServers mapping, keeps every other
// value as raw JSON, and replaces the file through a temp file and rename so
// a registration is either written whole or not at all.
package mcpconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ccg-dev/ccg/internal/issue"
)

// ServersKey is the top-level key holding MCP server registrations.
const ServersKey = "mcpServers"

// ErrMalformed is returned when the existing file cannot be safely merged.
// The file is left untouched.
var ErrMalformed = errors.New("malformed configuration")

// ErrNotRegistered is returned by Lookup when id has no entry.
var ErrNotRegistered = errors.New("server not registered")

// Record is one MCP server registration. All four fields are always
// serialized.
type Record struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// DefaultPath returns ~/.claude.json for home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".claude.json")
}

// Register inserts or replaces the entry for id. A missing file is treated
// as an empty document.
func Register(path, id string, rec Record) error {
	path, err := resolvePath(path)
	if err != nil {
		return err
	}
	doc, mode, err := readDocument(path)
	if err != nil {
		return err
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := doc[ServersKey]; ok {
		if err := decodeObject(raw, &servers); err != nil {
			return malformed(path, fmt.Errorf("%s: %w", ServersKey, err))
		}
	}

	if rec.Args == nil {
		rec.Args = []string{}
	}
	if rec.Env == nil {
		rec.Env = map[string]string{}
	}
	entry, err := marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", id, err)
	}
	servers[id] = entry

	encodedServers, err := marshal(servers)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ServersKey, err)
	}
	doc[ServersKey] = encodedServers

	data, err := encode(doc)
	if err != nil {
		return err
	}
	return writeAtomic(path, data, mode)
}

// Lookup returns the record registered under id.
func Lookup(path, id string) (Record, error) {
	doc, _, err := readDocument(path)
	if err != nil {
		return Record{}, err
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := doc[ServersKey]; ok {
		if err := decodeObject(raw, &servers); err != nil {
			return Record{}, malformed(path, fmt.Errorf("%s: %w", ServersKey, err))
		}
	}

	raw, ok := servers[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, malformed(path, fmt.Errorf("%s.%s: %w", ServersKey, id, err))
	}
	return rec, nil
}

// readDocument returns the top-level object of path (empty when the file
// does not exist) and the mode to write it back with.
func readDocument(path string) (map[string]json.RawMessage, fs.FileMode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, 0o600, nil
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := map[string]json.RawMessage{}
	if err := decodeObject(data, &doc); err != nil {
		return nil, 0, malformed(path, err)
	}

	mode := fs.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return doc, mode, nil
}

// decodeObject decodes a JSON object, rejecting null and non-object values.
func decodeObject(data []byte, v *map[string]json.RawMessage) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("expected an object, got null")
	}
	return json.Unmarshal(data, v)
}

// marshal is json.Marshal without HTML escaping, so tokens and URLs are
// stored as typed.
func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encode(doc map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// resolvePath follows symlinks so a linked file (e.g. a dotfiles checkout)
// is updated in place instead of being replaced by a regular file. A path
// that does not exist yet is returned unchanged.
func resolvePath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolved, nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting temp file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	renamed = true
	return nil
}

func malformed(path string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("parse MCP configuration").
		WithResource(path).
		WithIssue(issue.MalformedClaudeConfigId).
		WithSuggestion("Fix the JSON syntax in " + path + " and rerun the installer").
		Wrap(fmt.Errorf("%w: %w", ErrMalformed, cause)).
		BuildError()
}
