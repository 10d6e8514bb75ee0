// SPDX-License-Identifier: MPL-2.0

// Package ccgconfig writes ~/.ccg/config.toml, the file the installed
// command templates read to learn which MCP provider is available and how
// tasks are routed between models.
package ccgconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DirName is the dot-directory under home holding the file.
	DirName = ".ccg"
	// FileName is the generated file name.
	FileName = "config.toml"

	// ProviderNone records that no MCP provider was registered.
	ProviderNone = "none"
)

type (
	// Config is the generated document.
	Config struct {
		MCP     MCP     `toml:"mcp"`
		Routing Routing `toml:"routing"`
	}

	// MCP describes the code-search provider and its tool names.
	MCP struct {
		Provider string       `toml:"provider" comment:"MCP provider: ace-tool | auggie | none"`
		Tools    Tools        `toml:"tools" comment:"Tool names read by the command templates"`
		AceTool  ProviderInfo `toml:"ace-tool"`
		Auggie   ProviderInfo `toml:"auggie"`
	}

	// Tools maps logical tools onto provider-specific MCP tool names.
	Tools struct {
		CodeSearchAce       string `toml:"code_search_ace"`
		CodeSearchAuggie    string `toml:"code_search_auggie"`
		PromptEnhanceAce    string `toml:"prompt_enhance_ace"`
		PromptEnhanceAuggie string `toml:"prompt_enhance_auggie" comment:"auggie has no prompt enhancement tool"`
		QueryParamAce       string `toml:"query_param_ace"`
		QueryParamAuggie    string `toml:"query_param_auggie"`
	}

	// ProviderInfo documents what a provider offers.
	ProviderInfo struct {
		Features []string `toml:"features"`
		SetupURL string   `toml:"setup_url"`
		Note     string   `toml:"note,omitempty"`
	}

	// Routing configures which models handle which task kinds.
	Routing struct {
		Mode     string     `toml:"mode" comment:"smart | parallel | sequential"`
		Frontend RouteGroup `toml:"frontend"`
		Backend  RouteGroup `toml:"backend"`
		Review   RouteGroup `toml:"review"`
	}

	// RouteGroup is the model set for one task kind.
	RouteGroup struct {
		Models   []string `toml:"models"`
		Primary  string   `toml:"primary,omitempty"`
		Strategy string   `toml:"strategy"`
	}

	// Writer writes the file into Dir.
	Writer struct {
		Dir string
		// Now stamps the header; time.Now when nil.
		Now func() time.Time
	}
)

// DefaultDir returns ~/.ccg for home.
func DefaultDir(home string) string {
	return filepath.Join(home, DirName)
}

// New returns the document for provider with the stock tool names and
// routing table.
func New(provider string) *Config {
	return &Config{
		MCP: MCP{
			Provider: provider,
			Tools: Tools{
				CodeSearchAce:       "mcp__ace-tool__search_context",
				CodeSearchAuggie:    "mcp__auggie-mcp__codebase-retrieval",
				PromptEnhanceAce:    "mcp__ace-tool__enhance_prompt",
				PromptEnhanceAuggie: "",
				QueryParamAce:       "query",
				QueryParamAuggie:    "information_request",
			},
			AceTool: ProviderInfo{
				Features: []string{"prompt enhancement", "code search"},
				SetupURL: "https://augmentcode.com/",
			},
			Auggie: ProviderInfo{
				Features: []string{"code search"},
				SetupURL: "https://linux.do/t/topic/1280612",
				Note:     "auggie has no prompt enhancement tool; configure one manually",
			},
		},
		Routing: Routing{
			Mode:     "smart",
			Frontend: RouteGroup{Models: []string{"gemini", "codex"}, Primary: "gemini", Strategy: "parallel"},
			Backend:  RouteGroup{Models: []string{"codex", "gemini"}, Primary: "codex", Strategy: "parallel"},
			Review:   RouteGroup{Models: []string{"codex", "gemini"}, Strategy: "parallel"},
		},
	}
}

// Render encodes the document for provider with a generated-at header.
func Render(provider string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# CCG (Claude + Codex + Gemini) configuration\n# Generated: %s\n\n", now.Format(time.RFC3339))

	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(New(provider)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	return buf.Bytes(), nil
}

// Write creates Dir if needed and replaces the file for provider. It
// returns the written path.
func (w *Writer) Write(provider string) (string, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	data, err := Render(provider, now())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", w.Dir, err)
	}
	path := filepath.Join(w.Dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Read decodes a previously written file.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}
