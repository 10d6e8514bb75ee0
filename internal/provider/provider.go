// SPDX-License-Identifier: MPL-2.0

// Package provider installs and registers the MCP code-search providers
// (ace-tool and auggie) that the installed commands rely on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	AceTool Name = "ace-tool"
	Auggie  Name = "auggie"
	// None skips provider installation.
	None Name = "none"

	// DefaultAceBaseURL is used when no base URL is supplied for ace-tool.
	DefaultAceBaseURL = "https://api.augmentcode.com"
)

// ErrUnknownProvider is returned for provider names other than ace-tool,
// auggie and none.
var ErrUnknownProvider = errors.New("unknown MCP provider")

type (
	// Name identifies a provider.
	Name string

	// Selection is a resolved provider choice with credentials. A nil
	// *Selection means "skip".
	Selection struct {
		Provider Name
		Token    string
		BaseURL  string
	}

	// Selector supplies a Selection. When fixed is non-empty the provider is
	// already decided and only credentials are needed.
	Selector interface {
		Select(ctx context.Context, fixed Name) (*Selection, error)
	}

	// StaticSelector answers from preset values (flags or configuration).
	StaticSelector struct {
		// Choice is returned when no provider is fixed; nil skips.
		Choice *Selection
	}
)

// ParseName validates a provider name. The empty string parses as None.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case AceTool, Auggie, None:
		return n, nil
	case "":
		return None, nil
	default:
		return "", fmt.Errorf("%w: %q (want ace-tool, auggie or none)", ErrUnknownProvider, s)
	}
}

func (n Name) String() string {
	return string(n)
}

// Select implements Selector.
func (s *StaticSelector) Select(_ context.Context, fixed Name) (*Selection, error) {
	if fixed != "" {
		sel := Selection{Provider: fixed}
		if s.Choice != nil {
			sel.Token = s.Choice.Token
			sel.BaseURL = s.Choice.BaseURL
		}
		return &sel, nil
	}
	if s.Choice == nil || s.Choice.Provider == None {
		return nil, nil
	}
	sel := *s.Choice
	return &sel, nil
}
