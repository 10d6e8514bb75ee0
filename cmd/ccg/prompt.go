// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/charmbracelet/huh"

	"github.com/ccg-dev/ccg/internal/provider"
)

// promptSelector asks for the MCP provider and its credentials on the
// terminal. Preset credentials are not asked for again.
type promptSelector struct {
	token   string
	baseURL string
}

// Select implements provider.Selector.
func (p *promptSelector) Select(ctx context.Context, fixed provider.Name) (*provider.Selection, error) {
	name := fixed
	if name == "" {
		choice := provider.AceTool.String()
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("MCP code-search provider").
				Description("Registered in ~/.claude.json for the installed commands").
				Options(
					huh.NewOption("ace-tool (recommended)", provider.AceTool.String()),
					huh.NewOption("auggie", provider.Auggie.String()),
					huh.NewOption("Skip for now", provider.None.String()),
				).
				Value(&choice),
		))
		if err := form.RunWithContext(ctx); err != nil {
			return nil, err
		}
		name = provider.Name(choice)
	}
	if name == provider.None {
		return nil, nil
	}

	sel := &provider.Selection{Provider: name, Token: p.token, BaseURL: p.baseURL}

	var fields []huh.Field
	if sel.Token == "" {
		fields = append(fields, huh.NewInput().
			Title(tokenTitle(name)).
			EchoMode(huh.EchoModePassword).
			Value(&sel.Token))
	}
	if name == provider.AceTool && sel.BaseURL == "" {
		fields = append(fields, huh.NewInput().
			Title("ace-tool base URL").
			Placeholder(provider.DefaultAceBaseURL).
			Value(&sel.BaseURL))
	}
	if len(fields) > 0 {
		if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
			return nil, err
		}
	}

	return sel, nil
}

func tokenTitle(name provider.Name) string {
	if name == provider.Auggie {
		return "Augment API key"
	}
	return "ace-tool token"
}
