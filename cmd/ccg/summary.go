// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ccg-dev/ccg/internal/fsops"
	"github.com/ccg-dev/ccg/internal/installer"
)

// summaryMarkdown renders the run report as a Markdown document.
func summaryMarkdown(report installer.RunReport, installRoot string) string {
	var sb strings.Builder

	if report.OK() {
		sb.WriteString("# Installation complete\n\n")
	} else {
		sb.WriteString("# Installation finished with errors\n\n")
	}

	sb.WriteString("| Module | Result | Operations |\n")
	sb.WriteString("| --- | --- | --- |\n")
	for _, m := range report.Modules {
		result := "installed"
		if !m.FullySucceeded() {
			result = fmt.Sprintf("%d failed", m.Failed())
		}
		fmt.Fprintf(&sb, "| %s | %s | %d/%d |\n", m.Name, result, m.Succeeded, m.Total)
	}

	var failures []string
	for _, m := range report.Modules {
		for _, o := range m.Outcomes {
			if o.OK {
				continue
			}
			target := o.Op.Target
			if target == "" {
				target = o.Op.Binary
			}
			reason := o.Err.Error()
			if errors.Is(o.Err, fsops.ErrSourceNotFound) {
				reason = "source not found"
			}
			failures = append(failures, fmt.Sprintf("- **%s** `%s` %s: %s", m.Name, o.Op.Type, target, reason))
		}
	}
	if len(failures) > 0 {
		sb.WriteString("\n## Failed operations\n\n")
		sb.WriteString(strings.Join(failures, "\n"))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nInstalled into `%s`.\n", installRoot)
	return sb.String()
}

func (a *App) printSummary(report installer.RunReport, installRoot string) {
	md := summaryMarkdown(report, installRoot)
	out, err := glamour.Render(md, a.markdownStyle())
	if err != nil {
		out = md
	}
	fmt.Fprint(a.stdout, out)
}
