// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ModuleNotFoundId
	SourceNotFoundId
	GoToolchainMissingId
	BuildFailedId
	NoInstallDirId
	PathNotConfiguredId
	NpmMissingId
	MalformedClaudeConfigId
	ConfigLoadFailedId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is Markdown text rendered for the user.
	MarkdownMsg string

	// HttpLink is an external reference shown under "See also".
	HttpLink string

	// Issue is a catalog entry with longer remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guidance with the given glamour style ("dark", "light",
// "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.extLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# Manifest not found

The installer reads the module list from a manifest (usually ` + "`config.json`" + ` next to
the pack's sources).

## Things you can try
- Run the installer from the unpacked pack directory
- Point at the manifest explicitly:
~~~
$ ccg install --manifest /path/to/pack/config.json
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Manifest could not be parsed

The manifest must be a JSON or YAML document with a top-level ` + "`modules`" + ` mapping.

~~~json
{
  "modules": {
    "core": {
      "enabled": true,
      "description": "Slash commands and helper binary",
      "operations": [
        {"type": "merge_dir", "source": "commands", "target": "commands"}
      ]
    }
  }
}
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Unknown module

## Things you can try
- List the modules declared by the manifest:
~~~
$ ccg install --list-modules
~~~
- Install every enabled module with ` + "`--module all`",
	}

	sourceNotFoundIssue = &Issue{
		id: SourceNotFoundId,
		mdMsg: `
# Source path missing

An operation refers to a file or directory that is not present in the pack.
The remaining operations still ran; re-download the pack and retry.`,
	}

	goToolchainMissingIssue = &Issue{
		id: GoToolchainMissingId,
		mdMsg: `
# Go toolchain not found

No prebuilt helper binary matches this platform, so it has to be built from
source, which needs the Go toolchain on your PATH.`,
		extLinks: []HttpLink{"https://go.dev/doc/install"},
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Build failed

The compiler output is shown above. Run with ` + "`--verbose`" + ` for the command line used.`,
	}

	noInstallDirIssue = &Issue{
		id: NoInstallDirId,
		mdMsg: `
# No writable PATH directory

None of the candidate directories accepted the binary.

## Things you can try
~~~
$ sudo cp <binary> /usr/local/bin/
~~~`,
	}

	pathNotConfiguredIssue = &Issue{
		id: PathNotConfiguredId,
		mdMsg: `
# Install directory is not on PATH

Add it to your shell profile, or rerun with ` + "`--configure-path`" + `.`,
	}

	npmMissingIssue = &Issue{
		id: NpmMissingId,
		mdMsg: `
# npm not found

MCP code-search providers are distributed through npm.`,
		extLinks: []HttpLink{"https://nodejs.org/"},
	}

	malformedClaudeConfigIssue = &Issue{
		id: MalformedClaudeConfigId,
		mdMsg: `
# ~/.claude.json could not be parsed

The file was left untouched. Fix the JSON syntax and rerun the installer to
register the MCP server.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
~~~
$ ccg config show
~~~`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():      manifestNotFoundIssue,
		manifestParseErrorIssue.Id():    manifestParseErrorIssue,
		moduleNotFoundIssue.Id():        moduleNotFoundIssue,
		sourceNotFoundIssue.Id():        sourceNotFoundIssue,
		goToolchainMissingIssue.Id():    goToolchainMissingIssue,
		buildFailedIssue.Id():           buildFailedIssue,
		noInstallDirIssue.Id():          noInstallDirIssue,
		pathNotConfiguredIssue.Id():     pathNotConfiguredIssue,
		npmMissingIssue.Id():            npmMissingIssue,
		malformedClaudeConfigIssue.Id(): malformedClaudeConfigIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
