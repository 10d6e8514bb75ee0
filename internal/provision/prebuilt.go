// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"
	"path/filepath"

	"github.com/ccg-dev/ccg/internal/platform"
)

// ArtifactsDir is the directory under the source root that holds prebuilt
// binaries.
const ArtifactsDir = "bin"

// PrebuiltName returns the conventional artifact file name for binary on
// key, e.g. codeagent-wrapper-linux-amd64 or codeagent-wrapper-windows-arm64.exe.
func PrebuiltName(binary string, key platform.Key) string {
	return platform.ExecutableName(binary+"-"+key.String(), key.OS)
}

// FindPrebuilt looks for the artifact for binary under sourceRoot. It
// reports false for unsupported platforms and when no regular file exists.
func FindPrebuilt(sourceRoot, binary string, key platform.Key) (string, bool) {
	if !key.Supported() {
		return "", false
	}
	path := filepath.Join(sourceRoot, ArtifactsDir, PrebuiltName(binary, key))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
