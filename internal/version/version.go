/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package version provides version information for the bindle CLI.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Version information, set at build time via ldflags
	Version   = "dev"     // Version string (e.g., "v0.3.0")
	GitCommit = "unknown" // Git commit hash
	GitTag    = "unknown" // Git tag
	BuildTime = "unknown" // Build timestamp
	GitDirty  = ""        // "dirty" if working directory has uncommitted changes
)

// tools are the modules whose versions affect build output.
var tools = map[string]string{
	"github.com/evanw/esbuild":                      "esbuild",
	"github.com/tree-sitter/go-tree-sitter":         "tree-sitter",
	"github.com/tree-sitter/tree-sitter-typescript": "tree-sitter-typescript",
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string            `json:"version"`
	GitCommit string            `json:"gitCommit"`
	GitTag    string            `json:"gitTag"`
	BuildTime string            `json:"buildTime"`
	GitDirty  string            `json:"gitDirty,omitempty"`
	Go        string            `json:"go"`
	Tools     map[string]string `json:"tools,omitempty"`
}

// GetVersion returns the version string for the application
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	if GitTag == "unknown" || GitCommit == "unknown" {
		return "dev"
	}

	version := GitTag
	commitSuffix := GitCommit
	if len(GitCommit) > 7 {
		commitSuffix = GitCommit[:7]
	}
	if commitSuffix != "" && !strings.HasSuffix(GitTag, commitSuffix) {
		version = fmt.Sprintf("%s-%s", GitTag, commitSuffix)
	}
	if GitDirty == "dirty" {
		version += "-dirty"
	}
	return version
}

// GetFullVersion returns the version with the commit and esbuild version.
func GetFullVersion() string {
	version := GetVersion()
	if GitCommit != "unknown" {
		version = fmt.Sprintf("%s (commit: %s)", version, GitCommit)
	}
	if esbuild, ok := GetBuildInfo().Tools["esbuild"]; ok {
		version += ", esbuild " + esbuild
	}
	return version
}

// GetBuildInfo returns detailed build information
func GetBuildInfo() BuildInfo {
	bi := BuildInfo{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		BuildTime: BuildTime,
		GitDirty:  GitDirty,
		Go:        runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if name, ok := tools[dep.Path]; ok {
				if bi.Tools == nil {
					bi.Tools = make(map[string]string)
				}
				bi.Tools[name] = dep.Version
			}
		}
	}
	return bi
}
