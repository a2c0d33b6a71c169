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
package resolve

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/packagejson"
)

// WorkspacePackage is a package in a monorepo workspace.
type WorkspacePackage struct {
	Name string // from package.json
	Path string // absolute directory
}

// DiscoverWorkspacePackages finds the workspace packages declared by the
// root package.json. Returns nil when no workspaces are declared.
func DiscoverWorkspacePackages(fsys fs.FileSystem, rootDir string) ([]WorkspacePackage, error) {
	rootPkg, err := packagejson.ParseFile(fsys, filepath.Join(rootDir, "package.json"))
	if err != nil {
		return nil, err
	}

	var packages []WorkspacePackage
	for _, pattern := range rootPkg.WorkspacePatterns() {
		for _, dir := range expandWorkspacePattern(fsys, rootDir, pattern) {
			pkg, err := parseWorkspacePackage(fsys, dir)
			if err != nil {
				continue
			}
			packages = append(packages, pkg)
		}
	}
	slices.SortFunc(packages, func(a, b WorkspacePackage) int {
		return strings.Compare(a.Name, b.Name)
	})
	return packages, nil
}

// expandWorkspacePattern expands a workspace glob one path segment at a time,
// matching each segment with doublestar. "**" segments are not supported.
func expandWorkspacePattern(fsys fs.FileSystem, rootDir, pattern string) []string {
	pattern = strings.Trim(filepath.ToSlash(pattern), "/")
	if pattern == "" || strings.Contains(pattern, "**") {
		return nil
	}

	dirs := []string{rootDir}
	for _, segment := range strings.Split(pattern, "/") {
		var next []string
		for _, dir := range dirs {
			if !strings.ContainsAny(segment, "*?[{") {
				if candidate := filepath.Join(dir, segment); fs.IsDir(fsys, candidate) {
					next = append(next, candidate)
				}
				continue
			}
			entries, err := fsys.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				if ok, _ := doublestar.Match(segment, entry.Name()); ok {
					next = append(next, filepath.Join(dir, entry.Name()))
				}
			}
		}
		dirs = next
	}
	return dirs
}

func parseWorkspacePackage(fsys fs.FileSystem, dir string) (WorkspacePackage, error) {
	pkg, err := packagejson.ParseFile(fsys, filepath.Join(dir, "package.json"))
	if err != nil {
		return WorkspacePackage{}, err
	}
	if pkg.Name == "" {
		return WorkspacePackage{}, fmt.Errorf("package at %s has no name", dir)
	}
	return WorkspacePackage{Name: pkg.Name, Path: dir}, nil
}
