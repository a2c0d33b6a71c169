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
	"path/filepath"
	"sync"

	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/packagejson"
)

// PackageLocator finds installed packages. It knows the package storage
// layout so the Resolver does not have to.
type PackageLocator interface {
	// Locate returns the directory and manifest of package name as seen from
	// fromDir, or an error wrapping ErrPackageNotFound.
	Locate(name, fromDir string) (string, *packagejson.PackageJSON, error)
}

// NodeModules locates packages the way Node does: workspace packages and the
// root package by name first, then node_modules directories from fromDir up
// to the filesystem root.
type NodeModules struct {
	fs      fs.FileSystem
	rootDir string
	cache   packagejson.Cache

	linkedOnce sync.Once
	linked     map[string]string // package name -> directory
}

// NewNodeModules creates a locator for the project at rootDir.
func NewNodeModules(fsys fs.FileSystem, rootDir string, cache packagejson.Cache) *NodeModules {
	return &NodeModules{fs: fsys, rootDir: filepath.Clean(rootDir), cache: cache}
}

// Cache returns the package.json cache so callers can invalidate entries.
func (n *NodeModules) Cache() packagejson.Cache {
	return n.cache
}

func (n *NodeModules) Locate(name, fromDir string) (string, *packagejson.PackageJSON, error) {
	if dir, ok := n.linkedPackages()[name]; ok {
		if pkg, err := n.load(dir); err == nil {
			return dir, pkg, nil
		}
	}

	dir := filepath.Clean(fromDir)
	for {
		candidate := filepath.Join(dir, "node_modules", name)
		if pkg, err := n.load(candidate); err == nil {
			return candidate, pkg, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, ErrPackageNotFound
}

func (n *NodeModules) load(dir string) (*packagejson.PackageJSON, error) {
	path := filepath.Join(dir, "package.json")
	return n.cache.GetOrLoad(path, func() (*packagejson.PackageJSON, error) {
		return packagejson.ParseFile(n.fs, path)
	})
}

// linkedPackages maps the root package and its workspaces by name.
func (n *NodeModules) linkedPackages() map[string]string {
	n.linkedOnce.Do(func() {
		n.linked = make(map[string]string)
		if pkg, err := n.load(n.rootDir); err == nil && pkg.Name != "" {
			n.linked[pkg.Name] = n.rootDir
		}
		workspaces, _ := DiscoverWorkspacePackages(n.fs, n.rootDir)
		for _, ws := range workspaces {
			n.linked[ws.Name] = ws.Path
		}
	})
	return n.linked
}
