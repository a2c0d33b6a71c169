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

// Package resolve maps import specifiers to canonical module identities.
package resolve

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/packagejson"
)

// DefaultExtensions is the order in which extensions are appended to
// extensionless specifiers.
var DefaultExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".tsx", ".json"}

// Resolver resolves specifiers against a filesystem snapshot. It holds no
// state besides the package locator's caches, so one Resolver may be shared
// by concurrent callers. Use the With* methods to derive configured copies.
type Resolver struct {
	fs         fs.FileSystem
	rootDir    string
	extensions []string
	mainFields []string
	conditions []string
	externals  map[string]string
	packages   PackageLocator
	logger     logging.Logger
}

// New creates a Resolver rooted at rootDir that finds packages in
// node_modules directories and workspaces.
func New(fsys fs.FileSystem, rootDir string) *Resolver {
	return &Resolver{
		fs:         fsys,
		rootDir:    filepath.Clean(rootDir),
		extensions: DefaultExtensions,
		mainFields: packagejson.DefaultMainFields,
		packages:   NewNodeModules(fsys, rootDir, packagejson.NewMemoryCache()),
		logger:     logging.Discard(),
	}
}

func (r *Resolver) clone() *Resolver {
	c := *r
	return &c
}

// WithExtensions sets the extension probing order. Entries without a
// leading dot get one.
func (r *Resolver) WithExtensions(exts []string) *Resolver {
	c := r.clone()
	c.extensions = make([]string, 0, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.extensions = append(c.extensions, ext)
	}
	return c
}

// WithMainFields sets the package.json entry field priority.
func (r *Resolver) WithMainFields(fields []string) *Resolver {
	c := r.clone()
	c.mainFields = slices.Clone(fields)
	return c
}

// WithConditions sets the export condition priority.
func (r *Resolver) WithConditions(conditions []string) *Resolver {
	c := r.clone()
	c.conditions = slices.Clone(conditions)
	return c
}

// WithExternals maps bare specifiers to global expressions provided by the
// host page. Externals resolve without touching the filesystem.
func (r *Resolver) WithExternals(externals map[string]string) *Resolver {
	c := r.clone()
	c.externals = maps.Clone(externals)
	return c
}

// WithPackageLocator replaces the package lookup strategy.
func (r *Resolver) WithPackageLocator(p PackageLocator) *Resolver {
	c := r.clone()
	c.packages = p
	return c
}

// WithLogger sets the logger for debug output.
func (r *Resolver) WithLogger(l logging.Logger) *Resolver {
	c := r.clone()
	c.logger = logging.OrDiscard(l)
	return c
}

// RootDir returns the project root.
func (r *Resolver) RootDir() string {
	return r.rootDir
}

// External returns the global expression for an external module.
func (r *Resolver) External(id module.ID) (string, bool) {
	if !id.IsExternal() {
		return "", false
	}
	expr, ok := r.externals[id.ExternalName()]
	return expr, ok
}

// Resolve maps specifier, as written in from, to a module ID. A zero from
// resolves relative to the project root, which is how entries are resolved.
func (r *Resolver) Resolve(specifier string, from module.ID) (module.ID, error) {
	spec, query, _ := strings.Cut(specifier, "?")
	fail := func(reason string, err error) (module.ID, error) {
		return module.ID{}, &ResolutionError{Specifier: specifier, From: from, Reason: reason, Err: err}
	}

	if spec == "" {
		return fail("empty specifier", ErrNotFound)
	}
	if _, ok := r.externals[spec]; ok {
		return module.External(spec), nil
	}
	if strings.Contains(spec, "://") || strings.HasPrefix(spec, "data:") {
		return fail("remote URLs are not bundled; declare an external instead", ErrNotFound)
	}

	baseDir := r.rootDir
	if !from.IsZero() && !from.IsExternal() {
		baseDir = filepath.Dir(from.Path)
	}

	var (
		path string
		err  error
	)
	switch {
	case isRelative(spec):
		path, err = r.probe(filepath.Join(baseDir, spec))
	case filepath.IsAbs(spec):
		path, err = r.probe(spec)
		if err != nil {
			// Web-style absolute paths are relative to the project root.
			path, err = r.probe(filepath.Join(r.rootDir, spec))
		}
	case strings.HasPrefix(spec, "#"):
		path, err = r.resolvePackageImport(spec, baseDir)
	default:
		path, err = r.resolveBare(spec, baseDir)
	}
	if err != nil {
		return fail("", err)
	}

	id := module.New(path, query)
	r.logger.Debug("resolved", "specifier", specifier, "from", from.String(), "module", id.String())
	return id, nil
}

// probe tries base as a file, then with each extension, then as a directory.
func (r *Resolver) probe(base string) (string, error) {
	if fs.IsFile(r.fs, base) {
		return base, nil
	}
	if file, ok := r.withExtension(base); ok {
		return file, nil
	}
	if fs.IsDir(r.fs, base) {
		return r.probeDir(base)
	}
	return "", ErrNotFound
}

func (r *Resolver) withExtension(base string) (string, bool) {
	for _, ext := range r.extensions {
		if candidate := base + ext; fs.IsFile(r.fs, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// probeDir resolves a directory through its package.json entry, then index files.
func (r *Resolver) probeDir(dir string) (string, error) {
	if pkg, err := r.packageJSON(dir); err == nil {
		if entry := pkg.EntryPoint(r.mainFields); entry != "" {
			target := filepath.Join(dir, entry)
			if fs.IsFile(r.fs, target) {
				return target, nil
			}
			if file, ok := r.withExtension(target); ok {
				return file, nil
			}
		}
	}
	if file, ok := r.withExtension(filepath.Join(dir, "index")); ok {
		return file, nil
	}
	return "", ErrNotFound
}

func (r *Resolver) resolveBare(spec, baseDir string) (string, error) {
	name := PackageName(spec)
	dir, pkg, err := r.packages.Locate(name, baseDir)
	if err != nil {
		return "", err
	}
	subpath := "." + strings.TrimPrefix(spec, name)

	if pkg.Exports != nil {
		target, err := pkg.ResolveExport(subpath, r.exportOptions())
		if err != nil {
			return "", err
		}
		full := filepath.Join(dir, target)
		if !fs.IsFile(r.fs, full) {
			return "", ErrNotFound
		}
		return full, nil
	}

	if subpath == "." {
		return r.probeDir(dir)
	}
	return r.probe(filepath.Join(dir, subpath))
}

// resolvePackageImport resolves "#name" through the nearest package.json.
func (r *Resolver) resolvePackageImport(spec, baseDir string) (string, error) {
	dir := baseDir
	for {
		if pkg, err := r.packageJSON(dir); err == nil {
			target, err := pkg.ResolveImport(spec, r.exportOptions())
			if err != nil {
				return "", err
			}
			if path, err := r.probe(filepath.Join(dir, target)); err == nil {
				return path, nil
			}
			// Imports may also map to a bare package.
			return r.resolveBare(target, dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

func (r *Resolver) packageJSON(dir string) (*packagejson.PackageJSON, error) {
	return packagejson.ParseFile(r.fs, filepath.Join(dir, "package.json"))
}

func (r *Resolver) exportOptions() *packagejson.ResolveOptions {
	if len(r.conditions) == 0 {
		return nil
	}
	return &packagejson.ResolveOptions{Conditions: r.conditions}
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// IsBareSpecifier reports whether spec names a package rather than a path.
func IsBareSpecifier(spec string) bool {
	if spec == "" || isRelative(spec) || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "#") {
		return false
	}
	return !strings.Contains(spec, "://")
}

// PackageName extracts the package name from a bare specifier,
// e.g. "@scope/pkg/sub.js" -> "@scope/pkg" and "lit/decorators.js" -> "lit".
func PackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	name, _, _ := strings.Cut(spec, "/")
	return name
}

// ToWebPath converts a path under rootDir into a root-relative URL path,
// e.g. "/proj/src/a.js" -> "/src/a.js". Paths outside rootDir return "".
func ToWebPath(rootDir, fullPath string) string {
	rel, err := filepath.Rel(rootDir, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel)
}
