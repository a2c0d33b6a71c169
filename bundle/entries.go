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
package bundle

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/bindle/fs"
)

// skipDirs are never searched for entry globs.
var skipDirs = []string{"node_modules", ".git"}

// expandEntries replaces glob entries with the matching files under root,
// as "./"-relative specifiers in sorted order. Other entries are kept as
// written.
func expandEntries(fsys fs.FileSystem, root string, entries []string) []string {
	var out []string
	for _, entry := range entries {
		if !strings.ContainsAny(entry, "*?[{") {
			out = append(out, entry)
			continue
		}
		pattern := strings.TrimPrefix(filepath.ToSlash(entry), "./")
		var matches []string
		walkFiles(fsys, root, "", func(rel string) {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				matches = append(matches, "./"+rel)
			}
		})
		slices.Sort(matches)
		out = append(out, matches...)
	}
	return slices.Compact(out)
}

func walkFiles(fsys fs.FileSystem, root, rel string, fn func(rel string)) {
	entries, err := fsys.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		child := name
		if rel != "" {
			child = rel + "/" + name
		}
		if entry.IsDir() {
			if !slices.Contains(skipDirs, name) {
				walkFiles(fsys, root, child, fn)
			}
			continue
		}
		fn(child)
	}
}
