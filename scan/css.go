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
package scan

import (
	"regexp"
	"slices"
)

var (
	cssImportRule = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']?([^"')\s;]+)["']?\s*\)?[^;]*;`)
	cssURL        = regexp.MustCompile(`url\(\s*["']?([^"')]+?)["']?\s*\)`)
)

// CSS extracts @import rules and url() references from a stylesheet.
// References to external URLs, data URIs, and fragments are skipped.
func CSS(content []byte) ([]Import, error) {
	var imports []Import
	var ruleSpans [][]int

	for _, m := range cssImportRule.FindAllSubmatchIndex(content, -1) {
		ruleSpans = append(ruleSpans, m[:2])
		spec := string(content[m[2]:m[3]])
		if isExternalURL(spec) {
			continue
		}
		imports = append(imports, Import{Specifier: spec, Kind: Static, Line: lineAt(content, m[2])})
	}

	for _, m := range cssURL.FindAllSubmatchIndex(content, -1) {
		inRule := slices.ContainsFunc(ruleSpans, func(span []int) bool {
			return m[0] >= span[0] && m[0] < span[1]
		})
		if inRule {
			continue
		}
		spec := string(content[m[2]:m[3]])
		if isExternalURL(spec) || spec[0] == '/' {
			continue
		}
		imports = append(imports, Import{Specifier: spec, Kind: Asset, Line: lineAt(content, m[2])})
	}

	return imports, nil
}
