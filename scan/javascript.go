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
	"fmt"
	"regexp"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

var (
	prefetchAnnotation  = regexp.MustCompile(`webpackPrefetch\s*:\s*true`)
	chunkNameAnnotation = regexp.MustCompile(`webpackChunkName\s*:\s*["']([^"']+)["']`)
)

// JavaScript extracts imports from JavaScript or TypeScript source.
// Type-only imports and exports are skipped since they vanish from output.
func JavaScript(content []byte) ([]Import, error) {
	return extractImports("typescript", content)
}

// TSX is JavaScript for sources containing JSX.
func TSX(content []byte) ([]Import, error) {
	return extractImports("tsx", content)
}

func extractImports(language string, content []byte) ([]Import, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}
	query, err := qm.Query(language, "imports")
	if err != nil {
		return nil, err
	}

	parser := getParser(language)
	defer putParser(language, parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []Import
	matches := cursor.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		for _, capture := range match.Captures {
			imp := Import{
				Specifier: capture.Node.Utf8Text(content),
				Line:      int(capture.Node.StartPosition().Row) + 1,
			}

			switch captureNames[capture.Index] {
			case "import.spec":
				if isTypeOnly(&capture.Node, content) {
					continue
				}
				imp.Kind = Static
			case "reexport.spec":
				if isTypeOnly(&capture.Node, content) {
					continue
				}
				imp.Kind = ReExport
			case "dynamicImport.spec":
				imp.Kind = Dynamic
				if args := argumentsOf(&capture.Node); args != nil {
					annotations := args.Utf8Text(content)
					imp.Prefetch = prefetchAnnotation.MatchString(annotations)
					if m := chunkNameAnnotation.FindStringSubmatch(annotations); m != nil {
						imp.ChunkName = m[1]
					}
				}
			case "require.spec":
				imp.Kind = Require
			default:
				continue
			}
			imports = append(imports, imp)
		}
	}

	return imports, nil
}

// isTypeOnly reports whether the statement holding a source string is an
// "import type" or "export type" declaration.
func isTypeOnly(fragment *ts.Node, content []byte) bool {
	stmt := fragment.Parent()
	if stmt != nil {
		stmt = stmt.Parent()
	}
	if stmt == nil {
		return false
	}
	text := stmt.Utf8Text(content)
	return strings.HasPrefix(text, "import type ") || strings.HasPrefix(text, "export type ")
}

// argumentsOf returns the arguments node of the call holding a string fragment.
func argumentsOf(fragment *ts.Node) *ts.Node {
	str := fragment.Parent()
	if str == nil {
		return nil
	}
	return str.Parent()
}
