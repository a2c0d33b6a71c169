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
package emit

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"bennypowers.dev/bindle/fingerprint"
)

// Default filename templates.
const (
	DefaultFilename      = "[name].[contenthash:10].js"
	DefaultChunkFilename = "[name].[contenthash:10].chunk.js"
	DefaultCSSFilename   = "[name].[contenthash:10].css"
)

// Template is an output filename pattern with bracketed placeholders.
// Supported placeholders:
//   - [name] - chunk or artifact name
//   - [contenthash], [contenthash:N] - fingerprint of the file content
//   - [hash], [hash:N] - alias of [contenthash]
//   - [ext] - extension without the leading dot
type Template struct {
	pattern   string
	variables []string
}

var placeholderPattern = regexp.MustCompile(`\[(\w+)(?::(\d+))?\]`)

// ParseTemplate parses a filename template.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, fmt.Errorf("template pattern cannot be empty")
	}

	var variables []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(pattern, -1) {
		switch match[1] {
		case "name", "ext":
			if match[2] != "" {
				return nil, fmt.Errorf("placeholder [%s] takes no length", match[1])
			}
		case "contenthash", "hash":
		default:
			return nil, fmt.Errorf("unknown template placeholder: [%s]", match[1])
		}
		variables = append(variables, match[1])
	}

	return &Template{
		pattern:   pattern,
		variables: variables,
	}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(pattern string) *Template {
	t, err := ParseTemplate(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Expand substitutes the placeholders. hash is the full content digest;
// length suffixes truncate it.
func (t *Template) Expand(name, hash, ext string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.pattern, func(m string) string {
		match := placeholderPattern.FindStringSubmatch(m)
		switch match[1] {
		case "name":
			return name
		case "ext":
			return strings.TrimPrefix(ext, ".")
		default:
			n, _ := strconv.Atoi(match[2])
			return fingerprint.Short(hash, n)
		}
	})
}

// Pattern returns the original template pattern.
func (t *Template) Pattern() string {
	return t.pattern
}

// Variables returns the placeholders used in the template.
func (t *Template) Variables() []string {
	return t.variables
}

// HasHash reports whether the expanded name depends on file content.
func (t *Template) HasHash() bool {
	return slices.Contains(t.variables, "contenthash") || slices.Contains(t.variables, "hash")
}
