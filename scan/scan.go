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

// Package scan discovers the import specifiers declared by module source.
package scan

import (
	"path/filepath"
	"strings"
)

// Kind classifies how an import was written.
type Kind int

const (
	// Static is an import or @import statement.
	Static Kind = iota
	// ReExport is an export ... from statement.
	ReExport
	// Dynamic is an import() expression.
	Dynamic
	// Require is a CommonJS require() call.
	Require
	// Script is a <script src> reference in HTML.
	Script
	// Asset is a stylesheet, image, or url() reference.
	Asset
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "import-statement"
	case ReExport:
		return "re-export"
	case Dynamic:
		return "dynamic-import"
	case Require:
		return "require-call"
	case Script:
		return "script-tag"
	case Asset:
		return "asset-url"
	default:
		return "unknown"
	}
}

// Import is one import declared by a module.
type Import struct {
	Specifier string
	Kind      Kind
	Line      int // 1-indexed
	// Prefetch is set for dynamic imports annotated with webpackPrefetch.
	Prefetch bool
	// ChunkName is the webpackChunkName annotation of a dynamic import.
	ChunkName string
}

// Scanner extracts imports from module code.
type Scanner interface {
	Scan(content []byte) ([]Import, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(content []byte) ([]Import, error)

func (f ScannerFunc) Scan(content []byte) ([]Import, error) {
	return f(content)
}

var (
	javaScriptScanner = ScannerFunc(JavaScript)
	tsxScanner        = ScannerFunc(TSX)
	cssScanner        = ScannerFunc(CSS)
	htmlScanner       = ScannerFunc(HTML)
)

// ForPath returns the scanner for a module path by extension, or nil for
// files that cannot import anything (images, JSON, text).
func ForPath(path string) Scanner {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".ts", ".mts", ".cts":
		return javaScriptScanner
	case ".jsx", ".tsx":
		return tsxScanner
	case ".css":
		return cssScanner
	case ".html", ".htm":
		return htmlScanner
	default:
		return nil
	}
}

// lineAt returns the 1-indexed line of byte offset off.
func lineAt(content []byte, off int) int {
	if off > len(content) {
		off = len(content)
	}
	return strings.Count(string(content[:off]), "\n") + 1
}

// isExternalURL reports whether a reference points outside the bundle.
func isExternalURL(ref string) bool {
	return ref == "" ||
		strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "//") ||
		strings.Contains(ref, "://")
}
