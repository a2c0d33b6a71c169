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
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTML extracts the modules an HTML entry loads: external scripts,
// stylesheets, images, and the imports of inline module scripts.
func HTML(content []byte) ([]Import, error) {
	z := html.NewTokenizer(bytes.NewReader(content))

	var (
		imports  []Import
		offset   int
		inModule bool
		inlineAt int
	)

	for {
		tt := z.Next()
		raw := z.Raw()
		line := lineAt(content, offset)
		offset += len(raw)

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return imports, nil
			}
			return imports, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}

			switch string(name) {
			case "script":
				if src := attrs["src"]; src != "" {
					if !isExternalURL(src) {
						imports = append(imports, Import{Specifier: src, Kind: Script, Line: line})
					}
				} else if attrs["type"] == "module" && tt == html.StartTagToken {
					inModule = true
					inlineAt = offset
				}
			case "link":
				rel := strings.ToLower(attrs["rel"])
				href := attrs["href"]
				if rel == "stylesheet" && !isExternalURL(href) {
					imports = append(imports, Import{Specifier: href, Kind: Asset, Line: line})
				}
			case "img":
				if src := attrs["src"]; !isExternalURL(src) {
					imports = append(imports, Import{Specifier: src, Kind: Asset, Line: line})
				}
			}

		case html.TextToken:
			if !inModule {
				continue
			}
			inline, err := JavaScript(raw)
			if err != nil {
				return imports, err
			}
			base := lineAt(content, inlineAt) - 1
			for _, imp := range inline {
				imp.Line += base
				imports = append(imports, imp)
			}

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "script" {
				inModule = false
			}
		}
	}
}
