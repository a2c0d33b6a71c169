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
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"

	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/module"
)

const defaultDocument = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>%s</title>
  </head>
  <body>
  </body>
</html>
`

// DropFunc reports whether a tag of the source page should be removed,
// given its name and attributes.
type DropFunc func(tag string, attrs map[string]string) bool

// InjectHTML inserts tags at the end of <head>, or after the opening
// <head> tag when it is never closed. Tags for which drop returns true are
// removed along with their content.
func InjectHTML(content []byte, drop DropFunc, tags []string) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(content))
	var (
		out      bytes.Buffer
		skipping string
		dropped  bool
		injected bool
		headOpen = -1
	)

	inject := func(indent string) {
		for _, tag := range tags {
			out.WriteString("  " + tag + "\n" + indent)
		}
		injected = true
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return nil, z.Err()
			}
			break
		}
		raw := z.Raw()

		if skipping != "" {
			if name, _ := z.TagName(); tt == html.EndTagToken && string(name) == skipping {
				skipping = ""
			}
			continue
		}
		if dropped && tt == html.TextToken {
			raw = bytes.TrimPrefix(raw, []byte("\n"))
		}
		dropped = false

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}
			if drop != nil && drop(tag, attrs) {
				if tag == "script" && tt == html.StartTagToken {
					skipping = tag
				}
				trimIndent(&out)
				dropped = true
				continue
			}
			out.Write(raw)
			if tag == "head" {
				headOpen = out.Len()
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" && !injected {
				inject(currentIndent(out.Bytes()))
			}
			out.Write(raw)
		default:
			out.Write(raw)
		}
	}

	if !injected {
		if headOpen < 0 {
			return nil, fmt.Errorf("could not find insertion point (no <head> tag)")
		}
		rest := bytes.Clone(out.Bytes()[headOpen:])
		out.Truncate(headOpen)
		out.WriteString("\n")
		inject("")
		out.Write(rest)
	}
	return out.Bytes(), nil
}

// currentIndent returns the whitespace after the last newline of b.
func currentIndent(b []byte) string {
	line := b[bytes.LastIndexByte(b, '\n')+1:]
	if len(bytes.TrimLeft(line, " \t")) != 0 {
		return ""
	}
	return string(line)
}

// trimIndent removes a dropped tag's line indentation.
func trimIndent(out *bytes.Buffer) {
	indent := currentIndent(out.Bytes())
	if indent != "" {
		out.Truncate(out.Len() - len(indent))
	}
}

// emitHTML writes a page per HTML entry and, when configured, one page
// loading every other entry.
func (e *Emitter) emitHTML(g *graph.Graph, out *Output, chunks []*chunk.Chunk) error {
	var pages []*chunk.Chunk
	for _, c := range chunks {
		if c.Kind != chunk.Entry {
			continue
		}
		root := c.Roots[0]
		if ext := root.Ext(); ext != ".html" && ext != ".htm" {
			pages = append(pages, c)
			continue
		}
		rec, _ := g.Get(root)
		page, err := InjectHTML(rec.Code, bundled(rec), e.tags(chunks, out, c))
		if err != nil {
			return fmt.Errorf("%s: %w", root, err)
		}
		out.Assets = append(out.Assets, e.asset(c.Name+".html", c.Name, page))
	}

	if e.opts.HTML == nil || len(pages) == 0 {
		return nil
	}
	doc := []byte(fmt.Sprintf(defaultDocument, html.EscapeString(e.opts.HTML.Title)))
	if e.opts.HTML.Template != "" {
		var err error
		if doc, err = e.opts.FS.ReadFile(e.opts.HTML.Template); err != nil {
			return fmt.Errorf("reading HTML template: %w", err)
		}
	}
	page, err := InjectHTML(doc, nil, e.tags(chunks, out, pages...))
	if err != nil {
		return fmt.Errorf("%s: %w", e.opts.HTML.Template, err)
	}
	out.Assets = append(out.Assets, e.asset(path.Clean(e.opts.HTML.Filename), "", page))
	return nil
}

// bundled drops the script and stylesheet tags whose targets were bundled.
func bundled(rec *module.Record) DropFunc {
	specs := make(map[string]bool)
	for _, edge := range rec.Edges {
		if edge.Kind == module.Eager && edge.Err == nil {
			specs[edge.Specifier] = true
		}
	}
	return func(tag string, attrs map[string]string) bool {
		switch tag {
		case "script":
			return specs[attrs["src"]]
		case "link":
			return strings.EqualFold(attrs["rel"], "stylesheet") && specs[attrs["href"]]
		}
		return false
	}
}

// tags returns stylesheet links, then prefetch hints, then deferred
// scripts for entries and the chunks they require, dependencies first.
func (e *Emitter) tags(chunks []*chunk.Chunk, out *Output, entries ...*chunk.Chunk) []string {
	var names, prefetch []string
	seen := make(map[string]bool)
	for _, c := range entries {
		for _, name := range append(loadOrder(chunks, c.Requires), c.Name) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		prefetch = append(prefetch, c.Prefetch...)
	}

	var links, scripts []string
	for _, name := range names {
		files := out.Files[name]
		if files.CSS != "" {
			links = append(links, `<link rel="stylesheet" href="`+html.EscapeString(e.url(files.CSS))+`">`)
		}
		scripts = append(scripts, `<script defer src="`+html.EscapeString(e.url(files.JS))+`"></script>`)
	}
	for _, name := range prefetch {
		if files, ok := out.Files[name]; ok && !seen[name] {
			seen[name] = true
			links = append(links, `<link rel="prefetch" href="`+html.EscapeString(e.url(files.JS))+`">`)
		}
	}
	return append(links, scripts...)
}
