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
	"encoding/json"
	"path"
	"path/filepath"
	"strings"

	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/module"
)

// Metafile describes a build in the shape of esbuild's metafile.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput is one module.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
}

// MetafileImport is one import of a module or output.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput is one emitted JavaScript file.
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
	CSSBundle  string                  `json:"cssBundle,omitempty"`
}

// InputContrib is a module's share of an output.
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// JSON returns the indented metafile.
func (m *Metafile) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func (e *Emitter) metafile(g *graph.Graph, chunks []*chunk.Chunk, bodies []*rendered, out *Output) *Metafile {
	m := &Metafile{
		Inputs:  make(map[string]MetafileInput, g.Len()),
		Outputs: make(map[string]MetafileOutput, len(chunks)),
	}
	for _, rec := range g.Records() {
		in := MetafileInput{Bytes: len(rec.Code), Imports: []MetafileImport{}}
		for _, edge := range rec.Edges {
			if edge.Err != nil {
				continue
			}
			in.Imports = append(in.Imports, MetafileImport{
				Path:     ModuleKey(e.opts.Root, edge.Resolved),
				Kind:     importKind(rec.ID, edge),
				External: edge.Resolved.IsExternal(),
				Original: edge.Specifier,
			})
		}
		m.Inputs[ModuleKey(e.opts.Root, rec.ID)] = in
	}

	outDir := filepath.ToSlash(filepath.Clean(e.opts.OutDir))
	if e.opts.Library != nil {
		files := out.Files[e.opts.Library.Name]
		o := MetafileOutput{Inputs: map[string]InputContrib{}, Imports: []MetafileImport{}, CSSBundle: cssPath(outDir, files.CSS)}
		for _, r := range bodies {
			for key, n := range r.bytes {
				o.Inputs[key] = InputContrib{BytesInOutput: n}
			}
		}
		if a, ok := out.Asset(files.JS); ok {
			o.Bytes = a.Size
		}
		m.Outputs[path.Join(outDir, files.JS)] = o
		return m
	}

	for i, c := range chunks {
		files := out.Files[c.Name]
		o := MetafileOutput{
			Inputs:    make(map[string]InputContrib, len(bodies[i].bytes)),
			Imports:   []MetafileImport{},
			CSSBundle: cssPath(outDir, files.CSS),
		}
		if a, ok := out.Asset(files.JS); ok {
			o.Bytes = a.Size
		}
		for key, n := range bodies[i].bytes {
			o.Inputs[key] = InputContrib{BytesInOutput: n}
		}
		for _, name := range c.Requires {
			o.Imports = append(o.Imports, MetafileImport{Path: path.Join(outDir, out.Files[name].JS), Kind: "import-statement"})
		}
		for _, name := range c.Async {
			o.Imports = append(o.Imports, MetafileImport{Path: path.Join(outDir, out.Files[name].JS), Kind: "dynamic-import"})
		}
		if c.Kind == chunk.Entry {
			o.EntryPoint = ModuleKey(e.opts.Root, c.Roots[0])
		}
		m.Outputs[path.Join(outDir, files.JS)] = o
	}
	return m
}

func cssPath(outDir, name string) string {
	if name == "" {
		return ""
	}
	return path.Join(outDir, name)
}

func importKind(from module.ID, edge module.Edge) string {
	switch {
	case edge.Kind == module.Deferred:
		return "dynamic-import"
	case from.Ext() == ".css":
		if strings.HasSuffix(edge.Resolved.Path, ".css") {
			return "import-rule"
		}
		return "url-token"
	default:
		return "import-statement"
	}
}
