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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/transform/stages"
)

// ModuleKey is the name a module is registered under at runtime: its
// root-relative slash path plus query, or the external ID.
func ModuleKey(root string, id module.ID) string {
	if id.IsExternal() {
		return id.String()
	}
	key := filepath.ToSlash(id.Path)
	if rel, err := filepath.Rel(root, id.Path); err == nil {
		key = filepath.ToSlash(rel)
	}
	if id.Query != "" {
		key += "?" + id.Query
	}
	return key
}

// dynamicImport matches import() calls left in linked code.
var dynamicImport = regexp.MustCompile(`(^|[^\w$.])import\s*\(`)

// linked is one module converted to a registry definition.
type linked struct {
	key  string
	code string
	// css is the module's stylesheet when it is extracted.
	css       string
	sourceMap []byte
}

// link converts a record to a define call. Stylesheets become empty
// modules with their code returned separately; HTML modules require their
// eager imports in order.
func (e *Emitter) link(rec *module.Record) (*linked, error) {
	key := ModuleKey(e.opts.Root, rec.ID)
	deps := make(map[string]string)
	for _, edge := range rec.Edges {
		if edge.Err == nil && !edge.Resolved.IsZero() {
			deps[edge.Specifier] = ModuleKey(e.opts.Root, edge.Resolved)
		}
	}
	out := &linked{key: key}

	var body string
	switch ext := rec.ID.Ext(); {
	case rec.Err != nil:
		body = "throw new Error(" + jsString(rec.Err.Error()) + ");\n"
	case rec.ID.IsExternal():
		body = string(rec.Code)
	case ext == ".css":
		out.css = string(rec.Code)
	case ext == ".html" || ext == ".htm":
		var b strings.Builder
		for _, edge := range rec.Edges {
			if edge.Kind == module.Eager && edge.Err == nil {
				b.WriteString("require(" + jsString(edge.Specifier) + ");\n")
			}
		}
		body = b.String()
	default:
		code, sourceMap, err := e.toCommonJS(rec)
		if err != nil {
			return nil, fmt.Errorf("linking %s: %w", key, err)
		}
		body = dynamicImport.ReplaceAllString(code, "${1}require.async(")
		out.sourceMap = sourceMap
	}

	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return nil, err
	}
	out.code = "__bindle__.define(" + jsString(key) + ", " + string(depsJSON) +
		", function (module, exports, require) {\n" + body + "});\n"
	return out, nil
}

// toCommonJS rewrites module syntax to the registry's require.
func (e *Emitter) toCommonJS(rec *module.Record) (string, []byte, error) {
	loader := loaderFor(rec)
	opts := api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Sourcefile: ModuleKey(e.opts.Root, rec.ID),
		Supported:  map[string]bool{"dynamic-import": true},
	}
	code := string(rec.Code)
	if len(rec.SourceMap) > 0 {
		opts.Sourcemap = api.SourceMapExternal
		code += "\n//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(rec.SourceMap) + "\n"
	}
	result := api.Transform(code, opts)
	if len(result.Errors) > 0 {
		msgs := make([]error, len(result.Errors))
		for i, m := range result.Errors {
			msgs[i] = errors.New(m.Text)
		}
		return "", nil, errors.Join(msgs...)
	}
	return string(result.Code), result.Map, nil
}

func loaderFor(rec *module.Record) api.Loader {
	ext := rec.ID.Ext()
	if ext == ".json" {
		return api.LoaderJSON
	}
	if l, ok := stages.LoaderFor(ext); ok && l != api.LoaderCSS {
		return l
	}
	if rec.ConfigKey != "" {
		// A transform turned it into a JavaScript module.
		return api.LoaderJS
	}
	if isText(ext) {
		return api.LoaderText
	}
	return api.LoaderBase64
}

func isText(ext string) bool {
	switch ext {
	case ".txt", ".md", ".svg", ".xml", ".csv", ".glsl":
		return true
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "text/")
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
