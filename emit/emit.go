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

// Package emit writes a build result to an output directory: one
// JavaScript file per chunk with a small module registry, extracted
// stylesheets, source maps, module artifacts, HTML pages, a precache
// manifest, and an esbuild-style metafile.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/hmr"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/module"
)

// PrecacheManifest is the name of the precache manifest asset.
const PrecacheManifest = "precache-manifest.json"

// Options configures an Emitter.
type Options struct {
	FS fs.FileSystem
	// Root is the project root module keys are relative to.
	Root   string
	OutDir string
	// PublicPath prefixes asset URLs in HTML and the runtime. Default "/".
	PublicPath string

	Filename      string
	ChunkFilename string
	CSSFilename   string

	HTML     *HTMLOptions
	Precache bool
	Library  *Library

	Fingerprint fingerprint.Algorithm
	Jobs        int
	// DryRun computes assets without writing them.
	DryRun bool
	Logger logging.Logger
}

// HTMLOptions configures the generated page.
type HTMLOptions struct {
	// Template is the path of the page to inject tags into. Empty uses a
	// blank document.
	Template string
	// Filename defaults to index.html.
	Filename string
	Title    string
}

// Library writes every module into one file that exposes the registry's
// require function as a global, for pre-bundled libraries.
type Library struct {
	Name   string
	Global string
}

// Asset is one emitted file.
type Asset struct {
	// Name is the slash path relative to OutDir.
	Name     string `json:"name"`
	Chunk    string `json:"chunk,omitempty"`
	Revision string `json:"revision"`
	Size     int    `json:"size"`
	Data     []byte `json:"-"`
}

// ChunkFiles are the files emitted for one chunk.
type ChunkFiles struct {
	JS  string `json:"js"`
	CSS string `json:"css,omitempty"`
	Map string `json:"map,omitempty"`
}

// Output describes everything an Emit call produced.
type Output struct {
	Assets   []*Asset
	Files    map[string]ChunkFiles
	Metafile *Metafile
	// Manifest is the runtime statement registering chunk URLs and the
	// chunks each on-demand module needs. Entry chunks start with it.
	Manifest string
	// ManifestChanged is set when Manifest differs from the one this
	// Emitter produced last.
	ManifestChanged bool
}

// Asset returns the asset with the given name.
func (o *Output) Asset(name string) (*Asset, bool) {
	for _, a := range o.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Emitter renders build results.
type Emitter struct {
	opts          Options
	filename      *Template
	chunkFilename *Template
	cssFilename   *Template
	logger        logging.Logger

	mu       sync.Mutex
	manifest string
}

// New validates opts and returns an Emitter.
func New(opts Options) (*Emitter, error) {
	if opts.FS == nil {
		opts.FS = fs.NewOSFileSystem()
	}
	if opts.PublicPath == "" {
		opts.PublicPath = "/"
	}
	if opts.Fingerprint == "" {
		opts.Fingerprint = fingerprint.Default
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.HTML != nil && opts.HTML.Filename == "" {
		opts.HTML.Filename = "index.html"
	}
	e := &Emitter{opts: opts, logger: logging.OrDiscard(opts.Logger)}

	var err error
	for _, t := range []struct {
		dst     **Template
		pattern string
		def     string
	}{
		{&e.filename, opts.Filename, DefaultFilename},
		{&e.chunkFilename, opts.ChunkFilename, DefaultChunkFilename},
		{&e.cssFilename, opts.CSSFilename, DefaultCSSFilename},
	} {
		if t.pattern == "" {
			t.pattern = t.def
		}
		if *t.dst, err = ParseTemplate(t.pattern); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// rendered is the module section of one chunk.
type rendered struct {
	js       strings.Builder
	lines    int
	css      strings.Builder
	sections []section
	// bytes is each module's contribution to the JS, by module key.
	bytes map[string]int
}

type section struct {
	line int
	m    json.RawMessage
}

func (r *rendered) write(s string) {
	r.js.WriteString(s)
	r.lines += strings.Count(s, "\n")
}

// Emit renders result and, unless DryRun is set, writes it to OutDir.
func (e *Emitter) Emit(ctx context.Context, result *bundle.Result) (*Output, error) {
	g, chunks := result.Graph, result.Chunks

	bodies := make([]*rendered, len(chunks))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.Jobs)
	for i, c := range chunks {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			r, err := e.render(g, c)
			bodies[i] = r
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &Output{Files: make(map[string]ChunkFiles)}
	if e.opts.Library != nil {
		e.emitLibrary(out, chunks, bodies)
	} else {
		e.emitChunks(g, out, chunks, bodies)
		if err := e.emitHTML(g, out, chunks); err != nil {
			return nil, err
		}
	}
	e.emitArtifacts(g, out)
	out.ManifestChanged = e.swapManifest(out.Manifest)
	out.Metafile = e.metafile(g, chunks, bodies, out)

	slices.SortFunc(out.Assets, func(a, b *Asset) int { return strings.Compare(a.Name, b.Name) })
	if e.opts.Precache {
		if err := e.emitPrecache(out); err != nil {
			return nil, err
		}
	}

	if !e.opts.DryRun {
		if err := e.write(ctx, out.Assets); err != nil {
			return nil, err
		}
	}
	e.logger.Info("Emitted assets", "count", len(out.Assets), "outDir", e.opts.OutDir, "dryRun", e.opts.DryRun)
	return out, nil
}

// EmitUpdate emits the result of a rebuild and attaches the new runtime
// manifest to update when chunk URLs moved.
func (e *Emitter) EmitUpdate(ctx context.Context, result *bundle.Result, update *hmr.Update) (*Output, error) {
	out, err := e.Emit(ctx, result)
	if err != nil {
		return nil, err
	}
	if out.ManifestChanged {
		update.Manifest = out.Manifest
	}
	return out, nil
}

// swapManifest records m and reports whether an earlier, different
// manifest was replaced.
func (e *Emitter) swapManifest(m string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.manifest != "" && e.manifest != m
	if m != "" {
		e.manifest = m
	}
	return changed
}

// render links the modules of c.
func (e *Emitter) render(g *graph.Graph, c *chunk.Chunk) (*rendered, error) {
	r := &rendered{bytes: make(map[string]int, len(c.Modules))}
	for _, id := range c.Modules {
		rec, ok := g.Get(id)
		if !ok {
			continue
		}
		l, err := e.link(rec)
		if err != nil {
			return nil, err
		}
		if l.sourceMap != nil {
			r.sections = append(r.sections, section{line: r.lines + 1, m: l.sourceMap})
		}
		r.bytes[l.key] = len(l.code)
		r.write(l.code)
		if l.css != "" {
			r.css.WriteString("/* " + l.key + " */\n" + l.css)
			if !strings.HasSuffix(l.css, "\n") {
				r.css.WriteString("\n")
			}
		}
	}
	return r, nil
}

func (e *Emitter) emitChunks(g *graph.Graph, out *Output, chunks []*chunk.Chunk, bodies []*rendered) {
	urls := make(map[string][]string)
	owner := make(map[module.ID]*chunk.Chunk)
	for i, c := range chunks {
		for _, id := range c.Modules {
			owner[id] = c
		}
		if c.Kind == chunk.Entry {
			continue
		}
		js := bodies[i].js.String() + "__bindle__.loaded(" + jsString(c.Name) + ");\n"
		files := e.addChunk(out, c, e.chunkFilename, js, bodies[i], 0)
		urls[c.Name] = []string{e.url(files.JS)}
		if files.CSS != "" {
			urls[c.Name] = append(urls[c.Name], e.url(files.CSS))
		}
	}

	async := make(map[string][]string)
	for _, rec := range g.Records() {
		for _, edge := range rec.Edges {
			if edge.Kind != module.Deferred || edge.Err != nil {
				continue
			}
			target, ok := owner[edge.Resolved]
			if !ok || target.Kind == chunk.Entry {
				continue
			}
			async[ModuleKey(e.opts.Root, edge.Resolved)] = loadOrder(chunks, []string{target.Name})
		}
	}
	urlsJSON, _ := json.Marshal(urls)
	asyncJSON, _ := json.Marshal(async)

	out.Manifest = "__bindle__.register(" + string(urlsJSON) + ", " + string(asyncJSON) + ");\n"

	for i, c := range chunks {
		if c.Kind != chunk.Entry {
			continue
		}
		prelude := runtimeJS + out.Manifest
		var js strings.Builder
		js.WriteString(prelude)
		js.WriteString(bodies[i].js.String())
		if len(c.Prefetch) > 0 {
			names, _ := json.Marshal(c.Prefetch)
			js.WriteString("__bindle__.prefetch(" + string(names) + ");\n")
		}
		requires, _ := json.Marshal(nonNil(loadOrder(chunks, c.Requires)))
		js.WriteString("__bindle__.start(" + string(requires) + ", " + jsString(ModuleKey(e.opts.Root, c.Roots[0])) + ");\n")
		e.addChunk(out, c, e.filename, js.String(), bodies[i], strings.Count(prelude, "\n"))
	}
}

func (e *Emitter) emitLibrary(out *Output, chunks []*chunk.Chunk, bodies []*rendered) {
	lib := e.opts.Library
	merged := &rendered{}
	merged.write(runtimeJS)
	for _, r := range bodies {
		for _, s := range r.sections {
			merged.sections = append(merged.sections, section{line: merged.lines + s.line, m: s.m})
		}
		merged.write(r.js.String())
		merged.css.WriteString(r.css.String())
	}
	merged.write("(typeof self !== \"undefined\" ? self : globalThis)[" + jsString(lib.Global) + "] = __bindle__.require;\n")
	libChunk := &chunk.Chunk{Name: lib.Name}
	for _, c := range chunks {
		libChunk.Modules = append(libChunk.Modules, c.Modules...)
	}
	e.addChunk(out, libChunk, e.filename, merged.js.String(), merged, 0)
}

// addChunk names and records the JS, CSS, and source map of a chunk whose
// module section starts after offset lines of js.
func (e *Emitter) addChunk(out *Output, c *chunk.Chunk, tmpl *Template, js string, r *rendered, offset int) ChunkFiles {
	alg := e.opts.Fingerprint
	files := ChunkFiles{JS: tmpl.Expand(c.Name, alg.Sum([]byte(js)), ".js")}

	if len(r.sections) > 0 {
		files.Map = files.JS + ".map"
		js += "//# sourceMappingURL=" + path.Base(files.Map) + "\n"
		out.Assets = append(out.Assets, e.asset(files.Map, c.Name, indexMap(path.Base(files.JS), r.sections, offset)))
	}
	out.Assets = append(out.Assets, e.asset(files.JS, c.Name, []byte(js)))

	if css := r.css.String(); css != "" {
		files.CSS = e.cssFilename.Expand(c.Name, alg.Sum([]byte(css)), ".css")
		out.Assets = append(out.Assets, e.asset(files.CSS, c.Name, []byte(css)))
	}
	out.Files[c.Name] = files
	return files
}

func (e *Emitter) emitArtifacts(g *graph.Graph, out *Output) {
	seen := make(map[string]bool)
	for _, rec := range g.Records() {
		for _, a := range rec.Artifacts {
			name := strings.TrimPrefix(path.Clean(filepath.ToSlash(a.VirtualPath)), "/")
			if seen[name] {
				continue
			}
			seen[name] = true
			out.Assets = append(out.Assets, e.asset(name, "", a.Bytes))
		}
	}
}

func (e *Emitter) asset(name, chunkName string, data []byte) *Asset {
	return &Asset{
		Name:     name,
		Chunk:    chunkName,
		Revision: fingerprint.Short(e.opts.Fingerprint.Sum(data), 32),
		Size:     len(data),
		Data:     data,
	}
}

func (e *Emitter) url(name string) string {
	return strings.TrimSuffix(e.opts.PublicPath, "/") + "/" + name
}

// write stores assets under OutDir concurrently.
func (e *Emitter) write(ctx context.Context, assets []*Asset) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.Jobs)
	for _, a := range assets {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(e.opts.OutDir, filepath.FromSlash(a.Name))
			if err := e.opts.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
			}
			if err := e.opts.FS.WriteFile(dst, a.Data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", a.Name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// loadOrder returns names and the non-entry chunks they require,
// transitively, with requirements before the chunks that need them.
func loadOrder(chunks []*chunk.Chunk, names []string) []string {
	var order []string
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		c, ok := chunk.ByName(chunks, name)
		if !ok || c.Kind == chunk.Entry {
			return
		}
		for _, dep := range c.Requires {
			visit(dep)
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// indexMap combines per-module source maps into a sectioned source map.
func indexMap(file string, sections []section, offset int) []byte {
	type offsetJSON struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	}
	type sectionJSON struct {
		Offset offsetJSON      `json:"offset"`
		Map    json.RawMessage `json:"map"`
	}
	m := struct {
		Version  int           `json:"version"`
		File     string        `json:"file"`
		Sections []sectionJSON `json:"sections"`
	}{Version: 3, File: file}
	for _, s := range sections {
		m.Sections = append(m.Sections, sectionJSON{Offset: offsetJSON{Line: s.line + offset}, Map: s.m})
	}
	data, _ := json.Marshal(m)
	return data
}
