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
package bundle_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/chunk"
	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/hmr"
	"bennypowers.dev/bindle/internal/mapfs"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/testutil"
	"bennypowers.dev/bindle/transform"
)

func newSession(t *testing.T, fsys *mapfs.MapFileSystem, mutate func(*bundle.Options)) *bundle.Session {
	t.Helper()
	opts := bundle.Options{
		FS:       fsys,
		Root:     "/p",
		Entries:  []string{"./a.js"},
		Scanners: testutil.LineScanners,
		Jobs:     4,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := bundle.NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(s.Dispose)
	return s
}

func id(path string) module.ID {
	return module.New(path, "")
}

func chunkNames(chunks []*chunk.Chunk) []string {
	names := make([]string, len(chunks))
	for i, c := range chunks {
		names[i] = c.Name
	}
	return names
}

func TestBuild(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js":      "import ./shared.js\nlazy ./page.js\n",
		"/p/b.js":      "import ./shared.js\n",
		"/p/shared.js": "export const x = 1\n",
		"/p/page.js":   "export default 'page'\n",
	})
	s := newSession(t, fsys, func(o *bundle.Options) {
		o.Entries = []string{"./a.js", "./b.js"}
	})

	result, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Graph.Len() != 4 {
		t.Errorf("Expected 4 modules, got %d", result.Graph.Len())
	}
	want := []string{"a", "b", "shared~a~b", "async-page"}
	if got := chunkNames(result.Chunks); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected chunks %v, got %v", want, got)
	}
	if len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Errorf("Expected a clean build, got errors %v warnings %v", result.Errors, result.Warnings)
	}
	if s.Result() != result {
		t.Error("Expected Result to return the latest build")
	}
	if got := s.Entries(); !reflect.DeepEqual(got, []module.ID{id("/p/a.js"), id("/p/b.js")}) {
		t.Errorf("Unexpected entries %v", got)
	}
}

func TestBuildGlobEntries(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/pages/home.js":                   "import ../lib.js\n",
		"/p/pages/about.js":                  "import ../lib.js\n",
		"/p/pages/readme.md":                 "not an entry\n",
		"/p/lib.js":                          "export {}\n",
		"/p/node_modules/x/pages/ignored.js": "\n",
	})
	s := newSession(t, fsys, func(o *bundle.Options) {
		o.Entries = []string{"./pages/*.js"}
	})

	result, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := []module.ID{id("/p/pages/about.js"), id("/p/pages/home.js")}
	if got := result.Graph.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected entries %v, got %v", want, got)
	}
}

func TestBuildFatal(t *testing.T) {
	failing := transform.Registration{
		Name:    "reject",
		Include: []string{"bad.js"},
		Fn: func(context.Context, transform.Source) (transform.Result, error) {
			return transform.Result{}, errors.New("syntax error")
		},
	}
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js":   "import ./gone.js\n",
		"/p/bad.js": "???\n",
	})

	tests := []struct {
		name   string
		entry  string
		module module.ID
	}{
		{name: "unresolvable entry", entry: "./missing.js"},
		{name: "entry fails to transform", entry: "./bad.js", module: id("/p/bad.js")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, fsys, func(o *bundle.Options) {
				o.Transforms = []transform.Registration{failing}
			})
			_, err := s.BuildEntries(context.Background(), []string{tt.entry})
			var fatal *bundle.FatalError
			if !errors.As(err, &fatal) {
				t.Fatalf("Expected FatalError, got %v", err)
			}
			if fatal.Module != tt.module {
				t.Errorf("Expected module %v, got %v", tt.module, fatal.Module)
			}
			if s.Result() != nil {
				t.Error("Expected no result after a fatal build")
			}
		})
	}

	t.Run("non-entry failures are reported", func(t *testing.T) {
		s := newSession(t, fsys, nil)
		result, err := s.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if len(result.Errors) != 1 {
			t.Errorf("Expected 1 error for ./gone.js, got %v", result.Errors)
		}
	})
}

type auditPlugin struct {
	seen int
}

func (p *auditPlugin) Name() string { return "audit" }

func (p *auditPlugin) OnGraphComplete(_ context.Context, g *graph.Graph) []error {
	p.seen = g.Len()
	return []error{fmt.Errorf("%d modules audited", g.Len())}
}

func TestPlugins(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js": "import ./b.js\n",
		"/p/b.js": "import ./a.js\n",
	})
	counter := &testutil.Counter{}
	audit := &auditPlugin{}
	s := newSession(t, fsys, func(o *bundle.Options) {
		o.Plugins = []bundle.Plugin{
			bundle.Transforms("counting", counter.Stage("count")),
			audit,
		}
	})

	result, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if counter.Total() != 2 {
		t.Errorf("Expected the plugin stage to run twice, ran %d times", counter.Total())
	}
	if audit.seen != 2 {
		t.Errorf("Expected the graph plugin to see 2 modules, saw %d", audit.seen)
	}

	var cycle *graph.CycleWarning
	if len(result.Warnings) != 2 || !errors.As(result.Warnings[0], &cycle) {
		t.Fatalf("Expected a cycle warning then the plugin warning, got %v", result.Warnings)
	}
	if got := result.Warnings[1].Error(); got != "2 modules audited" {
		t.Errorf("Unexpected plugin warning %q", got)
	}
}

func TestNewSessionRejectsBadTransforms(t *testing.T) {
	_, err := bundle.NewSession(bundle.Options{
		FS:         testutil.NewProjectFS(nil),
		Root:       "/p",
		Transforms: []transform.Registration{{Name: "no-fn"}},
	})
	if err == nil {
		t.Fatal("Expected an error for a registration without a function")
	}
}

func TestInvalidatePathAndRebuild(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js": "import ./b.js\n",
		"/p/b.js": "import ./c.js\n",
		"/p/c.js": "export const c = 1\n",
	})
	s := newSession(t, fsys, func(o *bundle.Options) {
		o.Accept = hmr.AlwaysAccept{}
	})
	ctx := context.Background()
	if _, err := s.Build(ctx); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Run("unchanged content is a no-op", func(t *testing.T) {
		got, err := s.InvalidatePath("/p/c.js")
		if err != nil {
			t.Fatalf("InvalidatePath failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected nothing invalidated, got %v", got)
		}
	})

	t.Run("edit", func(t *testing.T) {
		fsys.AddFile("/p/c.js", "export const c = 2\n", 0644)
		got, err := s.InvalidatePath("/p/c.js")
		if err != nil {
			t.Fatalf("InvalidatePath failed: %v", err)
		}
		if !reflect.DeepEqual(got, []module.ID{id("/p/c.js")}) {
			t.Fatalf("Expected c.js invalidated, got %v", got)
		}

		update, result, err := s.Rebuild(ctx)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if len(update.Modules) != 1 || update.Modules[0].Module != id("/p/c.js") {
			t.Errorf("Expected an update of c.js, got %+v", update.Modules)
		}
		if update.FullReload {
			t.Errorf("Unexpected full reload: %s", update.Reason)
		}
		rec, _ := result.Graph.Get(id("/p/c.js"))
		if string(rec.Code) != "export const c = 2\n" {
			t.Errorf("Expected new code, got %q", rec.Code)
		}
		if s.Result() != result {
			t.Error("Expected Result to track the rebuild")
		}
	})

	t.Run("new file resolves a missing import", func(t *testing.T) {
		fsys.AddFile("/p/b.js", "import ./c.js\nimport ./d.js\n", 0644)
		if _, err := s.InvalidatePath("/p/b.js"); err != nil {
			t.Fatalf("InvalidatePath failed: %v", err)
		}
		_, result, err := s.Rebuild(ctx)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if len(result.Errors) != 1 {
			t.Fatalf("Expected ./d.js to be unresolved, got %v", result.Errors)
		}

		fsys.AddFile("/p/d.js", "export {}\n", 0644)
		got, err := s.InvalidatePath("/p/d.js")
		if err != nil {
			t.Fatalf("InvalidatePath failed: %v", err)
		}
		if !reflect.DeepEqual(got, []module.ID{id("/p/b.js")}) {
			t.Fatalf("Expected b.js invalidated, got %v", got)
		}
		update, result, err := s.Rebuild(ctx)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if len(result.Errors) != 0 || !result.Graph.Has(id("/p/d.js")) {
			t.Errorf("Expected d.js in a clean graph, got errors %v", result.Errors)
		}
		// b.js links ./d.js to a module key now, so it is resent too.
		var modules []module.ID
		for _, m := range update.Modules {
			modules = append(modules, m.Module)
		}
		if !reflect.DeepEqual(modules, []module.ID{id("/p/d.js"), id("/p/b.js")}) {
			t.Errorf("Expected d.js then b.js, got %v", modules)
		}
	})

	t.Run("nothing pending", func(t *testing.T) {
		update, result, err := s.Rebuild(ctx)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if !update.Empty() || result != s.Result() {
			t.Errorf("Expected an empty update and the same result, got %+v", update)
		}
	})
}

func TestPackageJSONChange(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js": "import lib\n",
	})
	s := newSession(t, fsys, nil)
	ctx := context.Background()
	result, err := s.Build(ctx)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected lib to be unresolved, got %v", result.Errors)
	}

	fsys.AddFiles(map[string]string{
		"/p/node_modules/lib/package.json": `{"name": "lib", "main": "index.js"}`,
		"/p/node_modules/lib/index.js":     "export {}\n",
	})
	got, err := s.InvalidatePath("/p/node_modules/lib/package.json")
	if err != nil {
		t.Fatalf("InvalidatePath failed: %v", err)
	}
	if !reflect.DeepEqual(got, []module.ID{id("/p/a.js")}) {
		t.Fatalf("Expected a.js invalidated, got %v", got)
	}
	_, result, err = s.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if !result.Graph.Has(id("/p/node_modules/lib/index.js")) {
		t.Errorf("Expected lib to resolve after package.json appeared, got %v", result.Graph.IDs())
	}
}

func TestDispose(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{"/p/a.js": "\n"})
	s := newSession(t, fsys, nil)
	if _, err := s.Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	s.Dispose()
	s.Dispose()

	if _, err := s.Build(context.Background()); !errors.Is(err, bundle.ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Build, got %v", err)
	}
	if _, err := s.Invalidate(hmr.Event{Module: id("/p/a.js")}); !errors.Is(err, bundle.ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Invalidate, got %v", err)
	}
	if _, _, err := s.Rebuild(context.Background()); !errors.Is(err, bundle.ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Rebuild, got %v", err)
	}
}

func TestJavaScriptProject(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/src/main.js": `import { render } from './render.js';
import './style.css';
document.querySelector('button').onclick = () =>
  import(/* webpackChunkName: "settings" */ './settings.js');
render();
`,
		"/p/src/render.js":   "export function render() {}\n",
		"/p/src/style.css":   "body { color: red; }\n",
		"/p/src/settings.js": "import { render } from './render.js';\nexport default render;\n",
	})
	s := newSession(t, fsys, func(o *bundle.Options) {
		o.Entries = []string{"./src/main.js"}
		o.Scanners = nil
	})

	result, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Graph.Len() != 4 {
		t.Fatalf("Expected 4 modules, got %v", result.Graph.IDs())
	}
	rec, _ := result.Graph.Get(id("/p/src/main.js"))
	kinds := map[string]module.EdgeKind{}
	for _, e := range rec.Edges {
		kinds[e.Specifier] = e.Kind
	}
	want := map[string]module.EdgeKind{
		"./render.js":   module.Eager,
		"./style.css":   module.Eager,
		"./settings.js": module.Deferred,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("Expected edges %v, got %v", want, kinds)
	}
	// render.js is eagerly reachable from main, so settings gets only itself.
	want2 := []string{"main", "settings"}
	if got := chunkNames(result.Chunks); !reflect.DeepEqual(got, want2) {
		t.Errorf("Expected chunks %v, got %v", want2, got)
	}
}

func TestReport(t *testing.T) {
	fsys := testutil.NewProjectFS(map[string]string{
		"/p/a.js":    "import ./b.js\nimport ./gone.js\nlazy ./page.js\n",
		"/p/b.js":    "import ./a.js\n",
		"/p/page.js": "export default 1\n",
	})
	result, err := newSession(t, fsys, nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := json.Marshal(result.Report())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var rep struct {
		Entries []string `json:"entries"`
		Modules []struct {
			ID      string `json:"id"`
			Imports []struct {
				Specifier string `json:"specifier"`
				Resolved  string `json:"resolved"`
				Kind      string `json:"kind"`
				Cycle     bool   `json:"cycle"`
				Error     string `json:"error"`
			} `json:"imports"`
		} `json:"modules"`
		Cycles [][]string `json:"cycles"`
		Chunks []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"chunks"`
		Errors   []string `json:"errors"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(rep.Entries, []string{"/p/a.js"}) {
		t.Errorf("Unexpected entries %v", rep.Entries)
	}
	if len(rep.Modules) != 3 || rep.Modules[0].ID != "/p/a.js" {
		t.Fatalf("Unexpected modules %s", data)
	}
	imports := rep.Modules[0].Imports
	if len(imports) != 3 {
		t.Fatalf("Expected 3 imports of a.js, got %+v", imports)
	}
	if imports[0].Resolved != "/p/b.js" || imports[0].Kind != "eager" || !imports[0].Cycle {
		t.Errorf("Unexpected cyclic import %+v", imports[0])
	}
	if imports[1].Resolved != "" || imports[1].Error == "" {
		t.Errorf("Expected an unresolved import with an error, got %+v", imports[1])
	}
	if imports[2].Kind != "deferred" {
		t.Errorf("Expected a deferred import, got %+v", imports[2])
	}
	if len(rep.Cycles) != 1 || len(rep.Errors) != 1 || len(rep.Warnings) != 1 {
		t.Errorf("Expected one cycle, error, and warning, got %s", data)
	}
	if len(rep.Chunks) != 2 || rep.Chunks[0].Kind != "entry" || rep.Chunks[1].Kind != "async" {
		t.Errorf("Unexpected chunks %+v", rep.Chunks)
	}
}
