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
package dll_test

import (
	"context"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/dll"
	"bennypowers.dev/bindle/emit"
	"bennypowers.dev/bindle/internal/mapfs"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/testutil"
)

func TestParse(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "dll/parse", "/test")

	input, err := mfs.ReadFile("/test/input.json")
	if err != nil {
		t.Fatalf("Failed to read input.json: %v", err)
	}
	m, err := dll.Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var inputMap, outputMap map[string]any
	if err := json.Unmarshal(input, &inputMap); err != nil {
		t.Fatalf("Failed to unmarshal input: %v", err)
	}
	if err := json.Unmarshal([]byte(m.ToJSON()), &outputMap); err != nil {
		t.Fatalf("Failed to unmarshal output: %v", err)
	}
	if !reflect.DeepEqual(inputMap, outputMap) {
		t.Errorf("Round-trip failed:\n  input:  %s\n  output: %s", input, m.ToJSON())
	}
}

func TestToJSONGolden(t *testing.T) {
	m, err := dll.Parse(testutil.LoadFixtureFile(t, "dll/parse/input.json"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	actual := []byte(m.ToJSON() + "\n")

	testutil.UpdateGoldenFile(t, "dll/parse/expected.json", actual)
	expected := testutil.LoadGoldenFile(t, "dll/parse/expected.json")
	if expected == nil {
		return
	}
	if string(actual) != string(expected) {
		t.Errorf("ToJSON mismatch:\n  got:      %s\n  expected: %s", actual, expected)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"name": `},
		{"missing name", `{"libraries": {"jquery": "x(\"y\")"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dll.Parse([]byte(tt.input)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "dll/merge", "/test")

	manifests, err := dll.LoadAll(mfs, []string{"/test/base.json", "/test/override.json", "/test/expected.json"})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	base, override, expected := manifests[0], manifests[1], manifests[2]

	result := base.Merge(override)
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Merge mismatch:\n  got:      %s\n  expected: %s", result.ToJSON(), expected.ToJSON())
	}
	if base.Libraries["lodash"] != `vendors_0123456789("node_modules/lodash/lodash.js")` {
		t.Error("Expected Merge not to modify its receiver")
	}

	t.Run("nil", func(t *testing.T) {
		var m *dll.Manifest
		if got := m.Merge(base); !reflect.DeepEqual(got, base) {
			t.Errorf("Expected a clone of the argument, got %s", got.ToJSON())
		}
		if got := base.Merge(nil); !reflect.DeepEqual(got, base) {
			t.Errorf("Expected a clone of the receiver, got %s", got.ToJSON())
		}
	})
}

func TestExternals(t *testing.T) {
	a := &dll.Manifest{Name: "a", Libraries: map[string]string{"x": `a("x")`, "y": `a("y")`}}
	b := &dll.Manifest{Name: "b", Libraries: map[string]string{"y": `b("y")`}}

	got := dll.Externals(map[string]string{"x": "window.X"}, a, b)
	want := map[string]string{"x": "window.X", "y": `b("y")`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := dll.Externals(nil); got != nil {
		t.Errorf("Expected nil externals, got %v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := dll.Load(mapfs.New(), "/nope.json"); err == nil {
		t.Error("Expected an error for a missing manifest")
	}
}

var libraryFiles = map[string]string{
	"/p/node_modules/jquery/package.json":   `{"name": "jquery", "main": "dist/jquery.js"}`,
	"/p/node_modules/jquery/dist/jquery.js": "import { core } from './core.js';\nexport default function $(sel) { return core(sel); }\n",
	"/p/node_modules/jquery/dist/core.js":   "export function core(sel) { return [sel]; }\n",
	"/p/src/app.js":                         "import $ from 'jquery';\n$('body');\n",
}

func buildDLL(t *testing.T, fsys *mapfs.MapFileSystem, dryRun bool) *dll.Result {
	t.Helper()
	result, err := dll.Build(context.Background(), dll.Options{
		Name:      "vendors",
		Libraries: []string{"jquery"},
		Session:   bundle.Options{FS: fsys, Root: "/p"},
		Emit:      emit.Options{OutDir: "/p/dist", DryRun: dryRun},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return result
}

func TestBuild(t *testing.T) {
	fsys := testutil.NewProjectFS(libraryFiles)
	result := buildDLL(t, fsys, false)
	m := result.Manifest

	if !regexp.MustCompile(`^vendors_[0-9a-f]{10}$`).MatchString(m.Name) {
		t.Errorf("Unexpected manifest name %q", m.Name)
	}
	wantLib := m.Name + `("node_modules/jquery/dist/jquery.js")`
	if got := m.Libraries["jquery"]; got != wantLib {
		t.Errorf("Expected library %q, got %q", wantLib, got)
	}
	if len(m.Modules) != 2 {
		t.Errorf("Expected 2 modules, got %v", m.Modules)
	}
	if !strings.HasPrefix(m.File, "vendors.") || !strings.HasSuffix(m.File, ".dll.js") {
		t.Errorf("Unexpected bundle file %q", m.File)
	}

	js, err := fsys.ReadFile("/p/dist/" + m.File)
	if err != nil {
		t.Fatalf("Failed to read bundle: %v", err)
	}
	if !strings.Contains(string(js), `["`+m.Name+`"] = __bindle__.require;`) {
		t.Error("Expected the bundle to export its require function")
	}

	data, err := fsys.ReadFile("/p/dist/vendors.manifest.json")
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}
	written, err := dll.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(written, m) {
		t.Errorf("Written manifest differs:\n%s\n%s", written.ToJSON(), m.ToJSON())
	}

	t.Run("deterministic", func(t *testing.T) {
		again := buildDLL(t, fsys, true)
		if again.Manifest.Name != m.Name {
			t.Errorf("Expected the same name, got %q and %q", m.Name, again.Manifest.Name)
		}
	})

	t.Run("content changes the name", func(t *testing.T) {
		changed := testutil.NewProjectFS(libraryFiles)
		changed.AddFile("/p/node_modules/jquery/dist/core.js", "export function core(sel) { return []; }\n", 0644)
		if again := buildDLL(t, changed, true); again.Manifest.Name == m.Name {
			t.Error("Expected a different name after a library change")
		}
	})

	t.Run("consumer", func(t *testing.T) {
		s, err := bundle.NewSession(bundle.Options{
			FS:        fsys,
			Root:      "/p",
			Entries:   []string{"./src/app.js"},
			Externals: dll.Externals(nil, m),
		})
		if err != nil {
			t.Fatalf("NewSession failed: %v", err)
		}
		defer s.Dispose()
		built, err := s.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if built.Graph.Has(module.New("/p/node_modules/jquery/dist/jquery.js", "")) {
			t.Error("Expected jquery not to be rebuilt")
		}
		rec, ok := built.Graph.Get(module.External("jquery"))
		if !ok {
			t.Fatal("Expected an external module for jquery")
		}
		if want := "module.exports = " + wantLib + ";\n"; string(rec.Code) != want {
			t.Errorf("Expected %q, got %q", want, rec.Code)
		}
	})
}

func TestBuildErrors(t *testing.T) {
	fsys := testutil.NewProjectFS(libraryFiles)
	tests := []struct {
		name string
		opts dll.Options
	}{
		{"no name", dll.Options{Libraries: []string{"jquery"}}},
		{"no libraries", dll.Options{Name: "vendors"}},
		{"missing library", dll.Options{Name: "vendors", Libraries: []string{"react"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Session = bundle.Options{FS: fsys, Root: "/p"}
			tt.opts.Emit = emit.Options{DryRun: true}
			if _, err := dll.Build(context.Background(), tt.opts); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
