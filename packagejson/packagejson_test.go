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
package packagejson_test

import (
	"errors"
	"testing"

	"bennypowers.dev/bindle/internal/mapfs"
	"bennypowers.dev/bindle/packagejson"
)

func mustParse(t *testing.T, data string) *packagejson.PackageJSON {
	t.Helper()
	pkg, err := packagejson.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return pkg
}

func TestParseFile(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/app/package.json", `{"name":"app","version":"1.0.0","dependencies":{"lit":"^3"}}`, 0644)

	pkg, err := packagejson.ParseFile(mfs, "/app/package.json")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if pkg.Name != "app" {
		t.Errorf("Expected %q, got %q", "app", pkg.Name)
	}
	if !pkg.DependsOn("lit") {
		t.Error("Expected app to depend on lit")
	}
	if pkg.DependsOn("react") {
		t.Error("Expected app not to depend on react")
	}
}

func TestResolveExport(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		subpath string
		opts    *packagejson.ResolveOptions
		want    string
		wantErr bool
	}{
		{
			name:    "string export",
			pkg:     `{"exports":"./index.js"}`,
			subpath: ".",
			want:    "index.js",
		},
		{
			name:    "string export rejects subpaths",
			pkg:     `{"exports":"./index.js"}`,
			subpath: "./other.js",
			wantErr: true,
		},
		{
			name:    "subpath export",
			pkg:     `{"exports":{".":"./index.js","./button":"./dist/button.js"}}`,
			subpath: "./button",
			want:    "dist/button.js",
		},
		{
			name:    "conditions in default order",
			pkg:     `{"exports":{".":{"require":"./cjs.js","import":"./esm.js"}}}`,
			subpath: ".",
			want:    "esm.js",
		},
		{
			name:    "custom conditions",
			pkg:     `{"exports":{".":{"production":"./prod.js","default":"./dev.js"}}}`,
			subpath: ".",
			opts:    &packagejson.ResolveOptions{Conditions: []string{"production", "default"}},
			want:    "prod.js",
		},
		{
			name:    "condition-only export",
			pkg:     `{"exports":{"browser":"./browser.js","default":"./node.js"}}`,
			subpath: ".",
			want:    "browser.js",
		},
		{
			name:    "nested conditions",
			pkg:     `{"exports":{".":{"browser":{"import":"./b.mjs"},"default":"./d.js"}}}`,
			subpath: ".",
			want:    "b.mjs",
		},
		{
			name:    "wildcard export",
			pkg:     `{"exports":{"./*":"./dist/*.js","./icons/*":"./svg/*.svg"}}`,
			subpath: "./icons/star",
			want:    "svg/star.svg",
		},
		{
			name:    "fallback array",
			pkg:     `{"exports":{".":[{"worker":"./w.js"},"./main.js"]}}`,
			subpath: ".",
			want:    "main.js",
		},
		{
			name:    "main fallback",
			pkg:     `{"main":"./lib/main.js"}`,
			subpath: ".",
			want:    "lib/main.js",
		},
		{
			name:    "module preferred over main",
			pkg:     `{"main":"./cjs.js","module":"./esm.js"}`,
			subpath: ".",
			want:    "esm.js",
		},
		{
			name:    "unexported subpath",
			pkg:     `{"exports":{".":"./index.js"}}`,
			subpath: "./private.js",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := mustParse(t, tt.pkg)
			got, err := pkg.ResolveExport(tt.subpath, tt.opts)
			if tt.wantErr {
				if !errors.Is(err, packagejson.ErrNotExported) {
					t.Fatalf("Expected ErrNotExported, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveExport failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveImport(t *testing.T) {
	pkg := mustParse(t, `{"imports":{"#utils/*":"./src/utils/*.js","#dep":{"browser":"./shim.js","default":"dep"}}}`)

	got, err := pkg.ResolveImport("#utils/math", nil)
	if err != nil {
		t.Fatalf("ResolveImport failed: %v", err)
	}
	if got != "src/utils/math.js" {
		t.Errorf("Expected %q, got %q", "src/utils/math.js", got)
	}

	got, err = pkg.ResolveImport("#dep", nil)
	if err != nil {
		t.Fatalf("ResolveImport failed: %v", err)
	}
	if got != "shim.js" {
		t.Errorf("Expected %q, got %q", "shim.js", got)
	}

	if _, err := pkg.ResolveImport("#missing", nil); err == nil {
		t.Error("Expected error for unmapped import")
	}
}

func TestEntryPoint(t *testing.T) {
	pkg := mustParse(t, `{"main":"main.js","module":"./esm.js","browser":"./browser.js"}`)

	if got := pkg.EntryPoint(nil); got != "browser.js" {
		t.Errorf("Expected %q, got %q", "browser.js", got)
	}
	if got := pkg.EntryPoint([]string{"main"}); got != "main.js" {
		t.Errorf("Expected %q, got %q", "main.js", got)
	}

	remap := mustParse(t, `{"main":"main.js","browser":{"./fs.js":false}}`)
	if got := remap.EntryPoint(nil); got != "main.js" {
		t.Errorf("Expected object browser field to be skipped, got %q", got)
	}
}

func TestWorkspacePatterns(t *testing.T) {
	arr := mustParse(t, `{"workspaces":["packages/*"]}`)
	if got := arr.WorkspacePatterns(); len(got) != 1 || got[0] != "packages/*" {
		t.Errorf("Expected [packages/*], got %v", got)
	}
	obj := mustParse(t, `{"workspaces":{"packages":["libs/*"]}}`)
	if got := obj.WorkspacePatterns(); len(got) != 1 || got[0] != "libs/*" {
		t.Errorf("Expected [libs/*], got %v", got)
	}
	none := mustParse(t, `{"name":"x"}`)
	if got := none.WorkspacePatterns(); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}
