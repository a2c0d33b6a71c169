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
package stages_test

import (
	"context"
	"strings"
	"testing"

	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/transform"
	"bennypowers.dev/bindle/transform/stages"
)

func run(t *testing.T, fn transform.Func, path, code string) transform.Result {
	t.Helper()
	res, err := fn(context.Background(), transform.Source{ID: module.New(path, ""), Code: []byte(code)})
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}
	return res
}

func TestESBuildTypeScript(t *testing.T) {
	fn, err := stages.ESBuild(stages.ESBuildOptions{Target: "es2020", SourceMap: true})
	if err != nil {
		t.Fatalf("ESBuild failed: %v", err)
	}
	res := run(t, fn, "/p/src/app.ts", `import { a } from './a';
const x: number = a;
export default x;
import('./lazy');
`)
	code := string(res.Code)
	if strings.Contains(code, ": number") {
		t.Errorf("Expected type annotations stripped, got %q", code)
	}
	for _, want := range []string{`"./a"`, `import("./lazy")`} {
		if !strings.Contains(code, want) {
			t.Errorf("Expected output to contain %s, got %q", want, code)
		}
	}
	if len(res.SourceMap) == 0 {
		t.Error("Expected a source map")
	}
}

func TestESBuildErrors(t *testing.T) {
	if _, err := stages.ESBuild(stages.ESBuildOptions{Target: "es3000"}); err == nil {
		t.Error("Expected error for unknown target")
	}
	fn, _ := stages.ESBuild(stages.ESBuildOptions{})
	_, err := fn(context.Background(), transform.Source{ID: module.New("/p/a.js", ""), Code: []byte("const = ;")})
	if err == nil {
		t.Error("Expected syntax error")
	}
	_, err = fn(context.Background(), transform.Source{ID: module.New("/p/a.png", ""), Code: []byte("x")})
	if err == nil {
		t.Error("Expected error for file without loader")
	}
}

func TestCSSMinify(t *testing.T) {
	res := run(t, stages.CSS(stages.CSSOptions{Minify: true}), "/p/a.css", "a {\n  color: red;\n}\n")
	if got := strings.TrimSpace(string(res.Code)); got != "a{color:red}" {
		t.Errorf("Expected minified css, got %q", got)
	}
}

func TestAsset(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		res := run(t, stages.Asset(stages.AssetOptions{}), "/p/logo.png", "PNG")
		if !strings.HasPrefix(string(res.Code), `export default "data:image/png;base64,`) {
			t.Errorf("Expected data URI export, got %q", res.Code)
		}
		if len(res.Artifacts) != 0 {
			t.Errorf("Expected no artifacts, got %d", len(res.Artifacts))
		}
	})

	t.Run("emitted", func(t *testing.T) {
		opts := stages.AssetOptions{Limit: -1, OutputPath: "img", PublicPath: "/static/"}
		res := run(t, stages.Asset(opts), "/p/logo.png", "PNG")
		if len(res.Artifacts) != 1 {
			t.Fatalf("Expected 1 artifact, got %d", len(res.Artifacts))
		}
		a := res.Artifacts[0]
		if !strings.HasPrefix(a.VirtualPath, "img/") || !strings.HasSuffix(a.VirtualPath, ".png") {
			t.Errorf("Unexpected artifact path %q", a.VirtualPath)
		}
		if !strings.Contains(string(res.Code), `"/static/`+a.VirtualPath+`"`) {
			t.Errorf("Expected code to export artifact URL, got %q", res.Code)
		}
	})
}

func TestBanner(t *testing.T) {
	res := run(t, stages.Banner(stages.BannerOptions{Text: "MIT"}), "/p/a.js", "x;")
	if string(res.Code) != "/*! MIT */\nx;" {
		t.Errorf("Unexpected banner output %q", res.Code)
	}
}

func TestLookup(t *testing.T) {
	_, v1, err := stages.Lookup("asset", map[string]any{"limit": 10})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	_, v2, err := stages.Lookup("asset", map[string]any{"limit": "20"})
	if err != nil {
		t.Fatalf("Lookup with weakly typed option failed: %v", err)
	}
	if v1 == v2 {
		t.Error("Expected version to change with options")
	}
	if _, _, err := stages.Lookup("nope", nil); err == nil {
		t.Error("Expected error for unknown stage")
	}
	if _, _, err := stages.Lookup("banner", map[string]any{"txt": "typo"}); err == nil {
		t.Error("Expected error for unknown option")
	}
}
