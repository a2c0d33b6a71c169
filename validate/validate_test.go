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
package validate_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/internal/mapfs"
	"bennypowers.dev/bindle/testutil"
	"bennypowers.dev/bindle/validate"
)

func buildFixture(t *testing.T, mfs *mapfs.MapFileSystem) *bundle.Result {
	t.Helper()
	s, err := bundle.NewSession(bundle.Options{
		FS:        mfs,
		Root:      "/test",
		Entries:   []string{"./src/app.js"},
		Externals: map[string]string{"jquery": "jQuery"},
		Plugins:   []bundle.Plugin{validate.New(mfs, "/test")},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(s.Dispose)
	result, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return result
}

func TestCheck(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "validate/imports", "/test")
	result := buildFixture(t, mfs)

	issues, err := validate.Check(mfs, "/test", result.Graph)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	expectedBytes, err := mfs.ReadFile("/test/expected.json")
	if err != nil {
		t.Fatalf("Failed to read expected.json: %v", err)
	}
	var expected struct {
		Issues []struct {
			File      string `json:"file"`
			Line      int    `json:"line"`
			Specifier string `json:"specifier"`
			Package   string `json:"package"`
			IssueType string `json:"issue_type"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(expectedBytes, &expected); err != nil {
		t.Fatalf("Failed to parse expected.json: %v", err)
	}

	if len(issues) != len(expected.Issues) {
		t.Fatalf("Expected %d issues, got %d: %+v", len(expected.Issues), len(issues), issues)
	}
	for i, exp := range expected.Issues {
		if issues[i].File != exp.File {
			t.Errorf("Issue %d: expected file %q, got %q", i, exp.File, issues[i].File)
		}
		if issues[i].Line != exp.Line {
			t.Errorf("Issue %d: expected line %d, got %d", i, exp.Line, issues[i].Line)
		}
		if issues[i].Specifier != exp.Specifier {
			t.Errorf("Issue %d: expected specifier %q, got %q", i, exp.Specifier, issues[i].Specifier)
		}
		if issues[i].Package != exp.Package {
			t.Errorf("Issue %d: expected package %q, got %q", i, exp.Package, issues[i].Package)
		}
		if issues[i].Type.String() != exp.IssueType {
			t.Errorf("Issue %d: expected issue type %q, got %q", i, exp.IssueType, issues[i].Type.String())
		}
	}
}

func TestPluginWarnings(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "validate/imports", "/test")
	result := buildFixture(t, mfs)

	var issues []*validate.Issue
	for _, w := range result.Warnings {
		var issue *validate.Issue
		if errors.As(w, &issue) {
			issues = append(issues, issue)
		}
	}
	if len(issues) != 3 {
		t.Fatalf("Expected 3 issue warnings, got %v", result.Warnings)
	}
	want := `/test/src/app.js:3: import "typescript" uses devDependency package typescript`
	if got := issues[0].Error(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestCheckWithoutPackageJSON(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "validate/imports", "/test")
	result := buildFixture(t, mfs)
	if err := mfs.Remove("/test/package.json"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	issues, err := validate.Check(mfs, "/test", result.Graph)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Expected no issues, got %+v", issues)
	}
}

func TestCheckInvalidPackageJSON(t *testing.T) {
	mfs := testutil.NewFixtureFS(t, "validate/imports", "/test")
	result := buildFixture(t, mfs)
	mfs.AddFile("/test/package.json", "{", 0644)

	if _, err := validate.Check(mfs, "/test", result.Graph); err == nil {
		t.Error("Expected an error for invalid package.json")
	}
	warnings := validate.New(mfs, "/test").OnGraphComplete(context.Background(), result.Graph)
	if len(warnings) != 1 {
		t.Errorf("Expected one warning, got %v", warnings)
	}
}
