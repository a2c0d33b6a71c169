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
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	// Build the binary before running tests
	wd := mustGetwd()
	cmd := exec.Command("go", "build", "-o", "bindle_test", ".")
	cmd.Dir = wd
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build test binary: " + err.Error() + "\n" + string(out))
	}
	code := m.Run()
	_ = os.Remove(filepath.Join(wd, "bindle_test"))
	os.Exit(code)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	binary := filepath.Join(mustGetwd(), "bindle_test")
	cmd := exec.Command(binary, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("Failed to run CLI: %v", err)
		}
	}

	return stdout, stderr, exitCode
}

var appDir = filepath.Join("testdata", "cli", "app")

type buildSummary struct {
	Assets []struct {
		Name     string `json:"name"`
		Chunk    string `json:"chunk"`
		Revision string `json:"revision"`
	} `json:"assets"`
	Chunks map[string]struct {
		JS  string `json:"js"`
		CSS string `json:"css"`
	} `json:"chunks"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func parseSummary(t *testing.T, stdout string) buildSummary {
	t.Helper()
	var summary buildSummary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, stdout)
	}
	return summary
}

func TestVersion(t *testing.T) {
	stdout, stderr, code := runCLI(t, "version", "--format", "json")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, stdout)
	}
	if info["version"] == nil || info["go"] == nil {
		t.Errorf("Expected version and go fields, got %v", info)
	}

	stdout, _, code = runCLI(t, "version")
	if code != 0 || !strings.HasPrefix(stdout, "bindle ") {
		t.Errorf("Expected text version, got %q (exit %d)", stdout, code)
	}
}

func TestBuild(t *testing.T) {
	outDir := t.TempDir()

	stdout, stderr, code := runCLI(t, "build", "--package", appDir, "--out-dir", outDir, "--log-level", "warn")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	summary := parseSummary(t, stdout)
	if len(summary.Errors) != 0 || len(summary.Warnings) != 0 {
		t.Errorf("Expected a clean build, got %+v", summary)
	}

	index, ok := summary.Chunks["index"]
	if !ok || index.JS == "" || index.CSS == "" {
		t.Fatalf("Expected an index chunk with CSS, got %+v", summary.Chunks)
	}
	if _, ok := summary.Chunks["async-lazy"]; !ok {
		t.Errorf("Expected an async chunk for lazy.js, got %+v", summary.Chunks)
	}

	js, err := os.ReadFile(filepath.Join(outDir, index.JS))
	if err != nil {
		t.Fatalf("Failed to read entry chunk: %v", err)
	}
	for _, want := range []string{`__bindle__.define("src/greet.js"`, `__bindle__.define("node_modules/lib/index.js"`, "require.async("} {
		if !strings.Contains(string(js), want) {
			t.Errorf("Expected entry chunk to contain %q", want)
		}
	}

	html, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	if err != nil {
		t.Fatalf("Failed to read index.html: %v", err)
	}
	for _, want := range []string{"<title>App</title>", `src="/` + index.JS + `"`, `href="/` + index.CSS + `"`} {
		if !strings.Contains(string(html), want) {
			t.Errorf("Expected index.html to contain %q:\n%s", want, html)
		}
	}

	if _, err := os.Stat(filepath.Join(outDir, "precache-manifest.json")); err != nil {
		t.Errorf("Expected a precache manifest: %v", err)
	}
}

func TestBuildDryRunAndStats(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	stats := filepath.Join(t.TempDir(), "meta.json")

	stdout, stderr, code := runCLI(t, "build", "-p", appDir, "--out-dir", outDir, "--dry-run", "--stats", stats, "--fingerprint", "xxhash")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if len(parseSummary(t, stdout).Assets) == 0 {
		t.Error("Expected assets in the summary")
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("Expected dry run not to create %s", outDir)
	}

	data, err := os.ReadFile(stats)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	var meta struct {
		Inputs  map[string]any `json:"inputs"`
		Outputs map[string]any `json:"outputs"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("Failed to parse stats: %v", err)
	}
	if len(meta.Inputs) == 0 || len(meta.Outputs) == 0 {
		t.Errorf("Expected inputs and outputs in the metafile, got %s", data)
	}
}

func TestBuildMissingEntry(t *testing.T) {
	_, stderr, code := runCLI(t, "build", "-p", appDir, "--out-dir", t.TempDir(), "./src/nope.js")
	if code == 0 {
		t.Fatal("Expected a non-zero exit code")
	}
	if !strings.Contains(stderr, "nope.js") {
		t.Errorf("Expected the missing entry in stderr, got: %s", stderr)
	}
}

func TestGraph(t *testing.T) {
	stdout, stderr, code := runCLI(t, "graph", "-p", appDir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	var report struct {
		Entries []string `json:"entries"`
		Modules []struct {
			ID string `json:"id"`
		} `json:"modules"`
		Chunks []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"chunks"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, stdout)
	}
	if len(report.Entries) != 1 || !strings.HasSuffix(report.Entries[0], "src/index.js") {
		t.Errorf("Unexpected entries %v", report.Entries)
	}
	if len(report.Modules) != 5 {
		t.Errorf("Expected 5 modules, got %d", len(report.Modules))
	}
	if len(report.Chunks) != 2 {
		t.Errorf("Expected 2 chunks, got %+v", report.Chunks)
	}
}

func TestGraphOutputFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	stdout, stderr, code := runCLI(t, "graph", "-p", appDir, "--output", tmpFile)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("Expected no stdout when writing to file, got: %s", stdout)
	}
	content, err := os.ReadFile(tmpFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if !json.Valid(content) {
		t.Errorf("Expected JSON in the output file, got %s", content)
	}
}

func TestDLL(t *testing.T) {
	dllDir := t.TempDir()
	stdout, stderr, code := runCLI(t, "dll", "vendors", "lib", "-p", appDir, "--out-dir", dllDir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	var manifest struct {
		Name      string            `json:"name"`
		File      string            `json:"file"`
		Libraries map[string]string `json:"libraries"`
	}
	if err := json.Unmarshal([]byte(stdout), &manifest); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, stdout)
	}
	if !strings.HasPrefix(manifest.Name, "vendors_") {
		t.Errorf("Unexpected manifest name %q", manifest.Name)
	}
	if _, err := os.Stat(filepath.Join(dllDir, manifest.File)); err != nil {
		t.Errorf("Expected the bundle to be written: %v", err)
	}

	t.Run("referenced by a build", func(t *testing.T) {
		cfgDir := t.TempDir()
		cfg := map[string]any{
			"entries": []string{"./src/index.js"},
			"dll":     map[string]any{"manifests": []string{filepath.Join(dllDir, "vendors.manifest.json")}},
		}
		data, _ := json.Marshal(cfg)
		cfgFile := filepath.Join(cfgDir, "bindle.json")
		if err := os.WriteFile(cfgFile, data, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		outDir := filepath.Join(cfgDir, "out")
		stdout, stderr, code := runCLI(t, "build", "-p", appDir, "--config", cfgFile, "--out-dir", outDir)
		if code != 0 {
			t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
		}
		index := parseSummary(t, stdout).Chunks["index"]
		js, err := os.ReadFile(filepath.Join(outDir, index.JS))
		if err != nil {
			t.Fatalf("Failed to read entry chunk: %v", err)
		}
		if !strings.Contains(string(js), manifest.Libraries["lib"]) {
			t.Errorf("Expected the entry chunk to load lib from %s", manifest.Name)
		}
		if strings.Contains(string(js), `define("node_modules/lib/index.js"`) {
			t.Error("Expected lib not to be bundled again")
		}
	})
}

func TestNoEntries(t *testing.T) {
	_, stderr, code := runCLI(t, "graph", "-p", t.TempDir())
	if code == 0 {
		t.Fatal("Expected a non-zero exit code")
	}
	if !strings.Contains(stderr, "no entries") {
		t.Errorf("Expected a no entries error, got: %s", stderr)
	}
}
