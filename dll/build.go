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
package dll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bennypowers.dev/bindle/bundle"
	"bennypowers.dev/bindle/emit"
	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/internal/logging"
)

// DefaultFilename names the emitted bundle.
const DefaultFilename = "[name].dll.js"

// Options configures a DLL build.
type Options struct {
	// Name prefixes the bundle's global, as in "<name>_<hash>".
	Name string
	// Libraries are the specifiers to pre-bundle, resolved from the
	// session root.
	Libraries []string

	// Session configures the build. Its Entries are ignored.
	Session bundle.Options
	// Emit configures the output. Library and Root are set by Build.
	Emit emit.Options

	// ManifestFile is the manifest path relative to the output directory.
	// Default "<name>.manifest.json".
	ManifestFile string
}

// Result is a completed DLL build.
type Result struct {
	Manifest     *Manifest
	ManifestFile string
	Output       *emit.Output
}

// Build bundles the libraries into one file and writes its manifest.
// Any module-level error fails the build.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if opts.Name == "" {
		return nil, errors.New("dll name is required")
	}
	if len(opts.Libraries) == 0 {
		return nil, errors.New("dll needs at least one library")
	}
	logger := logging.OrDiscard(opts.Session.Logger)

	sessOpts := opts.Session
	sessOpts.Entries = opts.Libraries
	s, err := bundle.NewSession(sessOpts)
	if err != nil {
		return nil, err
	}
	defer s.Dispose()

	result, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("dll %s: %w", opts.Name, errors.Join(result.Errors...))
	}

	alg := s.Builder().Fingerprint()
	manifest := &Manifest{
		Libraries: make(map[string]string, len(opts.Libraries)),
		Modules:   make(map[string]string, result.Graph.Len()),
	}
	parts := make([]string, 0, result.Graph.Len())
	for _, rec := range result.Graph.Records() {
		key := emit.ModuleKey(s.Root(), rec.ID)
		manifest.Modules[key] = rec.Fingerprint
		parts = append(parts, key+":"+rec.Fingerprint)
	}
	manifest.Name = opts.Name + "_" + fingerprint.Short(alg.CombineSorted(parts), 10)

	for _, spec := range opts.Libraries {
		id, err := s.Resolve(spec)
		if err != nil {
			return nil, &bundle.FatalError{Entry: spec, Err: err}
		}
		key, _ := json.Marshal(emit.ModuleKey(s.Root(), id))
		manifest.Libraries[spec] = manifest.Name + "(" + string(key) + ")"
	}

	emitOpts := opts.Emit
	if emitOpts.FS == nil {
		emitOpts.FS = sessOpts.FS
	}
	if emitOpts.Filename == "" {
		emitOpts.Filename = DefaultFilename
	}
	if emitOpts.Fingerprint == "" {
		emitOpts.Fingerprint = alg
	}
	if emitOpts.Logger == nil {
		emitOpts.Logger = sessOpts.Logger
	}
	emitOpts.Root = s.Root()
	emitOpts.HTML = nil
	emitOpts.Library = &emit.Library{Name: opts.Name, Global: manifest.Name}
	emitter, err := emit.New(emitOpts)
	if err != nil {
		return nil, err
	}
	out, err := emitter.Emit(ctx, result)
	if err != nil {
		return nil, err
	}
	manifest.File = out.Files[opts.Name].JS

	manifestFile := opts.ManifestFile
	if manifestFile == "" {
		manifestFile = opts.Name + ".manifest.json"
	}
	if !emitOpts.DryRun {
		dst := filepath.Join(emitOpts.OutDir, filepath.FromSlash(manifestFile))
		if err := emitOpts.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := emitOpts.FS.WriteFile(dst, []byte(manifest.ToJSON()+"\n"), 0644); err != nil {
			return nil, fmt.Errorf("writing manifest: %w", err)
		}
	}

	logger.Info("Built dll",
		"name", manifest.Name,
		"libraries", strings.Join(manifest.Specifiers(), ","),
		"modules", len(manifest.Modules))
	return &Result{Manifest: manifest, ManifestFile: manifestFile, Output: out}, nil
}
