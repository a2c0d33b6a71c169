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
package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"bennypowers.dev/bindle/fs"
	"bennypowers.dev/bindle/internal/logging"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/scan"
)

// Output is what the pipeline produces for one module.
type Output struct {
	Code      []byte
	SourceMap []byte
	Imports   []scan.Import
	Artifacts []module.Artifact
}

// Pipeline loads a module, applies the matching stages in order, and scans
// the final code for imports.
type Pipeline struct {
	fs       fs.FileSystem
	rootDir  string
	table    *Table
	scanners func(path string) scan.Scanner
	logger   logging.Logger
}

// NewPipeline creates a pipeline reading sources from fsys. A nil table
// runs no stages.
func NewPipeline(fsys fs.FileSystem, rootDir string, table *Table) *Pipeline {
	if table == nil {
		table = NewTable()
	}
	return &Pipeline{
		fs:       fsys,
		rootDir:  filepath.Clean(rootDir),
		table:    table,
		scanners: scan.ForPath,
		logger:   logging.Discard(),
	}
}

// WithScanners returns a copy of the pipeline that picks import scanners
// with fn instead of by file extension.
func (p *Pipeline) WithScanners(fn func(path string) scan.Scanner) *Pipeline {
	clone := *p
	clone.scanners = fn
	return &clone
}

// WithLogger returns a copy of the pipeline that logs to l.
func (p *Pipeline) WithLogger(l logging.Logger) *Pipeline {
	clone := *p
	clone.logger = logging.OrDiscard(l)
	return &clone
}

// Table returns the registration table.
func (p *Pipeline) Table() *Table {
	return p.table
}

// RelPath returns the slash-separated path of id relative to the project
// root, as matched by registration globs.
func (p *Pipeline) RelPath(id module.ID) string {
	rel, err := filepath.Rel(p.rootDir, id.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return strings.TrimPrefix(filepath.ToSlash(id.Path), "/")
	}
	return filepath.ToSlash(rel)
}

// Stages returns the registrations that apply to id, in execution order.
func (p *Pipeline) Stages(id module.ID) []Registration {
	return p.table.Match(id, p.RelPath(id))
}

// ConfigKey identifies the stage configuration applied to id.
func (p *Pipeline) ConfigKey(id module.ID) string {
	return ConfigKey(p.Stages(id))
}

// Load reads the raw source of id.
func (p *Pipeline) Load(id module.ID) ([]byte, error) {
	raw, err := p.fs.ReadFile(id.Path)
	if err != nil {
		return nil, &TransformError{Module: id, Stage: StageLoad, Cause: err}
	}
	return raw, nil
}

// Run loads id and processes it.
func (p *Pipeline) Run(ctx context.Context, id module.ID) (*Output, error) {
	raw, err := p.Load(id)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, id, raw)
}

// Process applies the matching stages to raw and scans the result.
// Stage failures are returned as *TransformError.
func (p *Pipeline) Process(ctx context.Context, id module.ID, raw []byte) (*Output, error) {
	out := &Output{Code: raw}
	for _, reg := range p.Stages(id) {
		res, err := runStage(ctx, reg, Source{ID: id, Code: out.Code, SourceMap: out.SourceMap})
		if err != nil {
			return nil, &TransformError{Module: id, Stage: reg.Name, Cause: err}
		}
		out.Code = res.Code
		if res.SourceMap != nil {
			out.SourceMap = res.SourceMap
		}
		out.Artifacts = append(out.Artifacts, res.Artifacts...)
	}

	if scanner := p.scanners(id.Path); scanner != nil {
		imports, err := scanner.Scan(out.Code)
		if err != nil {
			return nil, &TransformError{Module: id, Stage: StageScan, Cause: err}
		}
		out.Imports = imports
	}
	p.logger.Debug("Processed module", "module", id, "imports", len(out.Imports))
	return out, nil
}

func runStage(ctx context.Context, reg Registration, src Source) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.Fn(ctx, src)
}
