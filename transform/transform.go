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

// Package transform runs module sources through an ordered table of
// registered transform stages.
package transform

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/bindle/module"
)

// Source is the input to a stage.
type Source struct {
	ID        module.ID
	Code      []byte
	SourceMap []byte
}

// Result is the output of a stage. A nil SourceMap keeps the previous one.
type Result struct {
	Code      []byte
	SourceMap []byte
	Artifacts []module.Artifact
}

// Func is a transform stage. Stages must be pure: the same input and the
// same registration yield the same output.
type Func func(ctx context.Context, src Source) (Result, error)

// Bytes adapts a plain bytes-in, bytes-out function to a Func.
func Bytes(fn func(code []byte, path string) ([]byte, error)) Func {
	return func(_ context.Context, src Source) (Result, error) {
		out, err := fn(src.Code, src.ID.Path)
		if err != nil {
			return Result{}, err
		}
		return Result{Code: out}, nil
	}
}

// Registration binds a stage to the modules it applies to.
type Registration struct {
	Name string
	// Include globs select modules by project-relative path. Empty matches all.
	Include []string
	// Exclude globs take precedence over Include.
	Exclude []string
	// Query, when set, must equal the module ID's query.
	Query string
	// Priority orders stages; higher runs first. Equal priorities keep
	// registration order.
	Priority int
	// Version identifies the stage's configuration. Changing it invalidates
	// memoized results for every module the stage applies to.
	Version string
	Fn      Func
}

// Matches reports whether the registration applies to id, whose path
// relative to the project root is rel (slash-separated).
func (r Registration) Matches(id module.ID, rel string) bool {
	if r.Query != "" && r.Query != id.Query {
		return false
	}
	for _, pattern := range r.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(r.Include) == 0 {
		return true
	}
	for _, pattern := range r.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Table is an ordered set of registrations. Safe for concurrent Match once
// all registrations are made.
type Table struct {
	regs []Registration
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Register validates and appends a registration.
func (t *Table) Register(reg Registration) error {
	if reg.Name == "" {
		return errors.New("transform registration needs a name")
	}
	if reg.Fn == nil {
		return fmt.Errorf("transform %q has no function", reg.Name)
	}
	for _, pattern := range slices.Concat(reg.Include, reg.Exclude) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("transform %q: invalid pattern %q", reg.Name, pattern)
		}
	}
	t.regs = append(t.regs, reg)
	return nil
}

// Len returns the number of registrations.
func (t *Table) Len() int {
	return len(t.regs)
}

// Match returns the registrations that apply to id in execution order.
func (t *Table) Match(id module.ID, rel string) []Registration {
	var matched []Registration
	for _, reg := range t.regs {
		if reg.Matches(id, rel) {
			matched = append(matched, reg)
		}
	}
	slices.SortStableFunc(matched, func(a, b Registration) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return matched
}

// ConfigKey identifies an ordered list of registrations.
func ConfigKey(regs []Registration) string {
	parts := make([]string, len(regs))
	for i, reg := range regs {
		parts[i] = reg.Name + "@" + reg.Version
	}
	return strings.Join(parts, ",")
}
