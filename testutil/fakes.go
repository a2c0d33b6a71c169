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
package testutil

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"

	"bennypowers.dev/bindle/internal/mapfs"
	"bennypowers.dev/bindle/module"
	"bennypowers.dev/bindle/scan"
	"bennypowers.dev/bindle/transform"
)

// LineScanner is a scanner for terse test modules. Each line of the form
//
//	import ./b
//	lazy ./c [chunkName]
//	prefetch ./d [chunkName]
//
// declares a static, dynamic, or prefetched dynamic import. Other lines
// are ignored.
var LineScanner = scan.ScannerFunc(func(content []byte) ([]scan.Import, error) {
	var imports []scan.Import
	s := bufio.NewScanner(bytes.NewReader(content))
	line := 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		verb := fields[0]
		imp := scan.Import{Specifier: fields[1], Line: line}
		if len(fields) > 2 {
			imp.ChunkName = fields[2]
		}
		switch verb {
		case "import":
			imp.Kind = scan.Static
		case "lazy":
			imp.Kind = scan.Dynamic
		case "prefetch":
			imp.Kind = scan.Dynamic
			imp.Prefetch = true
		default:
			continue
		}
		imports = append(imports, imp)
	}
	return imports, s.Err()
})

// LineScanners selects LineScanner for every path.
func LineScanners(string) scan.Scanner {
	return LineScanner
}

// NewProjectFS returns an in-memory filesystem holding files, keyed by
// absolute path.
func NewProjectFS(files map[string]string) *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFiles(files)
	return mfs
}

// Counter records how many times a stage ran per module.
type Counter struct {
	mu    sync.Mutex
	calls map[module.ID]int
}

// Stage returns a pass-through registration that counts its invocations.
func (c *Counter) Stage(name string) transform.Registration {
	return transform.Registration{
		Name:    name,
		Version: "1",
		Fn: func(_ context.Context, src transform.Source) (transform.Result, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.calls == nil {
				c.calls = make(map[module.ID]int)
			}
			c.calls[src.ID]++
			return transform.Result{Code: src.Code}, nil
		},
	}
}

// Calls returns the number of runs for id.
func (c *Counter) Calls(id module.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

// Total returns the number of runs across all modules.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// Reset clears the counts.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
