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
package scan

import (
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

var languages = map[string]*ts.Language{
	"typescript": ts.NewLanguage(tsTypescript.LanguageTypescript()),
	"tsx":        ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// parserPools holds one sync.Pool of parsers per language.
var parserPools = func() map[string]*sync.Pool {
	pools := make(map[string]*sync.Pool, len(languages))
	for name, lang := range languages {
		pools[name] = &sync.Pool{
			New: func() any {
				parser := ts.NewParser()
				if err := parser.SetLanguage(lang); err != nil {
					panic("failed to set " + name + " language: " + err.Error())
				}
				return parser
			},
		}
	}
	return pools
}()

func getParser(language string) *ts.Parser {
	return parserPools[language].Get().(*ts.Parser)
}

func putParser(language string, p *ts.Parser) {
	p.Reset()
	parserPools[language].Put(p)
}

// QueryManager owns compiled tree-sitter queries keyed by language and name.
type QueryManager struct {
	mu      sync.Mutex
	closed  bool
	queries map[string]*ts.Query // "language/name"
}

// NewQueryManager compiles the named queries for every language.
func NewQueryManager(names []string) (*QueryManager, error) {
	qm := &QueryManager{queries: make(map[string]*ts.Query)}
	for language := range languages {
		for _, name := range names {
			if err := qm.loadQuery(language, name); err != nil {
				qm.Close()
				return nil, err
			}
		}
	}
	return qm, nil
}

func (qm *QueryManager) loadQuery(language, name string) error {
	queryPath := path.Join("queries", language, name+".scm")
	data, err := queryFiles.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query %s: %w", queryPath, err)
	}
	query, qerr := ts.NewQuery(languages[language], string(data))
	if qerr != nil {
		return fmt.Errorf("failed to parse query %s: %w", queryPath, qerr)
	}
	qm.queries[language+"/"+name] = query
	return nil
}

// Close releases all queries. Safe to call more than once.
func (qm *QueryManager) Close() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.closed {
		return
	}
	qm.closed = true
	for _, q := range qm.queries {
		q.Close()
	}
	qm.queries = nil
}

// Query returns a compiled query.
func (qm *QueryManager) Query(language, name string) (*ts.Query, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	q, ok := qm.queries[language+"/"+name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s/%s", language, name)
	}
	return q, nil
}

var (
	globalQM     *QueryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

// GetQueryManager returns the process-wide query manager.
func GetQueryManager() (*QueryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = NewQueryManager([]string{"imports"})
	})
	return globalQM, globalQMErr
}
