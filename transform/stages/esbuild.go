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
package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"bennypowers.dev/bindle/transform"
)

// ESBuildOptions configures the esbuild stage.
type ESBuildOptions struct {
	// Target is the output language level, e.g. "es2017". Default "esnext".
	Target string `mapstructure:"target"`
	Minify bool   `mapstructure:"minify"`
	// SourceMap attaches an external source map to the result.
	SourceMap bool `mapstructure:"sourceMap"`
	// JSX is "automatic" (default) or "transform".
	JSX             string `mapstructure:"jsx"`
	JSXImportSource string `mapstructure:"jsxImportSource"`
}

var targets = map[string]api.Target{
	"":       api.ESNext,
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

var loaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".css": api.LoaderCSS,
}

// LoaderFor returns the esbuild loader for a file extension.
func LoaderFor(ext string) (api.Loader, bool) {
	l, ok := loaders[strings.ToLower(ext)]
	return l, ok
}

// ESBuild returns a stage that down-levels JavaScript, JSX, and TypeScript.
// Module syntax is preserved so imports remain visible to the scanner.
func ESBuild(opts ESBuildOptions) (transform.Func, error) {
	target, ok := targets[strings.ToLower(opts.Target)]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", opts.Target)
	}
	jsx := api.JSXAutomatic
	switch opts.JSX {
	case "", "automatic":
	case "transform":
		jsx = api.JSXTransform
	default:
		return nil, fmt.Errorf("unknown jsx mode %q", opts.JSX)
	}

	return func(_ context.Context, src transform.Source) (transform.Result, error) {
		loader, ok := LoaderFor(src.ID.Ext())
		if !ok {
			return transform.Result{}, fmt.Errorf("no loader for %q", src.ID.Ext())
		}
		to := api.TransformOptions{
			Loader:            loader,
			Target:            target,
			Sourcefile:        src.ID.Path,
			JSX:               jsx,
			JSXImportSource:   opts.JSXImportSource,
			MinifyWhitespace:  opts.Minify,
			MinifySyntax:      opts.Minify,
			MinifyIdentifiers: opts.Minify,
			LegalComments:     api.LegalCommentsInline,
		}
		if opts.SourceMap {
			to.Sourcemap = api.SourceMapExternal
		}
		result := api.Transform(string(src.Code), to)
		if err := messagesError(result.Errors); err != nil {
			return transform.Result{}, err
		}
		res := transform.Result{Code: result.Code}
		if opts.SourceMap {
			res.SourceMap = result.Map
		}
		return res, nil
	}, nil
}

// CSSOptions configures the css stage.
type CSSOptions struct {
	Minify bool `mapstructure:"minify"`
}

// CSS returns a stage that normalizes and optionally minifies stylesheets.
func CSS(opts CSSOptions) transform.Func {
	return func(_ context.Context, src transform.Source) (transform.Result, error) {
		result := api.Transform(string(src.Code), api.TransformOptions{
			Loader:           api.LoaderCSS,
			Sourcefile:       src.ID.Path,
			MinifyWhitespace: opts.Minify,
			MinifySyntax:     opts.Minify,
		})
		if err := messagesError(result.Errors); err != nil {
			return transform.Result{}, err
		}
		return transform.Result{Code: result.Code}, nil
	}
}

func messagesError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			errs = append(errs, fmt.Errorf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text))
		} else {
			errs = append(errs, errors.New(msg.Text))
		}
	}
	return errors.Join(errs...)
}
