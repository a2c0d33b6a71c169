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

// Package stages provides the built-in transform stages and looks them up by
// the names used in configuration files.
package stages

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"bennypowers.dev/bindle/fingerprint"
	"bennypowers.dev/bindle/transform"
)

// Factory builds a stage from decoded options.
type Factory func(options map[string]any) (transform.Func, error)

var factories = map[string]Factory{
	"esbuild": func(options map[string]any) (transform.Func, error) {
		var opts ESBuildOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return ESBuild(opts)
	},
	"css": func(options map[string]any) (transform.Func, error) {
		var opts CSSOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return CSS(opts), nil
	},
	"asset": func(options map[string]any) (transform.Func, error) {
		var opts AssetOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return Asset(opts), nil
	},
	"banner": func(options map[string]any) (transform.Func, error) {
		var opts BannerOptions
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return Banner(opts), nil
	},
}

// Names returns the registered stage names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the stage named use with the given options. The returned
// version string changes whenever the options do.
func Lookup(use string, options map[string]any) (transform.Func, string, error) {
	factory, ok := factories[use]
	if !ok {
		return nil, "", fmt.Errorf("unknown transform %q (available: %v)", use, Names())
	}
	fn, err := factory(options)
	if err != nil {
		return nil, "", fmt.Errorf("transform %q: %w", use, err)
	}
	return fn, version(use, options), nil
}

func decode(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// version hashes the options; encoding/json sorts map keys.
func version(use string, options map[string]any) string {
	data, err := json.Marshal(options)
	if err != nil {
		data = fmt.Appendf(nil, "%v", options)
	}
	return fingerprint.Short(fingerprint.SHA256.Combine(use, string(data)), 12)
}
