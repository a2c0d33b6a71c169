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
package bundle

import (
	"context"

	"bennypowers.dev/bindle/graph"
	"bennypowers.dev/bindle/transform"
)

// Plugin extends a build session. A plugin implements one or both of
// TransformPlugin and GraphPlugin.
type Plugin interface {
	Name() string
}

// TransformPlugin contributes transform stages.
type TransformPlugin interface {
	Plugin
	Transforms() []transform.Registration
}

// GraphPlugin inspects each completed graph. The returned errors are
// reported as warnings; they never fail the build.
type GraphPlugin interface {
	Plugin
	OnGraphComplete(ctx context.Context, g *graph.Graph) []error
}

// Transforms adapts a list of registrations to a TransformPlugin.
func Transforms(name string, regs ...transform.Registration) TransformPlugin {
	return transformsPlugin{name: name, regs: regs}
}

type transformsPlugin struct {
	name string
	regs []transform.Registration
}

func (p transformsPlugin) Name() string { return p.name }
func (p transformsPlugin) Transforms() []transform.Registration { return p.regs }
