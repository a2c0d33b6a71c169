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
package graph

import (
	"fmt"

	"bennypowers.dev/bindle/scan"
)

// DeferredRule decides whether an import becomes a deferred edge.
type DeferredRule func(imp scan.Import) bool

// DynamicImports defers every import() expression.
func DynamicImports(imp scan.Import) bool {
	return imp.Kind == scan.Dynamic
}

// PrefetchOnly defers only import() expressions annotated with
// webpackPrefetch. Other dynamic imports are loaded eagerly.
func PrefetchOnly(imp scan.Import) bool {
	return imp.Kind == scan.Dynamic && imp.Prefetch
}

// NeverDeferred makes every import eager.
func NeverDeferred(scan.Import) bool {
	return false
}

// ParseDeferredRule returns the rule with the given configuration name.
// The empty string selects DynamicImports.
func ParseDeferredRule(name string) (DeferredRule, error) {
	switch name {
	case "", "dynamic-import":
		return DynamicImports, nil
	case "prefetch-only":
		return PrefetchOnly, nil
	case "none":
		return NeverDeferred, nil
	default:
		return nil, fmt.Errorf("unknown deferred rule %q (want dynamic-import, prefetch-only, or none)", name)
	}
}
