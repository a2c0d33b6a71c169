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
package resolve

import (
	"errors"
	"fmt"

	"bennypowers.dev/bindle/module"
)

var (
	// ErrNotFound is wrapped by resolution errors when no candidate file exists.
	ErrNotFound = errors.New("module not found")
	// ErrPackageNotFound is returned by a PackageLocator for unknown packages.
	ErrPackageNotFound = errors.New("package not found")
)

// ResolutionError reports a specifier that could not be mapped to a module.
type ResolutionError struct {
	Specifier string
	From      module.ID
	Reason    string
	Err       error
}

func (e *ResolutionError) Error() string {
	from := "<entry>"
	if !e.From.IsZero() {
		from = e.From.String()
	}
	if e.Reason == "" && e.Err != nil {
		return fmt.Sprintf("cannot resolve %q from %s: %v", e.Specifier, from, e.Err)
	}
	return fmt.Sprintf("cannot resolve %q from %s: %s", e.Specifier, from, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
