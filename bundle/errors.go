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
	"errors"
	"fmt"

	"bennypowers.dev/bindle/module"
)

// ErrDisposed is returned by a session after Dispose.
var ErrDisposed = errors.New("build session disposed")

// FatalError ends a build without a result: an entry module failed to
// resolve, load, or transform.
type FatalError struct {
	// Entry is the entry as configured.
	Entry string
	// Module is the resolved entry, when resolution succeeded.
	Module module.ID
	Err    error
}

func (e *FatalError) Error() string {
	if e.Module.IsZero() {
		return fmt.Sprintf("entry %q: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("entry %s: %v", e.Module, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
