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
package emit

import (
	"encoding/json"
	"path"
	"strings"
)

// PrecacheEntry is one file a service worker should cache.
type PrecacheEntry struct {
	URL      string `json:"url"`
	Revision string `json:"revision"`
}

// emitPrecache appends the precache manifest. Source maps are left out.
func (e *Emitter) emitPrecache(out *Output) error {
	entries := make([]PrecacheEntry, 0, len(out.Assets))
	for _, a := range out.Assets {
		if strings.HasSuffix(a.Name, ".map") {
			continue
		}
		entries = append(entries, PrecacheEntry{URL: e.url(a.Name), Revision: a.Revision})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	out.Assets = append(out.Assets, e.asset(path.Clean(PrecacheManifest), "", append(data, '\n')))
	return nil
}
