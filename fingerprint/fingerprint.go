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

// Package fingerprint computes content hashes used for change detection and
// cache-busting output names.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm names a hash function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	XXHash Algorithm = "xxhash"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Parse validates an algorithm name. The empty string selects Default.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(name)) {
	case "":
		return Default, nil
	case SHA256:
		return SHA256, nil
	case XXHash:
		return XXHash, nil
	default:
		return "", fmt.Errorf("unknown fingerprint algorithm %q (want sha256 or xxhash)", name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	if a == XXHash {
		return xxhash.New()
	}
	return sha256.New()
}

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Combine hashes parts in the order given. Each part is length-prefixed so
// that ("ab", "c") and ("a", "bc") differ.
func (a Algorithm) Combine(parts ...string) string {
	h := a.newHash()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CombineSorted is Combine over a sorted copy of parts.
func (a Algorithm) CombineSorted(parts []string) string {
	sorted := slices.Clone(parts)
	slices.Sort(sorted)
	return a.Combine(sorted...)
}

// Short truncates a digest to n characters.
func Short(digest string, n int) string {
	if n <= 0 || n >= len(digest) {
		return digest
	}
	return digest[:n]
}
