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
package fingerprint_test

import (
	"testing"

	"bennypowers.dev/bindle/fingerprint"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    fingerprint.Algorithm
		wantErr bool
	}{
		{"", fingerprint.SHA256, false},
		{"sha256", fingerprint.SHA256, false},
		{"XXHASH", fingerprint.XXHash, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := fingerprint.Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSumIsDeterministic(t *testing.T) {
	for _, algo := range []fingerprint.Algorithm{fingerprint.SHA256, fingerprint.XXHash} {
		a := algo.Sum([]byte("export default 1"))
		b := algo.Sum([]byte("export default 1"))
		c := algo.Sum([]byte("export default 2"))
		if a != b {
			t.Errorf("%s: expected identical digests, got %q and %q", algo, a, b)
		}
		if a == c {
			t.Errorf("%s: expected different content to change the digest", algo)
		}
	}
	if len(fingerprint.SHA256.Sum(nil)) != 64 {
		t.Error("Expected 64 hex characters for sha256")
	}
	if len(fingerprint.XXHash.Sum(nil)) != 16 {
		t.Error("Expected 16 hex characters for xxhash")
	}
}

func TestCombine(t *testing.T) {
	algo := fingerprint.SHA256
	if algo.Combine("ab", "c") == algo.Combine("a", "bc") {
		t.Error("Expected part boundaries to affect the digest")
	}
	if algo.Combine("a", "b") == algo.Combine("b", "a") {
		t.Error("Expected Combine to be order sensitive")
	}
	if algo.CombineSorted([]string{"b", "a"}) != algo.CombineSorted([]string{"a", "b"}) {
		t.Error("Expected CombineSorted to ignore input order")
	}
}

func TestShort(t *testing.T) {
	if got := fingerprint.Short("0123456789abcdef", 10); got != "0123456789" {
		t.Errorf("Expected %q, got %q", "0123456789", got)
	}
	if got := fingerprint.Short("abc", 10); got != "abc" {
		t.Errorf("Expected %q, got %q", "abc", got)
	}
}
