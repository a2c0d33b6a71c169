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
package packagejson_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"bennypowers.dev/bindle/packagejson"
)

var _ packagejson.Cache = (*packagejson.MemoryCache)(nil)

func TestMemoryCacheSetGetInvalidate(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	if _, ok := cache.Get("/app/package.json"); ok {
		t.Error("Expected cache miss before Set")
	}

	cache.Set("/app/package.json", &packagejson.PackageJSON{Name: "app"})
	got, ok := cache.Get("/app/package.json")
	if !ok || got.Name != "app" {
		t.Fatalf("Expected cached package 'app', got %v", got)
	}

	cache.Invalidate("/app/package.json")
	if _, ok := cache.Get("/app/package.json"); ok {
		t.Error("Expected cache miss after Invalidate")
	}

	// Invalidating an unknown key is a no-op.
	cache.Invalidate("/nope/package.json")
}

func TestMemoryCacheGetOrLoadConcurrent(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	var loads atomic.Int32
	loader := func() (*packagejson.PackageJSON, error) {
		loads.Add(1)
		return &packagejson.PackageJSON{Name: "lit"}, nil
	}

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			pkg, err := cache.GetOrLoad("/node_modules/lit/package.json", loader)
			if err != nil {
				t.Errorf("GetOrLoad failed: %v", err)
				return
			}
			if pkg.Name != "lit" {
				t.Errorf("Expected 'lit', got %q", pkg.Name)
			}
		})
	}
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("Expected loader to run once, ran %d times", loads.Load())
	}
	if _, ok := cache.Get("/node_modules/lit/package.json"); !ok {
		t.Error("Expected loaded package to be cached")
	}
}

func TestMemoryCacheInvalidateAllowsReload(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	var loads atomic.Int32
	loader := func() (*packagejson.PackageJSON, error) {
		n := loads.Add(1)
		return &packagejson.PackageJSON{Version: string(rune('0' + n))}, nil
	}

	pkg, _ := cache.GetOrLoad("/p/package.json", loader)
	if pkg.Version != "1" {
		t.Errorf("Expected version '1', got %q", pkg.Version)
	}
	cache.Invalidate("/p/package.json")
	pkg, _ = cache.GetOrLoad("/p/package.json", loader)
	if pkg.Version != "2" {
		t.Errorf("Expected version '2' after invalidate, got %q", pkg.Version)
	}
}

func TestMemoryCacheDoesNotStoreErrors(t *testing.T) {
	cache := packagejson.NewMemoryCache()
	boom := errors.New("boom")

	_, err := cache.GetOrLoad("/bad/package.json", func() (*packagejson.PackageJSON, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if _, ok := cache.Get("/bad/package.json"); ok {
		t.Error("Expected failed load not to be cached")
	}
}
