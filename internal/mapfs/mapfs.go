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

// Package mapfs provides an in-memory fs.FileSystem for tests.
package mapfs

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// epoch is the modification time of files added before any write.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// MapFileSystem implements fs.FileSystem over an fstest.MapFS.
// Directories exist implicitly when a file lives beneath them.
//
// Every WriteFile advances a logical clock by one second, so a rewritten
// source reports a newer ModTime than the one it replaced.
type MapFileSystem struct {
	mu      sync.RWMutex
	files   fstest.MapFS
	clock   time.Time
	written []string
}

// New creates an empty in-memory filesystem.
func New() *MapFileSystem {
	return &MapFileSystem{files: make(fstest.MapFS), clock: epoch}
}

// AddFile adds a file without recording it as written.
func (mfs *MapFileSystem) AddFile(name string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.files[key(name)] = &fstest.MapFile{Data: []byte(content), Mode: mode, ModTime: epoch}
}

// AddFiles adds every path -> content pair with mode 0644.
func (mfs *MapFileSystem) AddFiles(files map[string]string) {
	for name, content := range files {
		mfs.AddFile(name, content, 0644)
	}
}

// Content returns a file's content as a string, or "" when it is missing.
func (mfs *MapFileSystem) Content(name string) string {
	data, err := mfs.ReadFile(name)
	if err != nil {
		return ""
	}
	return string(data)
}

// Written returns the absolute paths passed to WriteFile, sorted and
// deduplicated.
func (mfs *MapFileSystem) Written() []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	out := slices.Clone(mfs.written)
	slices.Sort(out)
	return slices.Compact(out)
}

func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	k := key(name)
	if parent, ok := mfs.files[path.Dir(k)]; ok && !parent.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("not a directory")}
	}
	mfs.clock = mfs.clock.Add(time.Second)
	mfs.files[k] = &fstest.MapFile{Data: slices.Clone(data), Mode: perm, ModTime: mfs.clock}
	mfs.written = append(mfs.written, "/"+k)
	return nil
}

func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadFile(mfs.files, key(name))
}

// Remove deletes a file.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	k := key(name)
	if _, ok := mfs.files[k]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(mfs.files, k)
	return nil
}

// MkdirAll records the directory with a .keep marker so it exists while
// empty.
func (mfs *MapFileSystem) MkdirAll(dir string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	k := key(dir)
	if f, ok := mfs.files[k]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	mfs.files[path.Join(k, ".keep")] = &fstest.MapFile{Mode: perm.Perm(), ModTime: epoch}
	return nil
}

func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.Stat(mfs.files, key(name))
}

// Exists reports whether name is a file or has files beneath it.
func (mfs *MapFileSystem) Exists(name string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	k := key(name)
	if _, ok := mfs.files[k]; ok {
		return true
	}
	prefix := k + "/"
	for p := range mfs.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadDir(mfs.files, key(name))
}

// key maps an absolute or relative path to its fstest.MapFS key, which
// has no leading slash.
func key(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
