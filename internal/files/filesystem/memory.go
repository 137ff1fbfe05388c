package filesystem

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryFileSystem is an in-memory FileSystem for tests. Paths are
// normalized with path.Clean; directories spring into existence when a
// file is written below them.
// Safe for concurrent use by multiple goroutines.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem creates an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true},
	}
}

// AddFile seeds a file, creating parent directories implicitly.
func (m *MemoryFileSystem) AddFile(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.files[p] = content
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		m.dirs[dir] = true
	}
}

func (m *MemoryFileSystem) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (m *MemoryFileSystem) WriteFile(p string, content []byte, _ fs.FileMode) error {
	m.AddFile(p, content)
	return nil
}

func (m *MemoryFileSystem) Stat(p string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = path.Clean(p)
	if content, ok := m.files[p]; ok {
		return &memoryInfo{name: path.Base(p), size: int64(len(content))}, nil
	}
	if m.dirs[p] {
		return &memoryInfo{name: path.Base(p), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (m *MemoryFileSystem) MkdirAll(p string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	for ; p != "." && p != "/"; p = path.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// Paths returns the sorted paths of all files, for test assertions.
func (m *MemoryFileSystem) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// memoryInfo is a minimal FileInfo for in-memory entries.
type memoryInfo struct {
	name string
	size int64
	dir  bool
}

func (i *memoryInfo) Name() string { return strings.TrimSuffix(i.name, "/") }
func (i *memoryInfo) Size() int64  { return i.size }
func (i *memoryInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i *memoryInfo) ModTime() time.Time { return time.Time{} }
func (i *memoryInfo) IsDir() bool        { return i.dir }
func (i *memoryInfo) Sys() interface{}   { return nil }
