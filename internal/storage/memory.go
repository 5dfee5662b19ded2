package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// Object is an in-memory stored object.
type Object struct {
	Data        []byte
	ContentType string
	UpdatedAt   time.Time
}

// Memory is a Provider kept in process memory, used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ Provider = (*Memory)(nil)

// NewMemory returns an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	if !ok {
		return nil, notFound(path, apperr.ErrNotFound)
	}
	return append([]byte(nil), o.Data...), nil
}

func (m *Memory) Write(path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		UpdatedAt:   time.Now(),
	}
	return nil
}

func (m *Memory) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return notFound(path, apperr.ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}

func (m *Memory) List(prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for p, o := range m.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, ObjectInfo{
			Path:      p,
			Size:      int64(len(o.Data)),
			UpdatedAt: o.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

// Object returns the stored object with its content type.
func (m *Memory) Object(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	return o, ok
}

// Paths returns every stored path, sorted.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
