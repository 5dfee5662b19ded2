// Package testutil provides shared fakes and fixtures for sync and API tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/fetcher"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tracker"
)

// TestTrackerDB creates a temporary SQLite sync store that is cleaned up
// with the test.
func TestTrackerDB(t *testing.T) *tracker.SQLiteStore {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := tracker.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSite creates a temporary output directory with a storage.FS over it.
func TestSite(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Doc builds an index document with front matter.
func Doc(title, date string, tags []string, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "---\ntitle: %q\ndate: %s\n", title, date)
	if len(tags) > 0 {
		b.WriteString("tags:\n")
		for _, t := range tags {
			fmt.Fprintf(&b, "  - %q\n", t)
		}
	}
	b.WriteString("---\n")
	b.WriteString(body)
	b.WriteString("\n")
	return []byte(b.String())
}

// Source is an in-memory document source.
type Source struct {
	Root string

	mu      sync.Mutex
	files   map[string][]fetcher.File // by directory
	fail    map[string]error
	listErr error
	fetched []string
}

// NewSource creates an empty source under root.
func NewSource(root string) *Source {
	return &Source{Root: root, files: map[string][]fetcher.File{}, fail: map[string]error{}}
}

// Put adds or replaces a file of dir.
func (s *Source) Put(dir, rel string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := strings.TrimPrefix(s.Root+"/"+dir+"/"+rel, "/")
	files := s.files[dir]
	for i, f := range files {
		if f.Path == p {
			files[i].Data = data
			files[i].Size = int64(len(data))
			return
		}
	}
	s.files[dir] = append(files, fetcher.File{Path: p, Name: rel, Data: data, Size: int64(len(data))})
}

// Remove drops a whole directory.
func (s *Source) Remove(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, dir)
}

// FailFetch makes every fetch of dir return err.
func (s *Source) FailFetch(dir string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[dir] = err
}

// FailList makes ListPostSlugs return err.
func (s *Source) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// Fetched returns the directories fetched so far, in order.
func (s *Source) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func (s *Source) ContentRoot() string { return s.Root }

func (s *Source) ListPostSlugs(_ context.Context, _ fetcher.Repo) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]string, 0, len(s.files))
	for d := range s.files {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Source) FetchPostFiles(_ context.Context, _ fetcher.Repo, dir string) ([]fetcher.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, dir)
	if err := s.fail[dir]; err != nil {
		return nil, err
	}
	files, ok := s.files[dir]
	if !ok {
		return nil, fmt.Errorf("testutil: %s: %w", dir, apperr.ErrNotFound)
	}
	return append([]fetcher.File(nil), files...), nil
}

// Notifier records every message.
type Notifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	Err  error
}

func (n *Notifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.Err
}

// Messages returns the recorded messages.
func (n *Notifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

// Invalidation is one recorded invalidation request.
type Invalidation struct {
	DistributionID  string
	Paths           []string
	CallerReference string
}

// Invalidator records invalidation requests.
type Invalidator struct {
	mu    sync.Mutex
	calls []Invalidation
	Err   error
}

func (i *Invalidator) Invalidate(_ context.Context, dist string, paths []string, ref string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, Invalidation{DistributionID: dist, Paths: append([]string(nil), paths...), CallerReference: ref})
	return i.Err
}

// Calls returns the recorded requests.
func (i *Invalidator) Calls() []Invalidation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Invalidation(nil), i.calls...)
}

// ErrFlaky is returned by FlakyStore for injected failures.
var ErrFlaky = errors.New("testutil: injected write failure")

// FlakyStore wraps a provider and fails writes to chosen paths a set number
// of times before letting them through.
type FlakyStore struct {
	storage.Provider

	mu       sync.Mutex
	failures map[string]int
	writes   map[string]int
}

// NewFlakyStore wraps p.
func NewFlakyStore(p storage.Provider) *FlakyStore {
	return &FlakyStore{Provider: p, failures: map[string]int{}, writes: map[string]int{}}
}

// FailWrites makes the next n writes to path fail. n < 0 fails forever.
func (f *FlakyStore) FailWrites(path string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = n
}

// Writes returns how many writes to path were attempted.
func (f *FlakyStore) Writes(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[path]
}

func (f *FlakyStore) Write(path string, data []byte, contentType string) error {
	f.mu.Lock()
	f.writes[path]++
	n := f.failures[path]
	if n > 0 {
		f.failures[path] = n - 1
	}
	f.mu.Unlock()
	if n != 0 {
		return fmt.Errorf("write %s: %w", path, ErrFlaky)
	}
	return f.Provider.Write(path, data, contentType)
}
