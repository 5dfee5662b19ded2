// Package storage defines the published-site object store abstraction.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for published output. Paths are slash separated
// and relative to the site root.
type Provider interface {
	// Read returns the bytes stored at path; missing objects wrap apperr.ErrNotFound.
	Read(path string) ([]byte, error)
	// Write atomically stores data at path.
	Write(path string, data []byte, contentType string) error
	// Delete removes the object at path; missing objects wrap apperr.ErrNotFound.
	Delete(path string) error
	// List returns every object whose path starts with prefix.
	List(prefix string) ([]ObjectInfo, error)
	// Exists reports whether an object is stored at path.
	Exists(path string) (bool, error)
}

// DeletePrefix removes every object under prefix and returns the deleted paths.
// It keeps going after individual failures and joins their errors.
func DeletePrefix(p Provider, prefix string) ([]string, error) {
	objs, err := p.List(prefix)
	if err != nil {
		return nil, err
	}
	var (
		deleted []string
		errs    []error
	)
	for _, o := range objs {
		if err := p.Delete(o.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, o.Path)
	}
	return deleted, errors.Join(errs...)
}

// DirPrefix returns dir with exactly one trailing slash.
func DirPrefix(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/"
}

func notFound(path string, err error) error {
	return fmt.Errorf("storage: %s: %w", path, err)
}
