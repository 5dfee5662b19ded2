// Package fetcher retrieves documents and directory listings from a hosted
// repository through the GitHub contents API.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/retry"
)

const (
	DefaultBaseURL     = "https://api.github.com"
	DefaultContentRoot = "content"
	DefaultMaxFileSize = 10 << 20 // 10 MB
	DefaultTimeout     = 30 * time.Second

	mediaTypeJSON = "application/vnd.github+json"
	mediaTypeRaw  = "application/vnd.github.raw"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == "dir" }

// File is a fetched file with its repository path.
type File struct {
	Path string
	Name string
	Data []byte
	Size int64
}

// Config holds fetcher settings; zero values take defaults.
type Config struct {
	BaseURL     string
	Token       string
	ContentRoot string
	MaxFileSize int64
	Timeout     time.Duration
}

// Fetcher talks to the source host. It is safe for concurrent use.
type Fetcher struct {
	cfg    Config
	client *http.Client
	retry  *retry.Handler
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetry replaces the retry handler used for directory listings.
func WithRetry(h *retry.Handler) Option {
	return func(f *Fetcher) { f.retry = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.ContentRoot == "" {
		cfg.ContentRoot = DefaultContentRoot
	}
	cfg.ContentRoot = strings.Trim(cfg.ContentRoot, "/")
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{},
		retry:  retry.New(retry.DefaultPolicy()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ContentRoot returns the repository directory holding one folder per post.
func (f *Fetcher) ContentRoot() string { return f.cfg.ContentRoot }

// PostDir returns the repository directory of a post.
func (f *Fetcher) PostDir(slug string) string {
	return path.Join(f.cfg.ContentRoot, slug)
}

// FetchFile downloads one file. A missing file returns apperr.ErrNotFound and
// is never retried. Files over the size limit are rejected from the
// Content-Length hint when present and again from the bytes received.
func (f *Fetcher) FetchFile(ctx context.Context, repo Repo, filePath string) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.do(ctx, repo, filePath, mediaTypeRaw)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()

	if hint := resp.Header.Get("Content-Length"); hint != "" {
		if n, err := strconv.ParseInt(hint, 10, 64); err == nil && n > f.cfg.MaxFileSize {
			return File{}, f.tooLarge(filePath, n)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxFileSize+1))
	if err != nil {
		return File{}, fmt.Errorf("fetcher: read %s: %w", filePath, err)
	}
	if int64(len(data)) > f.cfg.MaxFileSize {
		return File{}, f.tooLarge(filePath, int64(len(data)))
	}

	return File{
		Path: filePath,
		Name: path.Base(filePath),
		Data: data,
		Size: int64(len(data)),
	}, nil
}

func (f *Fetcher) tooLarge(filePath string, n int64) error {
	return &fileError{err: fmt.Errorf("fetcher: %s is %d bytes, limit %d: %w", filePath, n, f.cfg.MaxFileSize, apperr.ErrTooLarge)}
}

// ListDirectory lists dirPath. Rate limiting, server errors and network
// failures are retried on the exponential schedule; missing paths and other
// client errors are returned at once.
func (f *Fetcher) ListDirectory(ctx context.Context, repo Repo, dirPath string) ([]Entry, error) {
	var entries []Entry
	res := f.retry.Execute(ctx, func(ctx context.Context, attempt int) error {
		got, err := f.listOnce(ctx, repo, dirPath)
		if err != nil {
			if !IsTransient(err) {
				return retry.Permanent(err)
			}
			f.logger.Warn("fetcher: list failed, will retry",
				slog.String("repo", repo.String()),
				slog.String("path", dirPath),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		entries = got
		return nil
	})
	if !res.Success {
		if last := res.Errors[len(res.Errors)-1]; retry.IsPermanent(last) {
			return nil, unwrapPermanent(last)
		}
		return nil, fmt.Errorf("fetcher: list %s: %w", dirPath, res.Err())
	}
	return entries, nil
}

func unwrapPermanent(err error) error {
	if retry.IsPermanent(err) {
		if u, ok := err.(interface{ Unwrap() error }); ok {
			return u.Unwrap()
		}
	}
	return err
}

func (f *Fetcher) listOnce(ctx context.Context, repo Repo, dirPath string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.do(ctx, repo, dirPath, mediaTypeJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &fileError{err: fmt.Errorf("fetcher: decode listing %s: %w", dirPath, err)}
	}
	return entries, nil
}

// ListPostSlugs returns the names of the immediate subdirectories of the
// content root.
func (f *Fetcher) ListPostSlugs(ctx context.Context, repo Repo) ([]string, error) {
	entries, err := f.ListDirectory(ctx, repo, f.cfg.ContentRoot)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// FetchPostFiles downloads every file in a post's directory, descending into
// subdirectories. A file that fails to download is logged and skipped so the
// rest of the post still arrives; only a failed listing of the post's own
// directory is an error.
func (f *Fetcher) FetchPostFiles(ctx context.Context, repo Repo, slug string) ([]File, error) {
	root := f.PostDir(slug)
	entries, err := f.ListDirectory(ctx, repo, root)
	if err != nil {
		return nil, err
	}

	var files []File
	queue := entries
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if e.IsDir() {
			sub, err := f.ListDirectory(ctx, repo, e.Path)
			if err != nil {
				f.logger.Warn("fetcher: skipping asset directory",
					slog.String("path", e.Path),
					slog.String("error", err.Error()))
				continue
			}
			queue = append(queue, sub...)
			continue
		}
		if e.Type != "file" {
			continue
		}

		file, err := f.FetchFile(ctx, repo, e.Path)
		if err != nil {
			f.logger.Warn("fetcher: skipping file",
				slog.String("slug", slug),
				slog.String("path", e.Path),
				slog.String("error", err.Error()))
			continue
		}
		if e.SHA != "" && checksum.GitBlob(file.Data) != e.SHA {
			// Changed between listing and download, or truncated.
			f.logger.Warn("fetcher: skipping file with mismatched sha",
				slog.String("slug", slug),
				slog.String("path", e.Path),
				slog.String("want", e.SHA))
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

// RelPath returns p relative to the post directory of slug.
func (f *Fetcher) RelPath(slug, p string) string {
	return strings.TrimPrefix(p, f.PostDir(slug)+"/")
}

func (f *Fetcher) do(ctx context.Context, repo Repo, p, accept string) (*http.Response, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		f.cfg.BaseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), escapePath(p))
	if repo.Ref != "" {
		u += "?ref=" + url.QueryEscape(repo.Ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &fileError{err: fmt.Errorf("fetcher: build request: %w", err)}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: GET %s: %w", p, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("fetcher: %s: %w", p, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}
	return resp, nil
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
