package render

import (
	"mime"
	"path"
	"strings"
)

// Output layout of a published site.
const (
	PostsDir   = "posts"
	TagsDir    = "tags"
	ArchiveDir = "archive"
	StaticDir  = "static"
	PageFile   = "index.html"
	MetaFile   = "meta.json"
	SourceFile = "index.md"
)

// Invalidation paths for shared pages.
const (
	TagsInvalidation    = "/tags/*"
	HomeInvalidation    = "/index.html"
	ArchiveInvalidation = "/archive/*"
)

func PostDir(slug string) string  { return PostsDir + "/" + slug }
func PostPage(slug string) string { return PostDir(slug) + "/" + PageFile }
func PostMeta(slug string) string { return PostDir(slug) + "/" + MetaFile }

// PostAsset places an asset under its post. rel is cleaned and may not escape
// the post directory.
func PostAsset(slug, rel string) string {
	return PostDir(slug) + "/" + cleanRel(rel)
}

func TagPage(tagSlug string) string { return TagsDir + "/" + tagSlug + "/" + PageFile }
func TagListPage() string           { return TagsDir + "/" + PageFile }
func ArchivePage() string           { return ArchiveDir + "/" + PageFile }
func HomePage() string              { return PageFile }
func StaticAsset(rel string) string { return StaticDir + "/" + cleanRel(rel) }

// PostInvalidation is the cache path covering everything published for slug.
func PostInvalidation(slug string) string { return "/" + PostDir(slug) + "/*" }

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func cleanRel(rel string) string {
	c := path.Clean("/" + strings.ReplaceAll(rel, "\\", "/"))
	return strings.TrimPrefix(c, "/")
}
