// Package assets serves the viewer's static files from a local directory or
// an S3 bucket.
package assets

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no object exists under a name.
	ErrNotFound = errors.New("assets: not found")

	// ErrForbidden is returned for names that escape the source root.
	ErrForbidden = errors.New("assets: forbidden path")
)

// IndexFile is served for the root and for directories.
const IndexFile = "index.html"

// Object is an opened static file. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Source opens static files by slash-separated relative name.
type Source interface {
	Open(ctx context.Context, name string) (*Object, error)
}

// CleanPath returns a sanitized relative name for a request path. An empty
// path maps to IndexFile. It rejects traversal and absolute-path tricks so
// a Source can never be asked for a name outside its root.
func CleanPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		return IndexFile, true
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A remaining leading "/" means an absolute-path attempt ("//etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning so traversal is not cleaned away.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	dir := strings.HasSuffix(rel, "/")
	clean := path.Clean(rel)
	if clean == "." || clean == "" || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	if dir {
		clean = path.Join(clean, IndexFile)
	}
	return clean, true
}

var contentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".gif":  "image/gif",
	".txt":  "text/plain",
}

// ContentType returns the content type for name by extension, defaulting to
// application/octet-stream.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// isFingerprinted checks if a file path appears to be fingerprinted.
// Fingerprinted files have a hash in their name, e.g., "app.a1b2c3d4.css"
func isFingerprinted(filePath string) bool {
	parts := strings.Split(path.Base(filePath), ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
