package assets

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves static files from src. Only GET and HEAD are allowed.
// Paths that escape the root get 403, missing files 404.
func Handler(src Source) http.Handler {
	logger := slog.Default().With("component", "assets")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		name, ok := CleanPath(r.URL.Path)
		if !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		obj, err := src.Open(r.Context(), name)
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "Not found", http.StatusNotFound)
			return
		case errors.Is(err, ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		case err != nil:
			logger.Warn("static file open failed", "name", name, "error", err)
			http.Error(w, "Error reading file", http.StatusInternalServerError)
			return
		}
		defer obj.Body.Close()

		h := w.Header()
		h.Set("Content-Type", obj.ContentType)
		if obj.Size > 0 {
			h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		if isFingerprinted(name) {
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			h.Set("Cache-Control", "no-cache")
		}
		if !obj.ModTime.IsZero() {
			h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)

		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, obj.Body); err != nil {
			logger.Debug("static file write failed", "name", name, "error", err)
		}
	})
}
