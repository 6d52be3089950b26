package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// spaHandler serves files from the app directory and falls back to
// index.html for client-side routes.
type spaHandler struct {
	root       fs.FS
	fileServer http.Handler
}

func newSPAHandler(dir string) *spaHandler {
	if dir == "" {
		return &spaHandler{}
	}
	root := os.DirFS(dir)
	return &spaHandler{root: root, fileServer: http.FileServerFS(root)}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.root == nil {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name != "" {
		info, err := fs.Stat(h.root, name)
		if err == nil && !info.IsDir() {
			h.fileServer.ServeHTTP(w, r)
			return
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	http.ServeFileFS(w, r, h.root, "index.html")
}
