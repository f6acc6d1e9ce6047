package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler that serves the monitor page.
//
// When dir is non-empty and the directory exists, assets are served from the
// filesystem so the page can be edited without a rebuild. Otherwise the
// embedded copy is used. Requests for files that do not exist get
// index.html.
//
// prefix is stripped from request paths before lookup, e.g. "/monitor".
// Panics if the embedded web assets cannot be loaded (build error).
func Handler(dir, prefix string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	if fileSystem == nil {
		webFS, err := fs.Sub(content, "web")
		if err != nil {
			panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
		}
		fileSystem = http.FS(webFS)
	}

	fileServer := http.FileServer(fileSystem)
	prefix = strings.TrimSuffix(prefix, "/")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean("/" + strings.TrimPrefix(r.URL.Path, prefix))

		r2 := r.Clone(r.Context())
		r2.URL.Path = upath

		if upath == "/" {
			fileServer.ServeHTTP(w, r2)
			return
		}

		f, err := fileSystem.Open(upath[1:])
		if err != nil {
			r2.URL.Path = "/"
			fileServer.ServeHTTP(w, r2)
			return
		}
		f.Close()

		fileServer.ServeHTTP(w, r2)
	})
}
