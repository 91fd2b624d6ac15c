package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler for the console assets.
//
// When dir names an existing directory, assets are read from it on every
// request. Otherwise the embedded copy is used. Panics if the embedded
// assets are missing, which is a build error.
func Handler(dir string) http.Handler {
	fileSystem := assets(dir)
	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Assets are not content-hashed; always revalidate.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean("/" + r.URL.Path)
		if upath == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}

		f, err := fileSystem.Open(upath[1:])
		if err != nil {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close()
		fileServer.ServeHTTP(w, r)
	})
}

func assets(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}
	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	return http.FS(webFS)
}
