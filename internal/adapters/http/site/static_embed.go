package site

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

func pages() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// FS returns an http.FileSystem for the embedded pages.
func FS() http.FileSystem {
	return http.FS(pages())
}

// Page returns one embedded file by name, e.g. "index.html".
func Page(name string) ([]byte, error) {
	b, err := fs.ReadFile(pages(), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPage, name)
	}
	return b, nil
}
