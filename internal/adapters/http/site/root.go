// Package site serves the embedded operator pages under /docs/.
package site

import (
	"context"
	"errors"
	"net/http"
)

// ErrMissingPage is returned by Page for a file that is not embedded.
var ErrMissingPage = errors.New("docs page not found")

// Register attaches the docs routes to mux. /docs redirects to /docs/.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.StripPrefix("/docs/", http.FileServer(FS()))
	mux.Handle("GET /docs/", files)
	mux.Handle("GET /docs", http.RedirectHandler("/docs/", http.StatusMovedPermanently))
}
