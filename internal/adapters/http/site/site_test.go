package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given the docs pages registered on a mux", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		Convey("Then /docs redirects to /docs/", func() {
			w := get("/docs")
			So(w.Code, ShouldEqual, http.StatusMovedPermanently)
			So(w.Header().Get("Location"), ShouldEqual, "/docs/")
		})

		Convey("And /docs/ serves the index page", func() {
			w := get("/docs/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(w.Body.String(), ShouldContainSubstring, "/api-docs")
		})

		Convey("And subpages are served", func() {
			w := get("/docs/frameworks.html")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "quick_win")
		})

		Convey("And other paths are left alone", func() {
			So(get("/").Code, ShouldEqual, http.StatusNotFound)
			So(get("/docs/missing.html").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil mux", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}

func TestPage(t *testing.T) {
	Convey("Page reads embedded files", t, func() {
		b, err := Page("style.css")
		So(err, ShouldBeNil)
		So(string(b), ShouldContainSubstring, "font-family")

		_, err = Page("nope.html")
		So(errors.Is(err, ErrMissingPage), ShouldBeTrue)
	})
}
