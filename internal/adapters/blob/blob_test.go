package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFileStore(t *testing.T) {
	Convey("Given a file store in a temp dir", t, func() {
		root := t.TempDir()
		s, err := NewFileStore(root, WithMaxBytes(16))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When an object is put", func() {
			loc, err := s.Put(ctx, "acme/2026/01/02/f1.webm", strings.NewReader("opus-bytes"))

			Convey("Then it can be read back from the returned location", func() {
				So(err, ShouldBeNil)
				So(loc, ShouldEqual, "acme/2026/01/02/f1.webm")
				rc, err := s.Open(ctx, loc)
				So(err, ShouldBeNil)
				defer rc.Close()
				b, _ := io.ReadAll(rc)
				So(string(b), ShouldEqual, "opus-bytes")
			})

			Convey("Then deleting it removes the object and is idempotent", func() {
				So(s.Delete(ctx, loc), ShouldBeNil)
				_, err := s.Open(ctx, loc)
				So(err, ShouldWrap, ErrNotFound)
				So(s.Delete(ctx, loc), ShouldBeNil)
				So(s.Delete(ctx, "../escape"), ShouldWrap, ErrInvalidKey)
			})

			Convey("Then no temp files are left behind", func() {
				entries, _ := os.ReadDir(filepath.Join(root, "acme", "2026", "01", "02"))
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When an object exceeds the limit", func() {
			_, err := s.Put(ctx, "acme/big.webm", strings.NewReader(strings.Repeat("x", 17)))
			So(err, ShouldWrap, ErrTooLarge)
			_, err = os.Stat(filepath.Join(root, "acme", "big.webm"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("When an object is empty", func() {
			_, err := s.Put(ctx, "acme/empty.webm", strings.NewReader(""))
			So(err, ShouldEqual, ErrEmptyObject)
		})

		Convey("When a key escapes the root", func() {
			_, err := s.Put(ctx, "../outside.webm", strings.NewReader("x"))
			So(err, ShouldWrap, ErrInvalidKey)
			_, err = s.Open(ctx, "/etc/passwd")
			So(err, ShouldWrap, ErrInvalidKey)
		})

		Convey("When opening a missing object", func() {
			_, err := s.Open(ctx, "acme/missing.webm")
			So(err, ShouldWrap, ErrNotFound)
		})
	})
}
