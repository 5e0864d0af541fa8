package download

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/libs/test"
)

func TestIsPlatformHost(t *testing.T) {
	cases := map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"youtu.be":          true,
		"vimeo.com":         true,
		"www.twitch.tv":     true,
		"YOUTUBE.COM":       true,
		"youtube.com:443":   true,
		"example.com":       false,
		"notyoutube.com":    false,
		"youtube.com.evil":  false,
		"cdn.example.org":   false,
	}
	for host, want := range cases {
		test.Equals(t, want, isPlatformHost(host))
	}
}

func TestPlatformDownload(t *testing.T) {
	dir := t.TempDir()
	var gotArgs []string
	d := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, ioutil.WriteFile(filepath.Join(dir, "source.webm"), []byte("media"), 0600)
	}, nil)

	got, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc123", dir)
	test.OK(t, err)
	test.Equals(t, filepath.Join(dir, "source.webm"), got)
	test.Equals(t, "https://www.youtube.com/watch?v=abc123", gotArgs[len(gotArgs)-1])
}

func TestPlatformDownloadFailure(t *testing.T) {
	dir := t.TempDir()
	d := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("ERROR: Video unavailable"), context.Canceled
	}, nil)

	_, err := d.Download(context.Background(), "https://youtu.be/abc123", dir)
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindDownloadFailed, faults.KindOf(err))
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New("", srv.Client())
	got, err := d.Download(context.Background(), srv.URL+"/media/talk.mp3", dir)
	test.OK(t, err)
	test.Equals(t, filepath.Join(dir, "talk.mp3"), got)

	b, err := ioutil.ReadFile(got)
	test.OK(t, err)
	test.Equals(t, "media bytes", string(b))
}

func TestHTTPDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d := New("", srv.Client())
	_, err := d.Download(context.Background(), srv.URL+"/media/talk.mp3", t.TempDir())
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindDownloadFailed, faults.KindOf(err))
}

func TestHTTPDownloadEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	d := New("", srv.Client())
	_, err := d.Download(context.Background(), srv.URL+"/media/talk.mp3", t.TempDir())
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindDownloadFailed, faults.KindOf(err))
}

func TestUnsupportedLink(t *testing.T) {
	d := New("", nil)
	for _, link := range []string{"", "ftp://example.com/a.mp3", "not a url", "/relative/path"} {
		_, err := d.Download(context.Background(), link, t.TempDir())
		test.AssertNotNil(t, err)
		test.Equals(t, faults.KindDownloadFailed, faults.KindOf(err))
	}
}
