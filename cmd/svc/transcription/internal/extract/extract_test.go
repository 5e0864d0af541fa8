package extract

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/libs/test"
)

func writeSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	test.OK(t, ioutil.WriteFile(src, []byte("not really video"), 0600))
	return src
}

func TestExtractSuccess(t *testing.T) {
	src := writeSource(t)
	var gotArgs []string
	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		// Simulate ffmpeg writing the output file named by the last arg.
		return nil, ioutil.WriteFile(args[len(args)-1], []byte("opus"), 0600)
	})

	out, err := e.Extract(context.Background(), src)
	test.OK(t, err)
	test.Equals(t, filepath.Join(filepath.Dir(src), "clip.audio.opus"), out)
	test.Equals(t, []string{
		"-i", src, "-y", "-vn",
		"-acodec", "libopus", "-b:a", "64k", "-ar", "16000", "-ac", "1",
		out,
	}, gotArgs)
}

func TestExtractCommandFailure(t *testing.T) {
	src := writeSource(t)
	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("clip.mp4: Invalid data found when processing input"), os.ErrInvalid
	})

	_, err := e.Extract(context.Background(), src)
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindExtractionFailed, faults.KindOf(err))
}

func TestExtractTimeout(t *testing.T) {
	src := writeSource(t)
	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithTimeout(10*time.Millisecond))

	_, err := e.Extract(context.Background(), src)
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindExtractionFailed, faults.KindOf(err))
}

func TestExtractEmptyOutput(t *testing.T) {
	src := writeSource(t)
	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, ioutil.WriteFile(args[len(args)-1], nil, 0600)
	})

	_, err := e.Extract(context.Background(), src)
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindExtractionFailed, faults.KindOf(err))

	// The empty artifact must not be left behind.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(src), "clip.audio.opus"))
	test.Assert(t, os.IsNotExist(statErr), "expected empty output to be removed")
}

func TestExtractOpusSource(t *testing.T) {
	// An already-opus source must still get a distinct output path so
	// ffmpeg never reads and writes the same file.
	dir := t.TempDir()
	src := filepath.Join(dir, "voice-memo.opus")
	test.OK(t, ioutil.WriteFile(src, []byte("opus"), 0600))

	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		test.Assert(t, args[len(args)-1] != src, "output path collides with source")
		return nil, ioutil.WriteFile(args[len(args)-1], []byte("opus"), 0600)
	})

	out, err := e.Extract(context.Background(), src)
	test.OK(t, err)
	test.Equals(t, filepath.Join(dir, "voice-memo.audio.opus"), out)
}

func TestExtractNoOutputFile(t *testing.T) {
	src := writeSource(t)
	e := NewForTests(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	})

	_, err := e.Extract(context.Background(), src)
	test.AssertNotNil(t, err)
	test.Equals(t, faults.KindExtractionFailed, faults.KindOf(err))
}
