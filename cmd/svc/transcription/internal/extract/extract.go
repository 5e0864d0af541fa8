// Package extract converts arbitrary source media into compressed mono audio
// suitable for transcription upload, by shelling out to ffmpeg.
package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/libs/golog"
)

// DefaultTimeout bounds a single ffmpeg invocation. Extraction of even long
// recordings is I/O bound and completes well inside this.
const DefaultTimeout = 5 * time.Minute

// commandRunner executes an external command and returns its combined
// output. Injected so tests never spawn real processes.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor produces opus audio files from source media.
type Extractor struct {
	ffmpegPath string
	timeout    time.Duration
	run        commandRunner
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout overrides the per invocation deadline. Non-positive values
// fall back to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New returns an Extractor that invokes the ffmpeg binary at ffmpegPath
// ("ffmpeg" resolves via PATH).
func New(ffmpegPath string, opts ...Option) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	e := &Extractor{
		ffmpegPath: ffmpegPath,
		timeout:    DefaultTimeout,
		run:        defaultRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewForTests returns an Extractor whose subprocess execution is replaced
// by run.
func NewForTests(run func(ctx context.Context, name string, args ...string) ([]byte, error), opts ...Option) *Extractor {
	e := New("ffmpeg", opts...)
	e.run = run
	return e
}

// Extract transcodes the media at sourcePath into a 64kbps 16kHz mono opus
// file next to it and returns the audio path. Failures are classified as
// extraction faults; ffmpeg's output goes to the log, never to the caller.
func (e *Extractor) Extract(ctx context.Context, sourcePath string) (string, error) {
	outPath := audioPathFor(sourcePath)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"-i", sourcePath,
		"-y",
		"-vn",
		"-acodec", "libopus",
		"-b:a", "64k",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	}
	out, err := e.run(ctx, e.ffmpegPath, args...)
	if err != nil {
		golog.Warningf("extract: ffmpeg failed for %s: %v: %s", sourcePath, err, truncate(out, 2048))
		if ctxErr := ctx.Err(); ctxErr == context.DeadlineExceeded {
			return "", faults.Wrap(ctxErr, faults.KindExtractionFailed, "ffmpeg timed out after %s", e.timeout)
		}
		return "", faults.Wrap(err, faults.KindExtractionFailed, "ffmpeg exited abnormally")
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", faults.Wrap(err, faults.KindExtractionFailed, "ffmpeg produced no output file")
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return "", faults.New(faults.KindExtractionFailed, "ffmpeg produced an empty output file")
	}
	return outPath, nil
}

// audioPathFor derives the output path from the source path. The .audio
// infix keeps the output distinct even when the source is itself an opus
// file.
func audioPathFor(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return sourcePath[:len(sourcePath)-len(ext)] + ".audio.opus"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes truncated)", b[:n], len(b)-n)
}
