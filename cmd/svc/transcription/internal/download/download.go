// Package download resolves a submitted link into a local media file. Known
// video platforms go through yt-dlp; anything else is fetched over plain
// HTTP.
package download

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/libs/golog"
)

// DefaultTimeout bounds one download, whichever transport is used.
const DefaultTimeout = 10 * time.Minute

// platformHosts are sites that require yt-dlp to resolve a media stream.
// Matching is by registrable suffix so subdomains like www. and m. work.
var platformHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"twitch.tv",
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Downloader fetches remote media into scratch files.
type Downloader struct {
	ytdlpPath  string
	timeout    time.Duration
	run        commandRunner
	httpClient *http.Client
}

// New returns a Downloader that invokes the yt-dlp binary at ytdlpPath
// ("yt-dlp" resolves via PATH) and uses httpClient for direct fetches
// (nil for http.DefaultClient).
func New(ytdlpPath string, httpClient *http.Client) *Downloader {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{
		ytdlpPath:  ytdlpPath,
		timeout:    DefaultTimeout,
		run:        defaultRunner,
		httpClient: httpClient,
	}
}

// NewForTests returns a Downloader with subprocess execution replaced by run.
func NewForTests(run func(ctx context.Context, name string, args ...string) ([]byte, error), httpClient *http.Client) *Downloader {
	d := New("yt-dlp", httpClient)
	d.run = run
	return d
}

// Download resolves link into a file under destDir and returns its path.
// Failures are classified as download faults.
func (d *Downloader) Download(ctx context.Context, link, destDir string) (string, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", faults.New(faults.KindDownloadFailed, "unsupported link %q", link)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if isPlatformHost(u.Host) {
		return d.platformDownload(ctx, link, destDir)
	}
	return d.httpDownload(ctx, u, destDir)
}

func isPlatformHost(host string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, ph := range platformHosts {
		if host == ph || strings.HasSuffix(host, "."+ph) {
			return true
		}
	}
	return false
}

// platformDownload shells out to yt-dlp with a fixed output template so the
// resulting file can be located without parsing tool output.
func (d *Downloader) platformDownload(ctx context.Context, link, destDir string) (string, error) {
	out, err := d.run(ctx, d.ytdlpPath,
		"--no-playlist",
		"--no-progress",
		"-f", "bestaudio/best",
		"-o", filepath.Join(destDir, "source.%(ext)s"),
		link)
	if err != nil {
		golog.Warningf("download: yt-dlp failed for %s: %v: %s", link, err, out)
		if ctx.Err() == context.DeadlineExceeded {
			return "", faults.Wrap(ctx.Err(), faults.KindDownloadFailed, "yt-dlp timed out after %s", d.timeout)
		}
		return "", faults.Wrap(err, faults.KindDownloadFailed, "yt-dlp exited abnormally")
	}
	matches, err := filepath.Glob(filepath.Join(destDir, "source.*"))
	if err != nil || len(matches) == 0 {
		return "", faults.New(faults.KindDownloadFailed, "yt-dlp produced no output file")
	}
	return matches[0], nil
}

func (d *Downloader) httpDownload(ctx context.Context, u *url.URL, destDir string) (string, error) {
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return "", faults.Wrap(err, faults.KindDownloadFailed, "building request")
	}
	res, err := d.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", faults.Wrap(err, faults.KindDownloadFailed, "fetching %s", u.Host)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", faults.New(faults.KindDownloadFailed, "fetching %s: status %d", u.Host, res.StatusCode)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "source.bin"
	}
	destPath := filepath.Join(destDir, name)
	f, err := os.Create(destPath)
	if err != nil {
		return "", faults.Wrap(err, faults.KindDownloadFailed, "creating scratch file")
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return "", faults.Wrap(err, faults.KindDownloadFailed, "writing scratch file")
	}
	if n == 0 {
		os.Remove(destPath)
		return "", faults.New(faults.KindDownloadFailed, "fetched an empty body from %s", u.Host)
	}
	return destPath, nil
}
