// Package pipeline drives a transcription job through its state machine:
// claim the job, materialize the source media, extract audio, transcribe,
// format captions, and persist the terminal result. Each job passes through
// here at most once; adapter level retries happen below this layer.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/captions"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/dal"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/events"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/transcribe"
	"github.com/quickscribe/backend/libs/clock"
	"github.com/quickscribe/backend/libs/conc"
	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/golog"
	"github.com/quickscribe/backend/libs/ptr"
	"github.com/quickscribe/backend/libs/storage"
)

const (
	defaultTitle  = "Untitled transcription"
	maxTitleWords = 8
	maxTitleLen   = 60
)

type extractor interface {
	Extract(ctx context.Context, sourcePath string) (string, error)
}

type downloader interface {
	Download(ctx context.Context, link, destDir string) (string, error)
}

// Pipeline processes transcription jobs end to end.
type Pipeline struct {
	dal         dal.DAL
	store       storage.Store
	extractor   extractor
	downloader  downloader
	transcriber transcribe.Transcriber
	publisher   *events.Publisher
	clk         clock.Clock
	scratchDir  string
}

// New returns a Pipeline. publisher may be nil when no one subscribes to
// completion events. scratchDir defaults to the system temp directory.
func New(
	dl dal.DAL,
	store storage.Store,
	ex extractor,
	dn downloader,
	tr transcribe.Transcriber,
	publisher *events.Publisher,
	clk clock.Clock,
	scratchDir string,
) *Pipeline {
	if clk == nil {
		clk = clock.New()
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Pipeline{
		dal:         dl,
		store:       store,
		extractor:   ex,
		downloader:  dn,
		transcriber: tr,
		publisher:   publisher,
		clk:         clk,
		scratchDir:  scratchDir,
	}
}

// Process runs the state machine for one job and returns the terminal
// status it reached. A job that is already terminal is a no-op. An error is
// returned only when the pipeline could not run at all (unknown job,
// unreachable store); a failed transcription is a FAILED status, not an
// error.
func (p *Pipeline) Process(ctx context.Context, jobID string) (models.JobStatus, error) {
	job, err := p.dal.Job(jobID)
	if err != nil {
		return "", errors.Trace(err)
	}
	if job.Status.Terminal() {
		golog.Infof("pipeline: job %s already %s, nothing to do", job.ID, job.Status)
		return job.Status, nil
	}

	// Claim the job. The conditional update means a concurrent worker
	// can't process the same job twice.
	startedAt := p.clk.Now()
	n, err := p.dal.UpdateJob(job.ID, &dal.JobUpdate{
		Status:       jobStatus(models.JobStatusProcessing),
		ExpectStatus: jobStatus(models.JobStatusPending),
		StartedAt:    &startedAt,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if n == 0 {
		golog.Infof("pipeline: job %s claimed elsewhere, nothing to do", job.ID)
		return job.Status, nil
	}
	job.Status = models.JobStatusProcessing
	job.StartedAt = &startedAt

	res, runErr := p.run(ctx, job)

	completedAt := p.clk.Now()
	var status models.JobStatus
	if runErr != nil {
		status = models.JobStatusFailed
		golog.Errorf("pipeline: job %s failed: %s", job.ID, runErr)
		_, err = p.dal.UpdateJob(job.ID, &dal.JobUpdate{
			Status:       jobStatus(models.JobStatusFailed),
			ExpectStatus: jobStatus(models.JobStatusProcessing),
			ErrorMessage: ptr.String(faults.UserMessage(runErr)),
			CompletedAt:  &completedAt,
		})
	} else {
		status = models.JobStatusCompleted
		_, err = p.dal.UpdateJob(job.ID, &dal.JobUpdate{
			Status:         jobStatus(models.JobStatusCompleted),
			ExpectStatus:   jobStatus(models.JobStatusProcessing),
			Title:          ptr.String(res.title),
			TranscriptText: ptr.String(res.text),
			TranscriptSRT:  ptr.String(res.srt),
			TranscriptVTT:  ptr.String(res.vtt),
			Language:       ptr.String(res.language),
			Duration:       ptr.Float64(res.duration),
			CompletedAt:    &completedAt,
		})
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	job.Status = status
	job.CompletedAt = &completedAt

	// The source blob is only needed for processing. Remove it now that
	// the outcome is persisted; a delete failure is logged, never allowed
	// to change the job's outcome.
	if !job.IsLink && job.SourceFileURL != "" {
		blobID := job.SourceFileURL
		jobID := job.ID
		store := p.store
		conc.Go(func() {
			if err := store.Delete(blobID); err != nil {
				golog.Warningf("pipeline: deleting source blob for job %s: %s", jobID, err)
			}
		})
	}

	if err := p.publisher.PublishJobCompleted(job); err != nil {
		golog.Warningf("pipeline: publishing completion for job %s: %s", job.ID, err)
	}
	return status, nil
}

type runResult struct {
	title    string
	text     string
	srt      string
	vtt      string
	language string
	duration float64
}

// run performs the fallible middle of the pipeline inside a scratch
// directory that is always cleaned up.
func (p *Pipeline) run(ctx context.Context, job *models.Job) (*runResult, error) {
	dir := filepath.Join(p.scratchDir, job.ID+"-"+strconv.FormatInt(p.clk.Now().UnixNano(), 10))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			golog.Warningf("pipeline: removing scratch dir for job %s: %s", job.ID, err)
		}
	}()

	var sourcePath string
	var err error
	if job.IsLink {
		sourcePath, err = p.downloader.Download(ctx, job.SourceFileURL, dir)
	} else {
		sourcePath, err = p.fetchBlob(job, dir)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	audioPath, err := p.extractor.Extract(ctx, sourcePath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// The source media can be large; drop it as soon as the audio exists.
	if err := os.Remove(sourcePath); err != nil {
		golog.Warningf("pipeline: removing scratch source for job %s: %s", job.ID, err)
	}

	tres, err := p.transcriber.Transcribe(ctx, audioPath, job.EngineUsed)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// The adapter guarantees a non-empty transcript; a completed job
	// always has one.
	return &runResult{
		title:    deriveTitle(tres.Text, job.SourceFileName),
		text:     tres.Text,
		srt:      captions.GenerateSRT(tres.Segments),
		vtt:      captions.GenerateVTT(tres.Segments),
		language: tres.Language,
		duration: tres.Duration,
	}, nil
}

// fetchBlob copies the stored source object into the scratch directory.
func (p *Pipeline) fetchBlob(job *models.Job, dir string) (string, error) {
	rc, _, err := p.store.GetReader(job.SourceFileURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer rc.Close()

	name := job.SourceFileName
	if name == "" {
		name = "source.bin"
	}
	destPath := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(destPath)
	if err != nil {
		return "", errors.Trace(err)
	}
	_, err = io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	return destPath, nil
}

// deriveTitle builds a short display title from the leading words of the
// transcript, falling back to the source file name. Title generation can
// never fail a job.
func deriveTitle(text, sourceFileName string) string {
	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.Join(words, " ")
	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen])) + "..."
	}
	if title != "" {
		return title
	}
	if sourceFileName != "" {
		return strings.TrimSuffix(sourceFileName, filepath.Ext(sourceFileName))
	}
	return defaultTitle
}

func jobStatus(s models.JobStatus) *models.JobStatus {
	return &s
}
