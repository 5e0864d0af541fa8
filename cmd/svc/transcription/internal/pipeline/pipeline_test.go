package pipeline

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/dal"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/transcribe"
	"github.com/quickscribe/backend/libs/clock"
	"github.com/quickscribe/backend/libs/conc"
	"github.com/quickscribe/backend/libs/storage"
	"github.com/quickscribe/backend/libs/test"
)

func init() {
	conc.Testing = true
}

// memDAL is an in-memory DAL good enough for exercising the state machine.
type memDAL struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemDAL(jobs ...*models.Job) *memDAL {
	d := &memDAL{jobs: make(map[string]*models.Job)}
	for _, j := range jobs {
		cp := *j
		d.jobs[j.ID] = &cp
	}
	return d
}

func (d *memDAL) CreateJob(job *models.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *job
	d.jobs[job.ID] = &cp
	return nil
}

func (d *memDAL) Job(id string) (*models.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok {
		return nil, dal.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (d *memDAL) JobForOwner(id, ownerID string) (*models.Job, error) {
	job, err := d.Job(id)
	if err != nil || job.OwnerID != ownerID {
		return nil, dal.ErrJobNotFound
	}
	return job, nil
}

func (d *memDAL) JobsForOwner(ownerID string) ([]*models.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var jobs []*models.Job
	for _, j := range d.jobs {
		if j.OwnerID == ownerID {
			cp := *j
			jobs = append(jobs, &cp)
		}
	}
	return jobs, nil
}

func (d *memDAL) UpdateJob(id string, update *dal.JobUpdate) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok {
		return 0, nil
	}
	if update.ExpectStatus != nil && job.Status != *update.ExpectStatus {
		return 0, nil
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Title != nil {
		job.Title = *update.Title
	}
	if update.TranscriptText != nil {
		job.TranscriptText = *update.TranscriptText
	}
	if update.TranscriptSRT != nil {
		job.TranscriptSRT = *update.TranscriptSRT
	}
	if update.TranscriptVTT != nil {
		job.TranscriptVTT = *update.TranscriptVTT
	}
	if update.Language != nil {
		job.Language = *update.Language
	}
	if update.Duration != nil {
		job.Duration = *update.Duration
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.EngineUsed != nil {
		job.EngineUsed = *update.EngineUsed
	}
	if update.StartedAt != nil {
		t := *update.StartedAt
		job.StartedAt = &t
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		job.CompletedAt = &t
	}
	return 1, nil
}

func (d *memDAL) DeleteJob(id, ownerID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return false, nil
	}
	delete(d.jobs, id)
	return true, nil
}

func (d *memDAL) Transact(trans func(dl dal.DAL) error) error {
	return trans(d)
}

type fakeExtractor struct {
	err   error
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, sourcePath string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return sourcePath + ".opus", nil
}

type fakeDownloader struct {
	path  string
	err   error
	calls int
}

func (dn *fakeDownloader) Download(ctx context.Context, link, destDir string) (string, error) {
	dn.calls++
	if dn.err != nil {
		return "", dn.err
	}
	return dn.path, nil
}

type fakeTranscriber struct {
	res *transcribe.Result
	err error
}

func (tr *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, mode models.Mode) (*transcribe.Result, error) {
	if tr.err != nil {
		return nil, tr.err
	}
	return tr.res, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	test.OK(t, ioutil.WriteFile(p, []byte(content), 0600))
	return p
}

func pendingFileJob() *models.Job {
	return &models.Job{
		ID:             "job1",
		OwnerID:        "acct1",
		Status:         models.JobStatusPending,
		SourceFileURL:  "uploads/job1",
		SourceFileName: "standup.mp4",
		EngineUsed:     models.ModeFast,
		CreatedAt:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestPipeline(t *testing.T, dl dal.DAL, store storage.DeterministicStore, ex extractor, dn downloader, tr transcribe.Transcriber) *Pipeline {
	t.Helper()
	clk := clock.NewManaged(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return New(dl, store, ex, dn, tr, nil, clk, t.TempDir())
}

func TestProcessFileJobSuccess(t *testing.T) {
	dl := newMemDAL(pendingFileJob())
	store := storage.NewTestStore(map[string]*storage.TestObject{
		"uploads/job1": {Data: []byte("fake mp4")},
	})
	tr := &fakeTranscriber{res: &transcribe.Result{
		Text:     "test",
		Language: "en",
		Duration: 10,
		Segments: []*models.Segment{{ID: 0, Start: 0, End: 10, Text: "test"}},
	}}
	p := newTestPipeline(t, dl, store, &fakeExtractor{}, &fakeDownloader{}, tr)

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusCompleted, status)

	job, err := dl.Job("job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusCompleted, job.Status)
	test.Equals(t, "test", job.TranscriptText)
	test.Equals(t, "1\n00:00:00,000 --> 00:00:10,000\ntest\n", job.TranscriptSRT)
	test.Equals(t, "WEBVTT\n\n00:00:00.000 --> 00:00:10.000\ntest\n", job.TranscriptVTT)
	test.Equals(t, "en", job.Language)
	test.Equals(t, 10.0, job.Duration)
	test.Equals(t, "", job.ErrorMessage)
	test.AssertNotNil(t, job.StartedAt)
	test.AssertNotNil(t, job.CompletedAt)

	// Source blob removed exactly once.
	test.Equals(t, 1, storage.DeleteCount(store, "uploads/job1"))
}

func TestProcessExtractionFailure(t *testing.T) {
	dl := newMemDAL(pendingFileJob())
	store := storage.NewTestStore(map[string]*storage.TestObject{
		"uploads/job1": {Data: []byte("fake mp4")},
	})
	ex := &fakeExtractor{err: faults.New(faults.KindExtractionFailed, "ffmpeg exited abnormally")}
	p := newTestPipeline(t, dl, store, ex, &fakeDownloader{}, &fakeTranscriber{})

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusFailed, status)

	job, err := dl.Job("job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusFailed, job.Status)
	test.Equals(t, faults.UserMessage(ex.err), job.ErrorMessage)
	test.Equals(t, "", job.TranscriptText)
	test.Equals(t, "", job.TranscriptSRT)
	test.AssertNotNil(t, job.CompletedAt)

	// Blob deletion is attempted regardless of outcome.
	test.Equals(t, 1, storage.DeleteCount(store, "uploads/job1"))
}

func TestProcessTerminalJobIsNoop(t *testing.T) {
	job := pendingFileJob()
	job.Status = models.JobStatusCompleted
	job.TranscriptText = "done"
	dl := newMemDAL(job)
	store := storage.NewTestStore(nil)
	ex := &fakeExtractor{}
	p := newTestPipeline(t, dl, store, ex, &fakeDownloader{}, &fakeTranscriber{})

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusCompleted, status)
	test.Equals(t, 0, ex.calls)
	test.Equals(t, 0, storage.DeleteCount(store, "uploads/job1"))

	got, err := dl.Job("job1")
	test.OK(t, err)
	test.Equals(t, "done", got.TranscriptText)
}

func TestProcessUnknownJob(t *testing.T) {
	p := newTestPipeline(t, newMemDAL(), storage.NewTestStore(nil), &fakeExtractor{}, &fakeDownloader{}, &fakeTranscriber{})
	_, err := p.Process(context.Background(), "missing")
	test.AssertNotNil(t, err)
}

func TestProcessLinkJob(t *testing.T) {
	job := pendingFileJob()
	job.IsLink = true
	job.SourceFileURL = "https://www.youtube.com/watch?v=abc"
	job.SourceFileName = ""
	dl := newMemDAL(job)
	store := storage.NewTestStore(nil)

	scratch := t.TempDir()
	srcPath := writeFile(t, scratch, "source.webm", "media")
	dn := &fakeDownloader{path: srcPath}
	tr := &fakeTranscriber{res: &transcribe.Result{
		Text:     "hello from the video",
		Language: "en",
		Duration: 3,
		Segments: []*models.Segment{{Start: 0, End: 3, Text: "hello from the video"}},
	}}
	clk := clock.NewManaged(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	p := New(dl, store, &fakeExtractor{}, dn, tr, nil, clk, t.TempDir())

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusCompleted, status)
	test.Equals(t, 1, dn.calls)

	got, err := dl.Job("job1")
	test.OK(t, err)
	test.Equals(t, "hello from the video", got.Title)
	// Link jobs have no stored blob to delete.
	test.Equals(t, 0, storage.DeleteCount(store, job.SourceFileURL))
}

func TestProcessTranscriptionFailure(t *testing.T) {
	dl := newMemDAL(pendingFileJob())
	store := storage.NewTestStore(map[string]*storage.TestObject{
		"uploads/job1": {Data: []byte("fake mp4")},
	})
	tr := &fakeTranscriber{err: faults.New(faults.KindServiceUnavailable, "502 from provider")}
	p := newTestPipeline(t, dl, store, &fakeExtractor{}, &fakeDownloader{}, tr)

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusFailed, status)

	job, err := dl.Job("job1")
	test.OK(t, err)
	test.Assert(t, job.ErrorMessage != "", "expected error message on failed job")
	test.Equals(t, faults.UserMessage(tr.err), job.ErrorMessage)
}

func TestProcessEmptyTranscriptFails(t *testing.T) {
	// A provider response the adapter rejected as shapeless must end the
	// job FAILED: a terminal job has exactly one of transcript text or
	// error message, never neither.
	dl := newMemDAL(pendingFileJob())
	store := storage.NewTestStore(map[string]*storage.TestObject{
		"uploads/job1": {Data: []byte("fake mp4")},
	})
	tr := &fakeTranscriber{err: faults.New(faults.KindUnexpectedResponse, "provider response missing text")}
	p := newTestPipeline(t, dl, store, &fakeExtractor{}, &fakeDownloader{}, tr)

	status, err := p.Process(context.Background(), "job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusFailed, status)

	job, err := dl.Job("job1")
	test.OK(t, err)
	test.Equals(t, models.JobStatusFailed, job.Status)
	test.Equals(t, "", job.TranscriptText)
	test.Assert(t, job.ErrorMessage != "", "expected error message on failed job")
}

func TestDeriveTitle(t *testing.T) {
	test.Equals(t, "Welcome everyone to the weekly standup let's get", deriveTitle("Welcome everyone to the weekly standup let's get started with updates", "standup.mp4"))
	test.Equals(t, "standup", deriveTitle("", "standup.mp4"))
	test.Equals(t, "Untitled transcription", deriveTitle("", ""))
	test.Equals(t, "hi", deriveTitle("hi", ""))

	long := deriveTitle("supercalifragilisticexpialidocious supercalifragilisticexpialidocious supercalifragilisticexpialidocious", "")
	test.Assert(t, len([]rune(long)) <= maxTitleLen+3, "title too long: %q", long)
}
