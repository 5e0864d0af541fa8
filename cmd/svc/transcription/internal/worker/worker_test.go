package worker

import (
	"context"
	"testing"

	"github.com/samuel/go-metrics/metrics"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/test"
)

type fakeProcessor struct {
	jobIDs []string
	status models.JobStatus
	err    error
}

func (p *fakeProcessor) Process(ctx context.Context, jobID string) (models.JobStatus, error) {
	p.jobIDs = append(p.jobIDs, jobID)
	return p.status, p.err
}

func TestProcessMessageSuccess(t *testing.T) {
	p := &fakeProcessor{status: models.JobStatusCompleted}
	w := New(nil, "", p, metrics.NewRegistry())

	test.OK(t, w.processMessage(`{"job_id": "job1", "is_link_job": false}`))
	test.Equals(t, []string{"job1"}, p.jobIDs)
	test.Equals(t, uint64(1), w.statJobs.Count())
	test.Equals(t, uint64(1), w.statSucceeded.Count())
	test.Equals(t, uint64(0), w.statFailed.Count())
}

func TestProcessMessageFailedJob(t *testing.T) {
	p := &fakeProcessor{status: models.JobStatusFailed}
	w := New(nil, "", p, metrics.NewRegistry())

	// A job that failed still completes message processing; the terminal
	// state is recorded and the message must not be redelivered.
	test.OK(t, w.processMessage(`{"job_id": "job2", "is_link_job": true}`))
	test.Equals(t, uint64(1), w.statFailed.Count())
	test.Equals(t, uint64(0), w.statSucceeded.Count())
}

func TestProcessMessageInfraError(t *testing.T) {
	p := &fakeProcessor{err: faults.New(faults.KindUnknown, "db unavailable")}
	w := New(nil, "", p, metrics.NewRegistry())

	err := w.processMessage(`{"job_id": "job3"}`)
	test.AssertNotNil(t, err)
	test.Equals(t, uint64(1), w.statFailed.Count())
}

func TestProcessMessageMalformedTrigger(t *testing.T) {
	p := &fakeProcessor{}
	w := New(nil, "", p, metrics.NewRegistry())

	// Malformed triggers are dropped, not retried.
	test.OK(t, w.processMessage(`not json`))
	test.OK(t, w.processMessage(`{}`))
	test.Equals(t, 0, len(p.jobIDs))
	test.Equals(t, uint64(0), w.statJobs.Count())
}
