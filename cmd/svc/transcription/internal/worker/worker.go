// Package worker consumes pipeline triggers from SQS and runs jobs through
// the pipeline.
package worker

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/samuel/go-metrics/metrics"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/events"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/awsutil"
	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/golog"
)

type processor interface {
	Process(ctx context.Context, jobID string) (models.JobStatus, error)
}

// Worker pulls trigger messages off the queue and processes jobs. A message
// is removed from the queue only when the job reaches a terminal state;
// infrastructure failures leave it for redelivery.
type Worker struct {
	sqsWorker *awsutil.SQSWorker
	processor processor

	statJobs      *metrics.Counter
	statSucceeded *metrics.Counter
	statFailed    *metrics.Counter
}

func New(sqsAPI sqsiface.SQSAPI, queueURL string, p processor, metricsRegistry metrics.Registry) *Worker {
	w := &Worker{
		processor:     p,
		statJobs:      metrics.NewCounter(),
		statSucceeded: metrics.NewCounter(),
		statFailed:    metrics.NewCounter(),
	}
	if metricsRegistry != nil {
		metricsRegistry.Add("jobs", w.statJobs)
		metricsRegistry.Add("jobs/succeeded", w.statSucceeded)
		metricsRegistry.Add("jobs/failed", w.statFailed)
	}
	w.sqsWorker = awsutil.NewSQSWorker(sqsAPI, queueURL, w.processMessage)
	return w
}

func (w *Worker) Start() {
	w.sqsWorker.Start()
}

func (w *Worker) Stop(wait time.Duration) {
	w.sqsWorker.Stop(wait)
}

func (w *Worker) Started() bool {
	return w.sqsWorker.Started()
}

func (w *Worker) processMessage(body string) error {
	trigger, err := events.ParseTrigger(body)
	if err != nil {
		// A malformed trigger will never parse; drop it rather than
		// redeliver forever.
		golog.Errorf("worker: dropping malformed trigger %q: %s", body, err)
		return nil
	}

	w.statJobs.Inc(1)
	status, err := w.processor.Process(context.Background(), trigger.JobID)
	if err != nil {
		w.statFailed.Inc(1)
		return errors.Trace(err)
	}
	switch status {
	case models.JobStatusFailed:
		w.statFailed.Inc(1)
	case models.JobStatusCompleted:
		w.statSucceeded.Inc(1)
	}
	golog.Infof("worker: job %s finished %s", trigger.JobID, status)
	return nil
}
