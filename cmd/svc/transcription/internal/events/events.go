// Package events carries the messages that flow between the API server and
// the pipeline workers: SQS triggers that start a job, and SNS notifications
// published when a job reaches a terminal state.
package events

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/errors"
)

// Trigger is the queue message asking a worker to run the pipeline for
// one job.
type Trigger struct {
	JobID     string `json:"job_id"`
	IsLinkJob bool   `json:"is_link_job"`
}

// ParseTrigger decodes a trigger message body.
func ParseTrigger(body string) (*Trigger, error) {
	var tr Trigger
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return nil, errors.Trace(err)
	}
	if tr.JobID == "" {
		return nil, errors.New("events: trigger missing job_id")
	}
	return &tr, nil
}

// Enqueuer posts pipeline triggers to the work queue.
type Enqueuer struct {
	sqsAPI   sqsiface.SQSAPI
	queueURL string
}

func NewEnqueuer(sqsAPI sqsiface.SQSAPI, queueURL string) *Enqueuer {
	return &Enqueuer{sqsAPI: sqsAPI, queueURL: queueURL}
}

func (e *Enqueuer) EnqueueTrigger(jobID string, isLinkJob bool) error {
	body, err := json.Marshal(&Trigger{JobID: jobID, IsLinkJob: isLinkJob})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = e.sqsAPI.SendMessage(&sqs.SendMessageInput{
		QueueUrl:    aws.String(e.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return errors.Trace(err)
}

// JobCompleted is published when a job reaches COMPLETED or FAILED.
type JobCompleted struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	Status  string `json:"status"`
}

// Publisher notifies interested services of terminal jobs. A Publisher with
// an empty topic ARN publishes nothing.
type Publisher struct {
	snsAPI   snsiface.SNSAPI
	topicARN string
}

func NewPublisher(snsAPI snsiface.SNSAPI, topicARN string) *Publisher {
	return &Publisher{snsAPI: snsAPI, topicARN: topicARN}
}

func (p *Publisher) PublishJobCompleted(job *models.Job) error {
	if p == nil || p.topicARN == "" {
		return nil
	}
	body, err := json.Marshal(&JobCompleted{
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Status:  string(job.Status),
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = p.snsAPI.Publish(&sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	})
	return errors.Trace(err)
}
