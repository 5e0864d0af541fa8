// Package models defines the persisted and wire types for the transcription service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a transcription job. Transitions are
// strictly forward: PENDING -> PROCESSING -> {COMPLETED, FAILED}. External
// pollers key off these exact values so they must remain stable.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal returns true if the status has no outgoing transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid returns true for a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Mode selects the transcription engine tradeoff at job creation.
type Mode string

const (
	// ModeFast favors turnaround time and cost.
	ModeFast Mode = "fast"
	// ModeAccurate favors transcript quality.
	ModeAccurate Mode = "accurate"
)

// Valid returns true for a known mode value.
func (m Mode) Valid() bool {
	return m == ModeFast || m == ModeAccurate
}

// Job is one user submitted transcription request.
type Job struct {
	ID             string
	OwnerID        string
	Status         JobStatus
	IsLink         bool
	SourceFileURL  string
	SourceFileName string
	SourceFileSize int64
	SourceFileHash string
	EngineUsed     Mode
	Title          string
	TranscriptText string
	TranscriptSRT  string
	TranscriptVTT  string
	Language       string
	Duration       float64
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewJobID generates an opaque unique job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// Segment is a timestamped span of transcript text. Segments are produced
// fresh for each transcription call and are never persisted directly; only
// the derived SRT/VTT/plain text survive.
type Segment struct {
	ID      int
	Start   float64 // seconds
	End     float64 // seconds, >= Start
	Text    string
	Speaker string // optional diarization label
}
