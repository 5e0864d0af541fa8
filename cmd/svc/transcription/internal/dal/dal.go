// Package dal is the data access layer for transcription jobs.
package dal

import (
	"database/sql"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/dbutil"
	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/golog"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("dal: job not found")

// DAL defines the persistence operations the service needs.
type DAL interface {
	CreateJob(job *models.Job) error
	Job(id string) (*models.Job, error)
	JobForOwner(id, ownerID string) (*models.Job, error)
	JobsForOwner(ownerID string) ([]*models.Job, error)
	UpdateJob(id string, update *JobUpdate) (int64, error)
	DeleteJob(id, ownerID string) (bool, error)
	Transact(trans func(dl DAL) error) error
}

// JobUpdate describes a partial update of a job row. Nil fields are left
// untouched. ExpectStatus, when set, makes the update conditional on the
// job's current status so state machine transitions are atomic.
type JobUpdate struct {
	Status         *models.JobStatus
	ExpectStatus   *models.JobStatus
	Title          *string
	TranscriptText *string
	TranscriptSRT  *string
	TranscriptVTT  *string
	Language       *string
	Duration       *float64
	ErrorMessage   *string
	EngineUsed     *models.Mode
	SourceFileURL  *string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

type dal struct {
	db  queryer
	sdb *sql.DB
}

// New returns a DAL backed by db.
func New(db *sql.DB) DAL {
	return &dal{db: db, sdb: db}
}

// Transact runs trans inside a transaction, rolling back on error or panic.
// A nested call joins the enclosing transaction.
func (d *dal) Transact(trans func(dl DAL) error) (err error) {
	if d.sdb == nil {
		return errors.Trace(trans(d))
	}
	tx, err := d.sdb.Begin()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			errString := fmt.Sprintf("encountered panic during transaction execution: %v\n%s", r, debug.Stack())
			golog.Criticalf(errString)
			err = errors.New(errString)
		}
	}()
	if err := trans(&dal{db: tx}); err != nil {
		tx.Rollback()
		return errors.Trace(err)
	}
	return errors.Trace(tx.Commit())
}

const jobColumns = `id, owner_id, status, is_link, source_file_url, source_file_name, source_file_size,
	source_file_hash, engine_used, title, transcript_text, transcript_srt, transcript_vtt,
	language, duration, error_message, created_at, started_at, completed_at`

func (d *dal) CreateJob(job *models.Job) error {
	if job.ID == "" {
		job.ID = models.NewJobID()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := d.db.Exec(`
		INSERT INTO transcription_job (id, owner_id, status, is_link, source_file_url,
			source_file_name, source_file_size, source_file_hash, engine_used, created_at)
		VALUES (`+dbutil.MySQLArgs(10)+`)`,
		job.ID, job.OwnerID, string(job.Status), job.IsLink, job.SourceFileURL,
		job.SourceFileName, job.SourceFileSize, job.SourceFileHash, string(job.EngineUsed), job.CreatedAt)
	return errors.Trace(err)
}

func (d *dal) Job(id string) (*models.Job, error) {
	row := d.db.QueryRow(`SELECT `+jobColumns+` FROM transcription_job WHERE id = ?`, id)
	return scanJob(row)
}

func (d *dal) JobForOwner(id, ownerID string) (*models.Job, error) {
	row := d.db.QueryRow(`SELECT `+jobColumns+` FROM transcription_job WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanJob(row)
}

func (d *dal) JobsForOwner(ownerID string) ([]*models.Job, error) {
	rows, err := d.db.Query(`SELECT `+jobColumns+` FROM transcription_job WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Trace(err)
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Trace(rows.Err())
}

// UpdateJob applies a partial update and returns the number of rows
// affected. An ExpectStatus mismatch shows up as zero rows affected.
func (d *dal) UpdateJob(id string, update *JobUpdate) (int64, error) {
	args := applyJobUpdate(update)
	if args.IsEmpty() {
		return 0, nil
	}

	query := `UPDATE transcription_job SET ` + args.ColumnsForUpdate() + ` WHERE id = ?`
	vals := append(args.Values(), id)
	if update.ExpectStatus != nil {
		query += ` AND status = ?`
		vals = append(vals, string(*update.ExpectStatus))
	}
	res, err := d.db.Exec(query, vals...)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n, err := res.RowsAffected()
	return n, errors.Trace(err)
}

func (d *dal) DeleteJob(id, ownerID string) (bool, error) {
	res, err := d.db.Exec(`DELETE FROM transcription_job WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, errors.Trace(err)
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Trace(err)
}

// applyJobUpdate maps the set fields of update onto SQL assignments.
func applyJobUpdate(update *JobUpdate) dbutil.VarArgs {
	args := dbutil.MySQLVarArgs()
	if update == nil {
		return args
	}
	if update.Status != nil {
		args.Append("status", string(*update.Status))
	}
	if update.Title != nil {
		args.Append("title", *update.Title)
	}
	if update.TranscriptText != nil {
		args.Append("transcript_text", *update.TranscriptText)
	}
	if update.TranscriptSRT != nil {
		args.Append("transcript_srt", *update.TranscriptSRT)
	}
	if update.TranscriptVTT != nil {
		args.Append("transcript_vtt", *update.TranscriptVTT)
	}
	if update.Language != nil {
		args.Append("language", *update.Language)
	}
	if update.Duration != nil {
		args.Append("duration", *update.Duration)
	}
	if update.ErrorMessage != nil {
		args.Append("error_message", *update.ErrorMessage)
	}
	if update.EngineUsed != nil {
		args.Append("engine_used", string(*update.EngineUsed))
	}
	if update.SourceFileURL != nil {
		args.Append("source_file_url", *update.SourceFileURL)
	}
	if update.StartedAt != nil {
		args.Append("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		args.Append("completed_at", *update.CompletedAt)
	}
	return args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*models.Job, error) {
	var job models.Job
	var status, engine string
	var title, text, srt, vtt, language, errMsg sql.NullString
	var duration sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.OwnerID, &status, &job.IsLink, &job.SourceFileURL,
		&job.SourceFileName, &job.SourceFileSize, &job.SourceFileHash, &engine,
		&title, &text, &srt, &vtt, &language, &duration, &errMsg,
		&job.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Trace(ErrJobNotFound)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	job.Status = models.JobStatus(status)
	job.EngineUsed = models.Mode(engine)
	job.Title = title.String
	job.TranscriptText = text.String
	job.TranscriptSRT = srt.String
	job.TranscriptVTT = vtt.String
	job.Language = language.String
	job.Duration = duration.Float64
	job.ErrorMessage = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
