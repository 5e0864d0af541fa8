package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/captions"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/dal"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/golog"
	"github.com/quickscribe/backend/libs/httputil"
)

type jobResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	IsLink         bool       `json:"is_link"`
	SourceFileName string     `json:"source_file_name,omitempty"`
	EngineUsed     string     `json:"engine_used"`
	Title          string     `json:"title,omitempty"`
	TranscriptText string     `json:"transcript_text,omitempty"`
	Language       string     `json:"language,omitempty"`
	Duration       float64    `json:"duration,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func transformJob(job *models.Job) *jobResponse {
	return &jobResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		IsLink:         job.IsLink,
		SourceFileName: job.SourceFileName,
		EngineUsed:     string(job.EngineUsed),
		Title:          job.Title,
		TranscriptText: job.TranscriptText,
		Language:       job.Language,
		Duration:       job.Duration,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}

func parseMode(raw string) (models.Mode, bool) {
	if raw == "" {
		return models.ModeFast, true
	}
	mode := models.Mode(raw)
	return mode, mode.Valid()
}

// jobsHandler serves job submission and the owner's job list.
type jobsHandler struct {
	cfg *Config
}

func (h *jobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case "GET":
		h.list(w, accountID)
	case "POST":
		h.create(w, r, accountID)
	}
}

func (h *jobsHandler) list(w http.ResponseWriter, accountID string) {
	jobs, err := h.cfg.DAL.JobsForOwner(accountID)
	if err != nil {
		internalError(w, err)
		return
	}
	res := make([]*jobResponse, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, transformJob(job))
	}
	httputil.JSONResponse(w, http.StatusOK, res)
}

func (h *jobsHandler) create(w http.ResponseWriter, r *http.Request, accountID string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		apiError(w, http.StatusBadRequest, "A media file is required")
		return
	}
	defer file.Close()

	mode, ok := parseMode(r.FormValue("mode"))
	if !ok {
		apiError(w, http.StatusBadRequest, "Unknown mode")
		return
	}

	// Hash while uploading so duplicate submissions are identifiable.
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		internalError(w, err)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		internalError(w, err)
		return
	}

	jobID := models.NewJobID()
	blobID, err := h.cfg.Store.PutReader("uploads/"+jobID, file, header.Size, header.Header.Get("Content-Type"), nil)
	if err != nil {
		internalError(w, err)
		return
	}

	job := &models.Job{
		ID:             jobID,
		OwnerID:        accountID,
		Status:         models.JobStatusPending,
		SourceFileURL:  blobID,
		SourceFileName: header.Filename,
		SourceFileSize: header.Size,
		SourceFileHash: hex.EncodeToString(hasher.Sum(nil)),
		EngineUsed:     mode,
	}
	if err := h.cfg.DAL.CreateJob(job); err != nil {
		internalError(w, err)
		return
	}
	if err := h.cfg.Enqueuer.EnqueueTrigger(job.ID, false); err != nil {
		internalError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusCreated, transformJob(job))
}

// linkHandler accepts a media link instead of an upload.
type linkHandler struct {
	cfg *Config
}

type linkRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

func (h *linkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		apiError(w, http.StatusBadRequest, "A valid http(s) link is required")
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		apiError(w, http.StatusBadRequest, "Unknown mode")
		return
	}

	job := &models.Job{
		ID:             models.NewJobID(),
		OwnerID:        accountID,
		Status:         models.JobStatusPending,
		IsLink:         true,
		SourceFileURL:  req.URL,
		SourceFileName: u.Host,
		EngineUsed:     mode,
	}
	if err := h.cfg.DAL.CreateJob(job); err != nil {
		internalError(w, err)
		return
	}
	if err := h.cfg.Enqueuer.EnqueueTrigger(job.ID, true); err != nil {
		internalError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusCreated, transformJob(job))
}

// jobHandler serves a single job and its deletion.
type jobHandler struct {
	cfg *Config
}

func (h *jobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	jobID := mux.Vars(r)["id"]

	switch r.Method {
	case "GET":
		job, err := h.cfg.DAL.JobForOwner(jobID, accountID)
		if errors.Cause(err) == dal.ErrJobNotFound {
			apiError(w, http.StatusNotFound, "Job not found")
			return
		} else if err != nil {
			internalError(w, err)
			return
		}
		httputil.JSONResponse(w, http.StatusOK, transformJob(job))
	case "DELETE":
		job, err := h.cfg.DAL.JobForOwner(jobID, accountID)
		if errors.Cause(err) == dal.ErrJobNotFound {
			apiError(w, http.StatusNotFound, "Job not found")
			return
		} else if err != nil {
			internalError(w, err)
			return
		}
		if _, err := h.cfg.DAL.DeleteJob(jobID, accountID); err != nil {
			internalError(w, err)
			return
		}
		// An undeleted source blob can outlive its job if it never
		// got processed.
		if !job.IsLink && !job.Status.Terminal() && job.SourceFileURL != "" {
			if err := h.cfg.Store.Delete(job.SourceFileURL); err != nil {
				golog.Warningf("server: deleting source blob for job %s: %s", jobID, err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// captionsHandler serves the rendered transcript of a completed job.
type captionsHandler struct {
	cfg *Config
}

type captionsQuery struct {
	Format string `schema:"format"`
}

func (h *captionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		apiError(w, http.StatusBadRequest, "Malformed query")
		return
	}
	var q captionsQuery
	if err := queryDecoder.Decode(&q, r.Form); err != nil {
		apiError(w, http.StatusBadRequest, "Malformed query")
		return
	}
	if q.Format == "" {
		q.Format = string(captions.FormatSRT)
	}

	job, err := h.cfg.DAL.JobForOwner(mux.Vars(r)["id"], accountID)
	if errors.Cause(err) == dal.ErrJobNotFound {
		apiError(w, http.StatusNotFound, "Job not found")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}
	if job.Status != models.JobStatusCompleted {
		apiError(w, http.StatusConflict, "Transcription is not finished")
		return
	}

	var body, contentType string
	switch q.Format {
	case string(captions.FormatSRT):
		body, contentType = job.TranscriptSRT, "application/x-subrip"
	case string(captions.FormatVTT):
		body, contentType = job.TranscriptVTT, "text/vtt"
	case "txt":
		body, contentType = job.TranscriptText, "text/plain; charset=utf-8"
	default:
		apiError(w, http.StatusBadRequest, "Unknown caption format")
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.WriteString(w, body); err != nil {
		golog.Warningf("server: writing captions for job %s: %s", job.ID, err)
	}
}

func internalError(w http.ResponseWriter, err error) {
	golog.LogDepthf(1, golog.ERR, "server: %s", err)
	apiError(w, http.StatusInternalServerError, "Internal error")
}
