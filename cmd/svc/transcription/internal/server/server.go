// Package server exposes the transcription job API over HTTP. Submission
// creates a PENDING job and enqueues a pipeline trigger; processing happens
// asynchronously in the workers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/dal"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/events"
	"github.com/quickscribe/backend/libs/httputil"
	"github.com/quickscribe/backend/libs/storage"
)

// accountIDHeader carries the authenticated account, set by the auth proxy
// in front of this service.
const accountIDHeader = "X-Account-ID"

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// Config collects the server's collaborators.
type Config struct {
	DAL      dal.DAL
	Store    storage.DeterministicStore
	Enqueuer *events.Enqueuer
	// MaxUploadSize bounds POST /jobs bodies. Zero selects the default.
	MaxUploadSize int64
}

const defaultMaxUploadSize = 512 << 20

// New returns the API handler.
func New(cfg *Config) http.Handler {
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	r := mux.NewRouter()
	r.Handle("/jobs", httputil.SupportedMethods(&jobsHandler{cfg: cfg}, "GET", "POST"))
	r.Handle("/jobs/link", httputil.SupportedMethods(&linkHandler{cfg: cfg}, "POST"))
	r.Handle("/jobs/{id}", httputil.SupportedMethods(&jobHandler{cfg: cfg}, "GET", "DELETE"))
	r.Handle("/jobs/{id}/captions", httputil.SupportedMethods(&captionsHandler{cfg: cfg}, "GET"))
	return r
}

// requireAccount extracts the authenticated account id or writes a 401.
func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := r.Header.Get(accountIDHeader)
	if accountID == "" {
		apiError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return accountID, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func apiError(w http.ResponseWriter, statusCode int, msg string) {
	httputil.JSONResponse(w, statusCode, &errorResponse{Error: msg})
}
