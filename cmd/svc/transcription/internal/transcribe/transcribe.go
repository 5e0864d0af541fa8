// Package transcribe wraps the speech-to-text provider behind a uniform
// result contract. Provider errors are mapped to the fault taxonomy at this
// boundary; nothing above it ever inspects a raw HTTP response.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/faults"
	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/retry"
)

// Result is the normalized outcome of one transcription call.
type Result struct {
	Text     string
	Language string
	Duration float64 // seconds
	Segments []*models.Segment
}

// Transcriber converts an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, mode models.Mode) (*Result, error)
}

// Config holds provider credentials and model selection.
type Config struct {
	APIKey        string
	BaseURL       string
	FastModel     string
	AccurateModel string
	// Diarize requests per speaker attribution where the provider supports
	// it. The normalized result is identical in shape either way.
	Diarize    bool
	HTTPClient *http.Client
}

const (
	defaultBaseURL       = "https://api.scribeworks.io"
	defaultFastModel     = "swift-1"
	defaultAccurateModel = "precise-1"
	defaultHTTPTimeout   = 15 * time.Minute

	// Transient provider failures get a couple of re-attempts with a
	// gentle backoff before the job is failed.
	maxRetries     = 2
	initialBackoff = 3 * time.Second
)

// Client talks to the transcription provider's HTTP API.
type Client struct {
	cfg Config
}

// New validates credentials at construction so a misconfigured deployment
// fails at startup, not on the first job.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("transcribe: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.FastModel == "" {
		cfg.FastModel = defaultFastModel
	}
	if cfg.AccurateModel == "" {
		cfg.AccurateModel = defaultAccurateModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) modelFor(mode models.Mode) string {
	if mode == models.ModeAccurate {
		return c.cfg.AccurateModel
	}
	return c.cfg.FastModel
}

// Transcribe uploads the audio at audioPath and returns the normalized
// transcript. Transient provider failures are retried; everything else is
// surfaced immediately with its fault kind.
func (c *Client) Transcribe(ctx context.Context, audioPath string, mode models.Mode) (*Result, error) {
	var res *Result
	err := retry.Do(&retry.Config{
		Name:           "transcribe." + string(mode),
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		Retryable:      transientFault,
	}, func() error {
		var err error
		res, err = c.transcribeOnce(ctx, audioPath, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// transientFault classifies which provider failures are worth re-attempting.
// Malformed responses and auth or payload problems never are.
func transientFault(err error) bool {
	switch faults.KindOf(err) {
	case faults.KindServiceUnavailable, faults.KindNetworkError:
		return true
	}
	return false
}

func (c *Client) transcribeOnce(ctx context.Context, audioPath string, mode models.Mode) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindUnknown, "opening audio file")
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, faults.Wrap(err, faults.KindUnknown, "building upload")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, faults.Wrap(err, faults.KindUnknown, "buffering audio")
	}
	mw.WriteField("model", c.modelFor(mode))
	mw.WriteField("response_format", "verbose_json")
	if c.cfg.Diarize {
		mw.WriteField("diarize", "true")
	}
	if err := mw.Close(); err != nil {
		return nil, faults.Wrap(err, faults.KindUnknown, "finalizing upload")
	}

	req, err := http.NewRequest("POST", c.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindUnknown, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpRes, err := c.cfg.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, faults.Wrap(err, faults.KindNetworkError, "calling provider")
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode != http.StatusOK {
		// Read a little of the body for the log line in the fault message.
		snippet, _ := ioutil.ReadAll(io.LimitReader(httpRes.Body, 512))
		return nil, faults.New(kindForStatus(httpRes.StatusCode), "provider returned %d: %s", httpRes.StatusCode, snippet)
	}

	if c.cfg.Diarize {
		return decodeDiarized(httpRes.Body)
	}
	return decodeVerbose(httpRes.Body)
}

func kindForStatus(status int) faults.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return faults.KindUnauthorized
	case status == http.StatusTooManyRequests:
		return faults.KindRateLimited
	case status == http.StatusRequestEntityTooLarge:
		return faults.KindPayloadTooLarge
	case status >= 500:
		return faults.KindServiceUnavailable
	}
	return faults.KindUnexpectedResponse
}

type verboseResponse struct {
	Text     *string `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// decodeVerbose parses the provider's verbose_json shape. Both text and
// segments are required, and the text must be non-empty; anything less is a
// malformed response, never a partial success.
func decodeVerbose(r io.Reader) (*Result, error) {
	var vr verboseResponse
	if err := json.NewDecoder(r).Decode(&vr); err != nil {
		return nil, faults.Wrap(err, faults.KindUnexpectedResponse, "decoding provider response")
	}
	if vr.Text == nil || *vr.Text == "" {
		return nil, faults.New(faults.KindUnexpectedResponse, "provider response missing text")
	}
	if vr.Segments == nil {
		return nil, faults.New(faults.KindUnexpectedResponse, "provider response missing segments")
	}
	res := &Result{
		Text:     *vr.Text,
		Language: vr.Language,
		Duration: vr.Duration,
		Segments: make([]*models.Segment, 0, len(vr.Segments)),
	}
	for i, s := range vr.Segments {
		res.Segments = append(res.Segments, &models.Segment{
			ID:    i,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return res, nil
}

type diarizedResponse struct {
	Text       *string `json:"text"`
	Language   string  `json:"language"`
	DurationMS float64 `json:"audio_duration_ms"`
	Utterances []struct {
		Speaker int     `json:"speaker"`
		StartMS float64 `json:"start_ms"`
		EndMS   float64 `json:"end_ms"`
		Text    string  `json:"text"`
	} `json:"utterances"`
}

// decodeDiarized parses the diarization shape, normalizing millisecond
// offsets to seconds and numeric speakers to display labels.
func decodeDiarized(r io.Reader) (*Result, error) {
	var dr diarizedResponse
	if err := json.NewDecoder(r).Decode(&dr); err != nil {
		return nil, faults.Wrap(err, faults.KindUnexpectedResponse, "decoding provider response")
	}
	if dr.Text == nil || *dr.Text == "" {
		return nil, faults.New(faults.KindUnexpectedResponse, "provider response missing text")
	}
	if dr.Utterances == nil {
		return nil, faults.New(faults.KindUnexpectedResponse, "provider response missing utterances")
	}
	res := &Result{
		Text:     *dr.Text,
		Language: dr.Language,
		Duration: dr.DurationMS / 1000,
		Segments: make([]*models.Segment, 0, len(dr.Utterances)),
	}
	for i, u := range dr.Utterances {
		speaker := "Speaker " + strconv.Itoa(u.Speaker)
		res.Segments = append(res.Segments, &models.Segment{
			ID:      i,
			Start:   u.StartMS / 1000,
			End:     u.EndMS / 1000,
			Text:    fmt.Sprintf("%s: %s", speaker, u.Text),
			Speaker: speaker,
		})
	}
	return res, nil
}
