package golog

import (
	"bytes"
	"strings"
	"testing"
)

type captureHandler struct {
	buf bytes.Buffer
	f   Formatter
}

func (h *captureHandler) Log(e *Entry) error {
	h.buf.Write(h.f.Format(e))
	return nil
}

func TestLevelFiltering(t *testing.T) {
	h := &captureHandler{f: LogfmtFormatter()}
	l := Default().Context()
	l.SetHandler(h)
	l.SetLevel(INFO)

	l.Debugf("hidden")
	l.Infof("shown")

	out := h.buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry should have been filtered: %q", out)
	}
	if !strings.Contains(out, `msg="shown"`) {
		t.Fatalf("info entry missing: %q", out)
	}
}

func TestContextKeyValues(t *testing.T) {
	h := &captureHandler{f: LogfmtFormatter()}
	l := Default().Context("job_id", "j123")
	l.SetHandler(h)

	l.Infof("processing")
	if out := h.buf.String(); !strings.Contains(out, `job_id="j123"`) {
		t.Fatalf("context key missing: %q", out)
	}
}
