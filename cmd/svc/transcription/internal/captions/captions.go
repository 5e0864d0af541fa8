// Package captions renders timestamped transcript segments as SRT, WebVTT,
// and plain text. All functions are pure.
package captions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/quickscribe/backend/cmd/svc/transcription/internal/models"
	"github.com/quickscribe/backend/libs/errors"
)

// Format selects the caption timestamp dialect.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// separator between start and end timestamps, shared by both dialects.
const separator = " --> "

// FormatTimestamp renders a non-negative number of seconds as
// HH:MM:SS,mmm (SRT) or HH:MM:SS.mmm (VTT). Hours are not clamped to 24.
// Negative inputs are treated as zero.
func FormatTimestamp(seconds float64, f Format) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	ms = ms % 1000
	sep := ","
	if f == FormatVTT {
		sep = "."
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}

// ParseTimestamp is the inverse of FormatTimestamp for either dialect. It
// returns the value in seconds, exact to the millisecond.
func ParseTimestamp(ts string) (float64, error) {
	sep := ","
	if strings.Contains(ts, ".") {
		sep = "."
	}
	var clause string
	parts := strings.SplitN(ts, sep, 2)
	if len(parts) == 2 {
		clause = parts[1]
	}
	hms := strings.Split(parts[0], ":")
	if len(hms) != 3 {
		return 0, errors.Errorf("captions: malformed timestamp %q", ts)
	}
	var total int64
	for _, p := range hms {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, errors.Errorf("captions: malformed timestamp %q", ts)
		}
		total = total*60 + n
	}
	total *= 1000
	if clause != "" {
		if len(clause) != 3 {
			return 0, errors.Errorf("captions: malformed timestamp %q", ts)
		}
		n, err := strconv.ParseInt(clause, 10, 64)
		if err != nil || n < 0 {
			return 0, errors.Errorf("captions: malformed timestamp %q", ts)
		}
		total += n
	}
	return float64(total) / 1000, nil
}

// GenerateSRT renders segments as a SubRip transcript. Sequence numbers are
// 1-based and entries are separated by exactly one blank line, with a single
// trailing newline after the final entry. No segments produces "".
func GenerateSRT(segments []*models.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		b.WriteString(FormatTimestamp(seg.Start, FormatSRT))
		b.WriteString(separator)
		b.WriteString(FormatTimestamp(seg.End, FormatSRT))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// GenerateVTT renders segments as a WebVTT transcript. An empty segment list
// produces just the header block.
func GenerateVTT(segments []*models.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTimestamp(seg.Start, FormatVTT))
		b.WriteString(separator)
		b.WriteString(FormatTimestamp(seg.End, FormatVTT))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// PlainText joins segment texts with single spaces, skipping empty segments.
func PlainText(segments []*models.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
