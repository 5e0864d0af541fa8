package golog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
)

const timeFormat = "2006-01-02T15:04:05-0700"

// Formatter renders a log entry to bytes.
type Formatter interface {
	Format(e *Entry) []byte
}

// FormatterFunc is an adapter to allow plain functions as formatters.
type FormatterFunc func(*Entry) []byte

func (f FormatterFunc) Format(e *Entry) []byte {
	return f(e)
}

// LogfmtFormatter renders entries as logfmt key=value lines.
func LogfmtFormatter() Formatter {
	return FormatterFunc(func(e *Entry) []byte {
		buf := &bytes.Buffer{}
		buf.WriteString("t=")
		buf.WriteString(e.Time.Format(timeFormat))
		buf.WriteString(" lvl=")
		buf.WriteString(e.Lvl.String())
		buf.WriteString(" msg=")
		buf.WriteString(strconv.Quote(e.Msg))
		if e.Src != "" {
			buf.WriteString(" src=")
			buf.WriteString(strconv.Quote(e.Src))
		}
		for i := 0; i+1 < len(e.Ctx); i += 2 {
			k, ok := e.Ctx[i].(string)
			if !ok {
				buf.WriteString(" _error=")
			} else {
				buf.WriteByte(' ')
				buf.WriteString(k)
				buf.WriteByte('=')
			}
			buf.WriteString(formatValue(e.Ctx[i+1]))
		}
		buf.WriteByte('\n')
		return buf.Bytes()
	})
}

// JSONFormatter renders entries as single line JSON objects.
func JSONFormatter() Formatter {
	return FormatterFunc(func(e *Entry) []byte {
		js := make(map[string]interface{}, len(e.Ctx)/2+4)
		for i := 0; i+1 < len(e.Ctx); i += 2 {
			if k, ok := e.Ctx[i].(string); ok {
				js[k] = e.Ctx[i+1]
			}
		}
		js["t"] = e.Time.Format(timeFormat)
		js["level"] = e.Lvl.String()
		js["msg"] = e.Msg
		if e.Src != "" {
			js["src"] = e.Src
		}
		b, err := json.Marshal(js)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"JSONFormatterError": err.Error()})
			return b
		}
		return append(b, '\n')
	})
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(t)
	case error:
		return strconv.Quote(t.Error())
	case fmt.Stringer:
		return strconv.Quote(t.String())
	}
	return strconv.Quote(fmt.Sprintf("%v", v))
}

// IOHandler writes WARN and above to err, everything else to out.
func IOHandler(out, err io.Writer, fmtr Formatter) Handler {
	return &ioHandler{out: out, err: err, fmtr: fmtr}
}

type ioHandler struct {
	mu       sync.Mutex
	out, err io.Writer
	fmtr     Formatter
}

func (o *ioHandler) Log(e *Entry) error {
	m := o.fmtr.Format(e)
	o.mu.Lock()
	defer o.mu.Unlock()
	if e.Lvl <= WARN {
		_, err := o.err.Write(m)
		return err
	}
	_, err := o.out.Write(m)
	return err
}
