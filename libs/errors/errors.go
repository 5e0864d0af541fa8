// Package errors provides error wrapping that records the location at which
// an error was first seen along with optional annotations for debugging.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// New returns an error that formats as the given text.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as an error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

type aerr struct {
	err         error
	trace       []string
	annotations []string
}

func (e aerr) Error() string {
	if len(e.annotations) == 0 {
		return e.err.Error()
	}
	return e.err.Error() + " [" + strings.Join(e.annotations, ", ") + "]"
}

// Unwrap supports the stdlib errors.Is / errors.As traversal.
func (e aerr) Unwrap() error {
	return e.err
}

func wrap(err error) aerr {
	if e, ok := err.(aerr); ok {
		return e
	}
	return aerr{err: err}
}

// Trace annotates an error with the file and line at which it was traced.
// The original error remains recoverable through Cause.
func Trace(err error) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	if _, file, line, ok := runtime.Caller(1); ok {
		short := file
		if i := strings.LastIndexByte(file, '/'); i >= 0 {
			short = file[i+1:]
		}
		e.trace = append(e.trace, fmt.Sprintf("%s:%d", short, line))
	}
	return e
}

// StackTrace returns the locations recorded by Trace, oldest first.
func StackTrace(err error) []string {
	if e, ok := err.(aerr); ok {
		return e.trace
	}
	return nil
}

// Cause returns the underlying error stripped of trace and annotation wrapping.
func Cause(err error) error {
	if e, ok := err.(aerr); ok {
		return e.err
	}
	return err
}

// Annotate adds context to an error. It can be used to attach more information that is useful for debugging.
func Annotate(err error, msg string) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, msg)
	return e
}

// Annotatef adds context to an error. It can be used to attach more information that is useful for debugging.
func Annotatef(err error, f string, v ...interface{}) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, fmt.Sprintf(f, v...))
	return e
}

// Annotations returns all annotations attached to an error.
func Annotations(err error) []string {
	if e, ok := err.(aerr); ok {
		return e.annotations
	}
	return nil
}
