// Package test provides small assertion helpers for tests.
package test

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// OK fails the test if err is not nil.
func OK(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %s", caller(), err)
	}
}

// Equals fails the test if expected is not deeply equal to actual.
func Equals(t testing.TB, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("%s:\n\texpected: %#v\n\tgot:      %#v", caller(), expected, actual)
	}
}

// Assert fails the test with msg if the condition is false.
func Assert(t testing.TB, condition bool, msg string, v ...interface{}) {
	t.Helper()
	if !condition {
		t.Fatalf("%s: "+msg, append([]interface{}{caller()}, v...)...)
	}
}

// AssertNil fails the test if the value is not nil.
func AssertNil(t testing.TB, v interface{}) {
	t.Helper()
	if v != nil && !reflect.ValueOf(v).IsNil() {
		t.Fatalf("%s: expected nil, got %#v", caller(), v)
	}
}

// AssertNotNil fails the test if the value is nil.
func AssertNotNil(t testing.TB, v interface{}) {
	t.Helper()
	if v == nil || (reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil()) {
		t.Fatalf("%s: expected a value, got nil", caller())
	}
}
