package retry

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/quickscribe/backend/libs/errors"
	"github.com/quickscribe/backend/libs/test"
)

func silence(t *testing.T) (sleeps *[]time.Duration) {
	origSleep, origJitter := sleep, jitter
	var recorded []time.Duration
	sleep = func(d time.Duration) { recorded = append(recorded, d) }
	jitter = func(time.Duration) time.Duration { return 0 }
	t.Cleanup(func() {
		sleep, jitter = origSleep, origJitter
	})
	return &recorded
}

type statusErr struct {
	status int
}

func (e statusErr) Error() string   { return "status error" }
func (e statusErr) StatusCode() int { return e.status }

func TestEventualSuccess(t *testing.T) {
	sleeps := silence(t)

	calls := 0
	var got string
	err := Do(&Config{Name: "op", MaxRetries: 2, InitialBackoff: time.Second}, func() error {
		calls++
		if calls < 3 {
			return statusErr{status: 503}
		}
		got = "result"
		return nil
	})
	test.OK(t, err)
	test.Equals(t, 3, calls)
	test.Equals(t, "result", got)
	// Backoff doubles between attempts.
	test.Equals(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	sleeps := silence(t)

	original := statusErr{status: 401}
	calls := 0
	err := Do(&Config{Name: "op", MaxRetries: 3, InitialBackoff: time.Second}, func() error {
		calls++
		return original
	})
	test.Equals(t, 1, calls)
	test.Equals(t, 0, len(*sleeps))
	// The original error comes back unmodified.
	test.Equals(t, error(original), err)
}

func TestExhaustionReturnsLastError(t *testing.T) {
	silence(t)

	last := statusErr{status: 500}
	calls := 0
	err := Do(&Config{Name: "op", MaxRetries: 2, InitialBackoff: time.Millisecond}, func() error {
		calls++
		return last
	})
	test.Equals(t, 3, calls)
	test.Equals(t, error(last), err)
}

func TestBackoffCap(t *testing.T) {
	sleeps := silence(t)

	calls := 0
	Do(&Config{Name: "op", MaxRetries: 4, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}, func() error {
		calls++
		return statusErr{status: 503}
	})
	test.Equals(t, 5, calls)
	test.Equals(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, *sleeps)
}

func TestDefaultRetryable(t *testing.T) {
	test.Equals(t, true, DefaultRetryable(statusErr{status: 429}))
	test.Equals(t, true, DefaultRetryable(statusErr{status: 408}))
	test.Equals(t, true, DefaultRetryable(statusErr{status: 502}))
	test.Equals(t, false, DefaultRetryable(statusErr{status: 400}))
	test.Equals(t, false, DefaultRetryable(statusErr{status: 404}))

	test.Equals(t, true, DefaultRetryable(syscall.ECONNRESET))
	test.Equals(t, true, DefaultRetryable(syscall.ECONNREFUSED))
	test.Equals(t, true, DefaultRetryable(&net.DNSError{Err: "no such host"}))
	test.Equals(t, true, DefaultRetryable(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}))
	test.Equals(t, false, DefaultRetryable(errors.New("validation failed")))

	// Classification sees through trace wrapping.
	test.Equals(t, true, DefaultRetryable(errors.Trace(syscall.ETIMEDOUT)))
}
