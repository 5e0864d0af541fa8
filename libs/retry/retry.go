// Package retry wraps failure prone operations with bounded retries and
// exponential backoff with jitter. Whether an error is worth retrying is
// decided by a pluggable classifier; the default recognizes transient
// network failures and HTTP-like throttling or server errors.
package retry

import (
	"math/rand"
	"net"
	"syscall"
	"time"

	stderrors "errors"

	"github.com/quickscribe/backend/libs/golog"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// StatusCoder is implemented by errors that carry an HTTP-like status code.
type StatusCoder interface {
	StatusCode() int
}

// Config controls one retried operation. The zero value of any field selects
// its default. Config values are not retained past the Do call.
type Config struct {
	// Name identifies the operation in logs.
	Name string
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int
	// InitialBackoff is the delay before the first re-attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps both the growing backoff and the jittered wait.
	MaxBackoff time.Duration
	// Retryable classifies an error as transient. Nil selects DefaultRetryable.
	Retryable func(error) bool
}

// Testing skips backoff waits entirely so retry loops run instantly in
// tests of packages that use retry.
var Testing bool

// Overridable in tests to make backoff deterministic and instant.
var (
	sleep  = time.Sleep
	jitter = func(backoff time.Duration) time.Duration {
		if backoff <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(backoff)/5 + 1))
	}
)

// Do invokes op until it succeeds, the retry budget is exhausted, or a
// failure is classified as not retryable. The error returned on failure is
// the last error from op, unmodified.
func Do(cfg *Config, op func() error) error {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	backoff := cfg.InitialBackoff
	if backoff == 0 {
		backoff = DefaultInitialBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = DefaultMaxBackoff
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		wait := backoff + jitter(backoff)
		if wait > maxBackoff {
			wait = maxBackoff
		}
		golog.Warningf("retry: %s failed (attempt %d/%d), waiting %s: %s",
			cfg.Name, attempt+1, maxRetries+1, wait, err)
		if !Testing {
			sleep(wait)
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// DefaultRetryable reports whether an error looks transient: network
// connection failures, DNS errors, timeouts, and HTTP-like statuses
// 408, 429, and 5xx.
func DefaultRetryable(err error) bool {
	var sc StatusCoder
	if stderrors.As(err, &sc) {
		return RetryableStatus(sc.StatusCode())
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ETIMEDOUT,
		syscall.EPIPE,
	} {
		if stderrors.Is(err, errno) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
func RetryableStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}
