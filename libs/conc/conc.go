// Package conc includes helpers for concurrency patterns that avoid some of the most common pitfalls.
package conc

import (
	"fmt"

	"golang.org/x/net/context"
)

// Testing should be set to true when running tests for code that use this package.
// This makes all functionality synchronous and makes tests deterministic.
var Testing bool

// Go runs the provided function in a go routine if Testing is not set,
// and synchronously if it is.
func Go(f func()) {
	if !Testing {
		go f()
	} else {
		f()
	}
}

// GoCtx runs the provided function with the provided context in a go routine
// if Testing is not set, and synchronously if it is.
func GoCtx(ctx context.Context, f func(ctx context.Context)) {
	if !Testing {
		go f(ctx)
	} else {
		f(ctx)
	}
}

// Errors is a slice of multiple errors
type Errors []error

// Error implements the error interface
func (e Errors) Error() string {
	return fmt.Sprintf("%+v", []error(e))
}

// Parallel helps with the pattern of starting multiple goroutines to do work in parallel
// and waiting for them all to complete immediately after. It catches panics and makes
// sure not to block on the error response channel.
type Parallel struct {
	errCh []chan error
}

// NewParallel returns a new instance of Parallel.
func NewParallel() *Parallel {
	return &Parallel{}
}

// Go runs the provided function in the background and handles panic recovery and error capture.
// It should not be called after Wait.
func (p *Parallel) Go(fn func() error) {
	ch := make(chan error, 1)
	p.errCh = append(p.errCh, ch)
	go func() {
		defer func() {
			if e := recover(); e != nil {
				if err, ok := e.(error); ok {
					ch <- err
				} else {
					ch <- fmt.Errorf("runtime error: %v", e)
				}
			}
			close(ch)
		}()
		if err := fn(); err != nil {
			ch <- err
		}
	}()
}

// Wait waits for all goroutines started by Go to complete and returns all errors if any.
func (p *Parallel) Wait() error {
	var errs []error
	for _, ch := range p.errCh {
		if err, ok := <-ch; ok && err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return Errors(errs)
	}
	return nil
}
