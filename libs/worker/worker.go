// Package worker defines the contract for background task runners and a
// collection type to manage their lifecycle together.
package worker

import (
	"time"

	"github.com/quickscribe/backend/libs/conc"
)

// Worker represents the interface that mechanisms performing background tasks should conform to.
type Worker interface {
	Start()
	Stop(wait time.Duration)
	Started() bool
}

// Collection is a collection of workers managed as a unit.
type Collection struct {
	workers []Worker
}

// AddWorker adds a worker to the collection of managed workers.
func (c *Collection) AddWorker(w Worker) {
	c.workers = append(c.workers, w)
}

// Start starts all workers.
func (c *Collection) Start() {
	for _, wk := range c.workers {
		wk := wk
		conc.Go(wk.Start)
	}
}

// Stop stops all workers waiting at most the provided duration for each.
func (c *Collection) Stop(wait time.Duration) {
	parallel := conc.NewParallel()
	for _, wk := range c.workers {
		wk := wk
		parallel.Go(func() error {
			wk.Stop(wait)
			return nil
		})
	}
	parallel.Wait()
}
