package asyncstep

import (
	"context"
	"time"

	"github.com/Azure/go-asynctask"
)

// reaper is the background task of a free container. It is started on every transition to free,
// and cancelled on the next MarkBusy or Stop.
type reaper struct {
	generation uint64
	cancel     context.CancelFunc
	task       *asynctask.Task[bool]
}

func (c *Container[T]) startReaperLocked(generation uint64) {
	c.cancelReaperLocked()

	ctx, cancel := context.WithCancel(context.Background())
	wait := c.options.InactivityThreshold
	c.reaper = &reaper{
		generation: generation,
		cancel:     cancel,
		task: asynctask.Start(ctx, func(ctx context.Context) (*bool, error) {
			reaped := c.reap(ctx, generation, wait)
			return &reaped, nil
		}),
	}
}

func (c *Container[T]) cancelReaperLocked() {
	if c.reaper != nil {
		c.reaper.cancel()
	}
}

// reap waits for the inactivity threshold, and stops the resource if the container stayed free
// in the meantime. A Get on the free container defers the stop, counting from the last access.
func (c *Container[T]) reap(ctx context.Context, generation uint64, wait time.Duration) bool {
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		var done bool
		var outcome *stopOutcome
		wait, done, outcome = c.reapIfIdle(generation)
		if done {
			if err := c.notifyStop(outcome); err != nil {
				// the resource is abandoned, the next Get builds a new one.
				c.logger.Error(err, "failed to stop idle resource")
			}
			return outcome != nil
		}
	}
}

func (c *Container[T]) reapIfIdle(generation uint64) (time.Duration, bool, *stopOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy > 0 || c.generation != generation || !c.built {
		return 0, true, nil
	}

	if idle := time.Since(c.lastAccess); idle < c.options.InactivityThreshold {
		return c.options.InactivityThreshold - idle, false, nil
	}

	return 0, true, c.stopLocked(true)
}
