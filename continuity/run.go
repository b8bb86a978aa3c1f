package continuity

import (
	"context"

	"github.com/google/uuid"
)

// Outcome is the terminal signal of asynchronous run
type Outcome struct {
	Result Result
	Err    error
}

// Run is tracking run executing in background goroutine
type Run struct {
	id       uuid.UUID
	cancel   context.CancelFunc
	progress chan Progress
	done     chan Outcome
}

// Start executes request in background goroutine. Progress is delivered without blocking the run:
// reports are dropped when nobody reads them. Done delivers exactly one Outcome.
func (c *Coordinator) Start(ctx context.Context, req Request) *Run {
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:       req.RunID,
		cancel:   cancel,
		progress: make(chan Progress, 64),
		done:     make(chan Outcome, 1),
	}
	userProgress := req.Progress
	req.Progress = func(p Progress) {
		if userProgress != nil {
			userProgress(p)
		}
		select {
		case run.progress <- p:
		default:
		}
	}
	go func() {
		defer cancel()
		defer close(run.done)
		defer close(run.progress)
		result, err := c.Run(runCtx, req)
		run.done <- Outcome{Result: result, Err: err}
	}()
	return run
}

// ID returns run identifier
func (run *Run) ID() uuid.UUID {
	return run.id
}

// Progress returns channel of progress reports. It is closed when run finishes.
func (run *Run) Progress() <-chan Progress {
	return run.progress
}

// Done returns channel delivering run outcome
func (run *Run) Done() <-chan Outcome {
	return run.done
}

// Cancel requests cooperative cancellation. Run stops before the next frame.
func (run *Run) Cancel() {
	run.cancel()
}

// Wait blocks until run finishes
func (run *Run) Wait() Outcome {
	return <-run.done
}
