package syncService

import (
	"context"
	"sync"
)

// Report is the outcome of one remote persistence run.
type Report struct {
	TransactionsWritten int      `json:"transactionsWritten"`
	HoldingsUpserted    int      `json:"holdingsUpserted"`
	HoldingsDeleted     int      `json:"holdingsDeleted"`
	FailedChunks        int      `json:"failedChunks"`
	Errors              []string `json:"errors,omitempty"`
	// Skipped is set for local-only portfolios that have no remote rows to write.
	Skipped bool `json:"skipped,omitempty"`
}

func (r Report) OK() bool {
	return r.FailedChunks == 0
}

// Task is the handle of a background persistence run.
type Task struct {
	once   sync.Once
	done   chan struct{}
	report Report
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// CompletedTask returns a task that is already finished with r.
func CompletedTask(r Report) *Task {
	t := newTask()
	t.finish(r)
	return t
}

func (t *Task) finish(r Report) {
	t.once.Do(func() {
		t.report = r
		close(t.done)
	})
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Report, error) {
	select {
	case <-t.done:
		return t.report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}
