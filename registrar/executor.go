package registrar

import (
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Executor runs fire-and-forget tasks. Submit never blocks on the task.
type Executor interface {
	Submit(task func())
}

// Pool runs every task on its own goroutine. It is unbounded: submission
// never waits for capacity.
type Pool struct {
	log *slog.Logger
	wg  conc.WaitGroup
}

// Pool implements Executor
var _ Executor = (*Pool)(nil)

func NewPool(log *slog.Logger) *Pool {
	return &Pool{log: log}
}

func (p *Pool) Submit(task func()) {
	p.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(task)
		if recovered := pc.Recovered(); recovered != nil {
			p.log.Error("Background task panicked", "error", recovered.AsError())
		}
	})
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Inline runs tasks on the submitting goroutine. Tests only.
type Inline struct{}

// Inline implements Executor
var _ Executor = Inline{}

func (Inline) Submit(task func()) {
	task()
}
