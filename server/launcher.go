package main

import (
	"context"
	"log/slog"
	"sync"

	schedulerpkg "github.com/gammadia/jeeves/scheduler"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
)

// launcher brings registered workers to life. Launching can take minutes, so
// every launch gets its own goroutine.
type launcher struct {
	ctx   context.Context
	nodes *schedulerpkg.Nodes
	log   *slog.Logger

	wg       conc.WaitGroup
	mu       sync.Mutex
	launched map[string]*schedulerpkg.Worker
}

func newLauncher(ctx context.Context, nodes *schedulerpkg.Nodes, log *slog.Logger) *launcher {
	return &launcher{
		ctx:      ctx,
		nodes:    nodes,
		log:      log,
		launched: make(map[string]*schedulerpkg.Worker),
	}
}

// listen consumes node events until the channel is closed.
func (l *launcher) listen(events <-chan schedulerpkg.Event) {
	for event := range events {
		registered, ok := event.(schedulerpkg.EventNodeRegistered)
		if !ok {
			continue
		}

		worker, ok := l.nodes.Get(registered.Node)
		if !ok {
			continue
		}
		l.wg.Go(func() { l.launch(worker) })
	}
}

func (l *launcher) launch(worker *schedulerpkg.Worker) {
	log := l.log.With("node", worker.Name, "job", worker.Job.FQN())
	log.Info("Launching worker")

	if err := worker.Launcher.Launch(l.ctx, worker); err != nil {
		log.Error("Failed to launch worker", "error", err)
		l.nodes.Remove(worker.Name)
		return
	}

	l.mu.Lock()
	l.launched[worker.Name] = worker
	l.mu.Unlock()
	log.Info("Worker is online")
}

func (l *launcher) running() []*schedulerpkg.Worker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Values(l.launched)
}

// shutdown waits for in-flight launches, then terminates every launched
// worker.
func (l *launcher) shutdown(ctx context.Context) {
	l.wg.Wait()

	for _, worker := range l.running() {
		if err := worker.Launcher.Terminate(ctx, worker); err != nil {
			l.log.Error("Failed to terminate worker", "node", worker.Name, "error", err)
		}
		l.nodes.Remove(worker.Name)
	}

	l.mu.Lock()
	clear(l.launched)
	l.mu.Unlock()
}
