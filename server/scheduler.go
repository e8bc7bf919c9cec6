package main

import (
	"context"
	"fmt"

	"github.com/gammadia/jeeves/cloud"
	"github.com/gammadia/jeeves/registrar"
	schedulerpkg "github.com/gammadia/jeeves/scheduler"
	"github.com/gammadia/jeeves/server/flags"
	"github.com/gammadia/jeeves/server/log"
	"github.com/gammadia/jeeves/trigger"
	"github.com/spf13/viper"
)

// scheduler groups the queue and everything reacting to it.
type scheduler struct {
	providers *cloud.Registry
	queue     *schedulerpkg.Queue
	nodes     *schedulerpkg.Nodes
	pool      *registrar.Pool
	trigger   *trigger.Trigger
	launcher  *launcher

	unsubscribe func()
}

func createScheduler(ctx context.Context, providers *cloud.Registry) (*scheduler, error) {
	config := schedulerpkg.Config{
		Logger:      log.Component("scheduler"),
		EventBuffer: viper.GetInt(flags.EventBuffer),
	}
	if err := schedulerpkg.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	s := &scheduler{
		providers: providers,
		queue:     schedulerpkg.NewQueue(config),
		nodes:     schedulerpkg.NewNodes(config),
		pool:      registrar.NewPool(log.Component("registrar")),
	}

	s.trigger = trigger.New(trigger.Config{
		Logger:    log.Component("trigger"),
		Providers: providers,
		Registrar: registrar.New(registrar.Config{
			Logger:   log.Component("registrar"),
			Executor: s.pool,
			Nodes:    s.nodes,
		}),
	})
	s.queue.AddListener(s.trigger)

	s.launcher = newLauncher(ctx, s.nodes, log.Component("launcher"))
	events, unsubscribe := s.nodes.Subscribe()
	s.unsubscribe = unsubscribe
	go s.launcher.listen(events)

	return s, nil
}

// shutdown lets pending registrations finish, then tears every worker down.
func (s *scheduler) shutdown(ctx context.Context) {
	s.pool.Wait()
	s.launcher.shutdown(ctx)
	s.unsubscribe()
	shutdownProviders(ctx, s.providers)

	stats := s.trigger.Stats()
	log.Info("Scheduler stopped", "provisioned", stats.Provisioned, "skipped", stats.Skipped, "failed", stats.Failed)
}
