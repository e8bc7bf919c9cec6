package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gammadia/jeeves/server/flags"
	"github.com/gammadia/jeeves/server/log"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

// Global context for shutdown cascading. When cancel() is called (from signal handler),
// all goroutines watching ctx.Done() begin their shutdown sequence.
var ctx, cancel = context.WithCancel(context.Background())

// wg tracks the two main goroutines: scheduler and gRPC server.
var wg sync.WaitGroup

func main() {
	if err := flags.Parse(os.Args[0], os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		lo.Must(fmt.Fprintln(os.Stderr, err))
		os.Exit(1)
	}

	// Setup logger first as this will be used to report progress of the rest of the setup
	if err := log.Init(); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, err))
		os.Exit(1)
	}
	log.Info("Jeeves starting up...", "version", version, "commit", commit)

	shutdownTracing, err := setupTracing(viper.GetBool(flags.Trace))
	if err != nil {
		log.Error("Failed to setup tracing", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", viper.GetString(flags.Listen))
	if err != nil {
		log.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	setupInterrupts()

	providers, err := createProviders()
	if err != nil {
		log.Error("Failed to create providers", "error", err)
		os.Exit(1)
	}

	sched, err := createScheduler(ctx, providers)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}

	items, err := scheduleJobsfile(sched.queue, viper.GetString(flags.Jobs))
	if err != nil {
		log.Error("Failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	log.Info("Jobs scheduled", "count", len(items))

	s, h := createHealthServer()
	updateHealth(h, len(providers.Snapshot()))

	// Scheduler teardown: once ctx is cancelled, pending registrations finish,
	// launched workers are terminated and providers release their resources.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer shutdownCancel()

		sched.shutdown(shutdownCtx)
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("Failed to flush traces", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			<-ctx.Done()
			h.Shutdown()
			s.GracefulStop()
		}()

		log.Info("Server listening", "address", lis.Addr())
		if err := s.Serve(lis); err != nil {
			log.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	wg.Wait()
	log.Info("Shutdown completed. Bye!")
}

// setupInterrupts handles Ctrl+C (SIGINT) with a double-tap pattern:
// - First signal: calls cancel() which cascades shutdown through ctx.Done() to all goroutines
// - Second signal: forces immediate exit (in case graceful shutdown hangs)
func setupInterrupts() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	go func() {
		<-sig
		log.Info("Shutdown signal received, attempting graceful shutdown")
		cancel()
		<-sig
		log.Warn("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()
}
