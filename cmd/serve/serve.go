// Package serve implements the streaming server subcommand.
package serve

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/conf"
	"github.com/matiaszanolli/auralis-go/internal/httpserver"
	"github.com/matiaszanolli/auralis-go/internal/library"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/monitor"
	"github.com/matiaszanolli/auralis-go/internal/observability"
	"github.com/matiaszanolli/auralis-go/internal/predictor"
	"github.com/matiaszanolli/auralis-go/internal/processor"
	"github.com/matiaszanolli/auralis-go/internal/streaming"
	"github.com/matiaszanolli/auralis-go/internal/worker"
)

// exit codes for coded errors
const (
	codeCacheDir  = 3
	codeBindError = 4
)

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the interactive mastering streaming server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

// run is the composition root: every component instance is constructed
// here and passed by reference, no globals.
func run(settings *conf.Settings) error {
	log := logging.ForService("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	if err := checkCacheDirWritable(settings.Cache.Dir); err != nil {
		return withCode(err, codeCacheDir)
	}

	cache, err := chunkcache.New(settings.Cache.Dir, settings.Cache.Tier1Bytes, settings.Cache.Tier2Bytes, logging.Structured(), metrics)
	if err != nil {
		return withCode(err, codeCacheDir)
	}

	store, err := library.Open(settings.Library.DBPath)
	if err != nil {
		return err
	}

	proc := processor.New(cache.Dir(), audiofile.Subtype(settings.Cache.WAVSubtype), metrics)

	predict := predictor.NewRecorder(predictor.NewStatic())
	warm := worker.New(cache, proc, predict,
		worker.Timeouts{
			Priority0: time.Duration(settings.Worker.Priority0Timeout) * time.Second,
			Priority1: time.Duration(settings.Worker.Priority1Timeout) * time.Second,
			Priority2: time.Duration(settings.Worker.Priority2Timeout) * time.Second,
			Priority3: time.Duration(settings.Worker.Priority3Timeout) * time.Second,
		},
		time.Duration(settings.Worker.CheckIntervalS)*time.Second, metrics)
	warm.Start()
	defer warm.Stop()

	var memMonitor *monitor.Monitor
	if settings.Monitor.Enabled {
		memMonitor = monitor.New(nil, cache, warm,
			time.Duration(settings.Monitor.CheckIntervalS)*time.Second, metrics)
		memMonitor.Start()
		defer memMonitor.Stop()
	}

	ctrl := streaming.NewController(streaming.Config{
		MaxConcurrentStreams: settings.Streaming.MaxConcurrentStreams,
		SendQueueMaxsize:     settings.Streaming.SendQueueMaxsize,
		XfadeMs:              settings.Streaming.XfadeMs,
		MaxLevelChangeDB:     settings.Streaming.MaxLevelChangeDB,
		FrameBytes:           settings.Streaming.FrameBytes,
		AcquireTimeout:       2 * time.Second,
	}, cache, proc, warm, store.Resolver(), metrics)
	defer ctrl.StopAll()

	server := httpserver.New(settings, ctrl, store, predict, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return withCode(err, codeBindError)
		}
		return nil
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// checkCacheDirWritable proves the payload directory accepts writes before
// anything depends on it.
func checkCacheDirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}

// withCode defers to the root package's coded errors without an import
// cycle.
type codedError struct {
	error
	code int
}

func (e *codedError) ExitCode() int { return e.code }

func withCode(err error, code int) error {
	return &codedError{error: err, code: code}
}
