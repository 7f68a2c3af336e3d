// Package app assembles the ledger components from configuration. Both the
// HTTP server and the CLI run on top of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/dvloznov/voice-ledger/internal/api"
	"github.com/dvloznov/voice-ledger/internal/autosave"
	"github.com/dvloznov/voice-ledger/internal/capture"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/export"
	"github.com/dvloznov/voice-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/metrics"
	"github.com/dvloznov/voice-ledger/internal/storage"
	"github.com/dvloznov/voice-ledger/internal/transcribe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options overrides parts of the assembly, mostly for tests and the CLI.
type Options struct {
	// Ephemeral keeps the ledger in memory regardless of storage.driver.
	Ephemeral bool
	// Store replaces the configured backend.
	Store storage.Store
	// Client replaces the configured AI backend.
	Client transcribe.Client
	// Opener replaces the system URL opener used by the email and drive
	// fallbacks.
	Opener export.URLOpener
	// Registry receives the metrics; a fresh one is created when nil.
	Registry *prometheus.Registry
}

// App owns every long-lived component.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Store    storage.Store
	Saver    *autosave.Saver
	Ledger   *ledger.Controller
	Client   transcribe.Client
	Jobs     *inmemory.Store
	Queue    *inmemory.Queue
	Pipeline *capture.Pipeline
	Sharer   *export.Sharer
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder

	bucket *export.BucketShare
	opener export.URLOpener
}

// New builds the components and loads the ledger. The job workers are not
// running until Start.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: opts.Registry}
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	a.Metrics = metrics.NewRecorder(a.Registry)

	var err error
	switch {
	case opts.Store != nil:
		a.Store = opts.Store
	case opts.Ephemeral:
		a.Store = storage.NewMemory()
	default:
		a.Store, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("app.New: open storage: %w", err)
		}
	}

	a.Saver = autosave.New(a.Store, autosave.Options{
		Window:   cfg.Storage.Debounce,
		Logger:   logger.Component(log, "autosave"),
		Observer: a.Metrics,
	})

	a.Ledger = ledger.New(a.Store, a.Saver, ledger.Options{Logger: logger.Component(log, "ledger")})
	if err := a.Ledger.Load(ctx); err != nil {
		a.closeStorage(ctx)
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Ledger.SetAIAvailable(cfg.AICredentialPresent())
	a.Metrics.WatchLedger(
		func() int { return len(a.Ledger.Snapshot().Transactions) },
		a.Ledger.AIAvailable,
	)

	a.Client = opts.Client
	if a.Client == nil {
		a.Client, err = transcribe.New(ctx, cfg.AI)
		if err != nil {
			a.closeStorage(ctx)
			return nil, fmt.Errorf("app.New: %w", err)
		}
	}
	if !cfg.AICredentialPresent() && opts.Client == nil {
		log.Warn().Msg("No AI API key configured - voice capture is disabled")
	}

	a.Jobs = inmemory.NewStore()
	a.Queue = inmemory.NewQueue(a.Jobs, inmemory.QueueOptions{
		BufferSize: cfg.Capture.QueueSize,
		Workers:    cfg.Capture.Workers,
		Logger:     logger.Component(log, "jobs"),
	})
	a.Pipeline = capture.New(a.Ledger, a.Client, capture.Options{
		Logger:    logger.Component(log, "capture"),
		Notifier:  capture.NewNotifier(cfg.Capture.NoticeDuration, nil),
		Publisher: a.Queue,
		Observer:  a.Metrics,
	})

	sharer, err := a.buildSharer(ctx, opts.Opener)
	if err != nil {
		a.closeStorage(ctx)
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Sharer = sharer
	return a, nil
}

// buildSharer orders the sinks: native share command, then bucket upload,
// then download plus email draft, which always works.
func (a *App) buildSharer(ctx context.Context, opener export.URLOpener) (*export.Sharer, error) {
	cfg := a.Config.Export
	if opener == nil {
		opener = export.SystemOpener{GOOS: runtime.GOOS}
	}
	a.opener = opener
	downloader := export.DirDownloader{Dir: cfg.DownloadDir}

	var sinks []export.ShareSink
	if len(cfg.ShareCommand) > 0 {
		sinks = append(sinks, &export.NativeShare{Command: cfg.ShareCommand})
	}
	if cfg.Bucket != "" {
		bucket, err := export.NewBucketShare(ctx, cfg.Bucket, cfg.BucketPrefix, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.bucket = bucket
		sinks = append(sinks, bucket)
	}
	sinks = append(sinks, &export.DownloadAndEmail{
		Downloader: downloader,
		Opener:     opener,
		To:         cfg.EmailTo,
		Subject:    cfg.EmailSubject,
		Delay:      cfg.EmailDelay,
		Logger:     logger.Component(a.Log, "export"),
	})

	return export.NewSharer(export.SharerOptions{
		Sinks:      sinks,
		Downloader: downloader,
		Opener:     opener,
		DriveURL:   cfg.DriveURL,
		Logger:     logger.Component(a.Log, "export"),
		Observer:   a.Metrics,
	}), nil
}

// Start launches the capture workers.
func (a *App) Start(ctx context.Context) error {
	if err := a.Queue.Start(ctx, a.Pipeline.HandleJob); err != nil {
		return fmt.Errorf("app.Start: %w", err)
	}
	return nil
}

// Handler returns the HTTP API including /metrics.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Ledger:   a.Ledger,
		Capture:  a.Pipeline,
		Sharer:   a.Sharer,
		Saver:    a.Saver,
		Jobs:     a.Jobs,
		Recorder: a.Metrics,
		Metrics:  promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		Logger:   logger.Component(a.Log, "api"),
	})
}

// Shutdown drains queued captures, flushes the pending save and closes the
// backends, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Queue.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop job queue: %w", err))
	}
	if a.bucket != nil {
		if err := a.bucket.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bucket client: %w", err))
		}
	}
	if err := a.closeStorage(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStorage(ctx context.Context) error {
	var errs []error
	if a.Saver != nil {
		if err := a.Saver.Close(ctx); err != nil && !errors.Is(err, autosave.ErrClosed) {
			errs = append(errs, fmt.Errorf("flush ledger: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
