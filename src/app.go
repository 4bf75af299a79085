package main

import (
	"fmt"
	"log/slog"

	"github.com/contre95/dropsort/src/features/classifying"
	"github.com/contre95/dropsort/src/features/config"
	"github.com/contre95/dropsort/src/features/hosting"
	"github.com/contre95/dropsort/src/features/jobs"
	"github.com/contre95/dropsort/src/features/metrics"
	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/contre95/dropsort/src/features/watching"
	"github.com/contre95/dropsort/src/infra/files"
	"github.com/contre95/dropsort/src/infra/history"
	"github.com/contre95/dropsort/src/infra/ocr"
	"github.com/contre95/dropsort/src/infra/sniff"
	"github.com/contre95/dropsort/src/infra/watcher"
	"github.com/contre95/dropsort/src/triage"
)

// application holds every wired service for one run of the binary.
type application struct {
	config      *config.Manager
	root        string
	rules       *triage.Rules
	engine      *classifying.Engine
	dispatcher  *reporting.Dispatcher
	collector   *metrics.Collector
	jobs        *jobs.Service
	classifying *classifying.Service
	watching    *watching.Service
	telegram    *hosting.TelegramBot
}

// newApplication wires the services. Results go to the log, the history,
// the metrics collector and any extra sinks.
func newApplication(cfgManager *config.Manager, sinks ...triage.Sink) (*application, error) {
	cfg := cfgManager.Get()
	root, err := cfgManager.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	lockDir, err := cfgManager.LockDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lock directory: %w", err)
	}
	rules := cfgManager.Rules()

	// Create the reporting pipeline
	collector := metrics.NewCollector()
	resultHistory := history.NewInMemoryHistory(cfg.Reporting.HistorySize)
	sinks = append([]triage.Sink{
		reporting.NewLogSink(slog.Default()),
		reporting.NewHistorySink(resultHistory),
		collector,
	}, sinks...)
	dispatcher := reporting.NewDispatcher(cfg.Reporting.QueueSize, sinks...)
	collector.ObserveDropped(dispatcher.Dropped)

	// Create the classification engine
	resolver := classifying.NewResolver(rules, sniff.NewMimeSniffer(), newTextExtractor(cfg.OCR))
	engine := classifying.NewEngine(rules, resolver, files.NewCollisionSafeMover(root, lockDir))

	// Create the job service and register the sweep task
	jobService := jobs.NewService(&cfg.Jobs)
	classifyingService := classifying.NewService(engine, root, jobService, dispatcher, resultHistory)
	jobService.RegisterTask(classifying.SweepJobType, classifying.NewSweepTask(classifyingService))

	// Create the watching service
	sourceFactory := func() (watching.EventSource, error) {
		return watcher.NewFSNotifySource()
	}
	watchingService := watching.NewService(root, sourceFactory, engine, rules, dispatcher, watching.Options{
		Retries:       cfg.Watcher.Retries,
		Interval:      cfg.Watcher.Interval,
		TrackExisting: cfg.Watcher.SweepOnStart,
		LockDir:       lockDir,
	})
	collector.ObserveWatcher(watchingService.Status)

	app := &application{
		config:      cfgManager,
		root:        root,
		rules:       rules,
		engine:      engine,
		dispatcher:  dispatcher,
		collector:   collector,
		jobs:        jobService,
		classifying: classifyingService,
		watching:    watchingService,
	}

	// Create and start the Telegram bot if enabled
	if cfg.Telegram.Enabled {
		bot, err := hosting.NewTelegramBot(cfg.Telegram, watchingService, classifyingService)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
		} else {
			dispatcher.AddSink(bot)
			go bot.Start()
			app.telegram = bot
		}
	}
	return app, nil
}

// newTextExtractor returns the OCR extractor, or nil when OCR is off or tesseract is missing.
func newTextExtractor(cfg config.OCR) triage.TextExtractor {
	if !cfg.Enabled {
		return nil
	}
	extractor, err := ocr.NewTesseractExtractor(ocr.Options{
		Binary:    cfg.Binary,
		Languages: cfg.Languages,
		MinWidth:  cfg.MinWidth,
		Timeout:   cfg.Timeout,
		MaxPixels: cfg.MaxPixels,
	})
	if err != nil {
		slog.Warn("OCR disabled, images are sorted by type only", "error", err)
		return nil
	}
	return extractor
}

// close stops the watcher and the bot, then flushes pending reports.
func (a *application) close() {
	_ = a.watching.Stop()
	if a.telegram != nil {
		a.telegram.Stop()
	}
	a.dispatcher.Close()
}
