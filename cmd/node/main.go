package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/uhyunpark/sigbook/params"
	"github.com/uhyunpark/sigbook/pkg/api"
	"github.com/uhyunpark/sigbook/pkg/pipeline"
	"github.com/uhyunpark/sigbook/pkg/storage"
	"github.com/uhyunpark/sigbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and rotating file)
	logger, err := util.NewLoggerWithFile(cfg.Log)
	if err != nil {
		// Fall back to console only
		log.Printf("file logger unavailable (%v), logging to stdout", err)
		if logger, err = util.NewLogger(); err != nil {
			log.Fatalf("logger: %v", err)
		}
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "verbose", cfg.Log.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	store, err := storage.Open(ctx, cfg.Store, sugar)
	if err != nil {
		sugar.Fatalw("store_open_failed", "backend", cfg.Store.Backend, "err", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			sugar.Warnw("store_close_failed", "err", err)
		}
	}()

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Store.JournalFile != "" {
		fj, err := storage.NewFileJournal(cfg.Store.JournalFile, util.RealClock{})
		if err != nil {
			// Continue without the journal
			sugar.Warnw("journal_open_failed", "path", cfg.Store.JournalFile, "err", err)
		} else {
			journal = fj
			sugar.Infow("journal_opened", "path", cfg.Store.JournalFile)
		}
	}
	defer journal.Close()

	// ---- Metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ---- Pipeline + API ----
	hub := api.NewHub(sugar)
	p := pipeline.New(store, sugar,
		pipeline.WithJournal(journal),
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
		// Hook pipeline to API server: push accepted orders to websocket subscribers
		pipeline.WithOrderHook(hub.BroadcastOrder),
	)
	apiServer := api.NewServer(cfg.API, p, store, hub, reg, sugar)

	sugar.Infow("node_starting",
		"addr", cfg.API.Addr,
		"backend", cfg.Store.Backend,
		"cors_origins", cfg.API.CORSOrigins)

	if err := apiServer.Run(ctx); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
		return
	}
	sugar.Info("node_stopped")
}
