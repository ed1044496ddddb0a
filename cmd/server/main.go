package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/relaxcloud/whisperd/internal/api"
	"github.com/relaxcloud/whisperd/internal/config"
	"github.com/relaxcloud/whisperd/internal/extract"
	"github.com/relaxcloud/whisperd/internal/whisper"
)

func main() {
	port := flag.Int("port", 50051, "port to listen on")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	for engine, status := range extract.Probe() {
		log.Info("engine probe", "engine", engine, "status", status)
	}

	ocr := extract.NewOCREngine(cfg.Batch.OCR.Workers)
	registry := extract.NewRegistry(ocr)
	batch := whisper.NewBatchProcessor(cfg.Batch, extract.Workers(ocr), log)

	pool := whisper.NewEnginePool(cfg.TreePoolSize, cfg.AcquireTimeout, func() *whisper.Tree {
		return whisper.NewTree(registry, batch, log)
	})
	log.Info("engine pool initialized", "size", cfg.TreePoolSize, "acquire_timeout", cfg.AcquireTimeout)

	serializer, err := whisper.NewReplySerializer(cfg.OutputDir)
	if err != nil {
		log.Error("serializer setup failed", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(pool, batch, serializer, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(*port),
		Handler:      srv,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)

		ocr.Close()
	}()

	log.Info("starting whisperd", "port", *port, "max_workers", cfg.MaxWorkers)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
