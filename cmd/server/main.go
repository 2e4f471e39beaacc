package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"netinventory/internal/config"
	"netinventory/internal/handler"
	"netinventory/internal/hub"
	"netinventory/internal/logging"
	"netinventory/internal/metrics"
	"netinventory/internal/service"
	"netinventory/internal/storage"
	"netinventory/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if *configPath != "" {
		cfg, path, err = config.LoadFromPath(*configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if path == "" {
		path = "defaults"
	}
	log.WithField("config", path).Infof("Starting netinventory server: %s", cfg.Summary())

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Server stopped")
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	reg := metrics.NewRegistry()
	eventBus := service.NewEventBus()

	svc, err := service.New(ctx, store, eventBus,
		service.WithLogger(log),
		service.WithMetrics(reg),
		service.WithAutoSave(cfg.Storage.AutoSave),
		service.WithPolicy(service.Policy{
			LimitMB:        cfg.Policy.LimitMB,
			SuspendMinutes: cfg.Policy.SuspendMinutes,
		}),
	)
	if err != nil {
		return err
	}

	sseHub := hub.New(log, reg.EventSubscribers)
	sseHub.Attach(ctx, eventBus)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sseHub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		service.NewPolicyEnforcer(svc, cfg.Policy.Interval.Duration(), log).Run(ctx)
	}()

	if cfg.Storage.Watch {
		if cfg.Storage.Backend != config.BackendJSON {
			log.Warn("storage.watch only applies to the json backend, ignoring")
		} else {
			w := watcher.New(cfg.Storage.Path, svc, log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("File watcher stopped")
				}
			}()
		}
	}

	api := handler.NewAPI(handler.Routes{
		Inventory: handler.NewInventoryHandler(svc, log),
		Events:    sseHub,
		Metrics:   reg,
	}, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown error")
	}
	wg.Wait()

	if err := svc.Save(shutdownCtx); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}
