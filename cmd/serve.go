package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Rizwank123/emergency_dispatch/internal/config"
	"github.com/Rizwank123/emergency_dispatch/internal/database"
	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/repository"
	"github.com/Rizwank123/emergency_dispatch/internal/service"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch workers, reading alerts as JSON lines from stdin",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	log.Info("Configuration loaded",
		"environment", cfg.AppEnvironment,
		"app_name", cfg.AppName,
		"config_file", cfg.ConfigFile,
		"store", cfg.StoreBackend,
		"workers", cfg.QueueWorkers,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := service.NewNotificationService(cfg, service.BuildTransports(ctx, cfg, log), store, m, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Metrics endpoint listening", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
		}
	}()

	svc.Start(ctx)
	go readAlerts(ctx, cmd.InOrStdin(), svc, log)

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Dispatcher stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func(), error) {
	if !cfg.UsePostgres() {
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		DSN:      cfg.GetDatabaseDSN(),
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	stats := db.Stats()
	log.Info("Database connection verified",
		"total_conns", stats["total_conns"],
		"idle_conns", stats["idle_conns"],
	)
	return repository.NewNotificationRepository(db.Pool(), log), db.Close, nil
}

// readAlerts feeds one alert per input line into the service until r is
// exhausted. Malformed lines are logged and skipped.
func readAlerts(ctx context.Context, r io.Reader, svc *service.NotificationService, log logger.Logger) {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var req alertRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			log.Warn("Invalid alert", "line", line, "error", err)
			continue
		}
		if err := submit(ctx, svc, req); err != nil {
			log.Warn("Alert rejected", "line", line, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("Failed to read alerts", "error", err)
	}
	log.Info("Alert input closed", "lines", line)
}

func submit(ctx context.Context, svc *service.NotificationService, req alertRequest) error {
	t, err := parseType(req.Type)
	if err != nil {
		return err
	}
	p, err := parsePriority(req.Priority)
	if err != nil {
		return err
	}
	users, err := req.users()
	if err != nil {
		return err
	}
	n, err := svc.Prepare(t, p, req.Message, req.Zone, req.Metadata)
	if err != nil {
		return err
	}
	return svc.Send(ctx, n, users...)
}
