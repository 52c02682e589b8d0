// GoDispatcher is a multi-threaded static file server built on a fixed-size
// worker pool.
//
// Startup sequence:
//  1. Load configuration (JSON/INI file or defaults) and apply flag overrides.
//  2. Initialise logger and metrics.
//  3. Start the worker pool and the periodic metrics report.
//  4. Start the admin dashboard (optional).
//  5. Accept connections, handing each one to the pool as a job.
//  6. On SIGINT/SIGTERM or after max_connections connections, stop
//     accepting, let the pool serve every accepted connection, then exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firasghr/GoDispatcher/config"
	"github.com/firasghr/GoDispatcher/dashboard"
	"github.com/firasghr/GoDispatcher/logger"
	"github.com/firasghr/GoDispatcher/metrics"
	"github.com/firasghr/GoDispatcher/scheduler"
	"github.com/firasghr/GoDispatcher/server"
	"github.com/firasghr/GoDispatcher/worker"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────────
	configFile := flag.String("config", "", "Path to JSON or INI config file (optional; uses defaults if omitted)")
	dashboardAddr := flag.String("dashboard", "", "Address for the admin dashboard (overrides config; \"off\" disables it)")
	poolSize := flag.Int("pool-size", 0, "Number of worker goroutines (overrides config)")
	flag.Parse()

	// ── Configuration ──────────────────────────────────────────────────────
	log := logger.New(logger.LevelInfo)
	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			log.Errorf("failed to load config from %q: %v", *configFile, err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	if *poolSize != 0 {
		cfg.PoolSize = *poolSize
	}
	switch *dashboardAddr {
	case "":
	case "off":
		cfg.DashboardAddr = ""
	default:
		cfg.DashboardAddr = *dashboardAddr
	}

	// ── Logger ─────────────────────────────────────────────────────────────
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.SetLevel(level)
	log.SetReportCaller(cfg.LogReportCaller)
	if *configFile != "" {
		log.Infof("configuration loaded from %q", *configFile)
	} else {
		log.Info("using default configuration")
	}

	// ── Metrics ────────────────────────────────────────────────────────────
	m := metrics.NewMetrics()

	// ── Worker pool ────────────────────────────────────────────────────────
	pool, err := worker.NewThreadPool(cfg.PoolSize,
		worker.WithLogger(log),
		worker.WithRecorder(m),
	)
	if err != nil {
		log.Fatalf("cannot create thread pool: %v", err)
	}

	// ── Metrics report ─────────────────────────────────────────────────────
	var sc *scheduler.Scheduler
	if iv := time.Duration(cfg.ReportInterval); iv > 0 {
		if sc, err = scheduler.NewScheduler(pool, m, log, iv); err != nil {
			log.Fatalf("%v", err)
		}
		sc.Start()
	}

	// ── Dashboard ──────────────────────────────────────────────────────────
	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(m, cfg, pool, log)
		if err := dash.Start(cfg.DashboardAddr); err != nil {
			log.Errorf("dashboard disabled: %v", err)
			dash = nil
		}
	}

	// ── File server ────────────────────────────────────────────────────────
	srv := server.New(cfg, pool, log, m)
	if err := srv.Listen(); err != nil {
		_ = pool.Shutdown()
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Returning (for any reason) cancels gctx, which stops the waiter below.
		defer stop()
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("server: %v", err)
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────
	log.Info("Shutting down.")
	if sc != nil {
		sc.Stop()
	}
	if err := pool.Shutdown(); err != nil {
		log.Errorf("pool shutdown: %v", err)
	}
	if dash != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dash.Shutdown(shutdownCtx); err != nil {
			log.Errorf("%v", err)
		}
		cancel()
	}

	total, success, failed := m.Snapshot()
	log.Infof("final metrics – total: %d | success: %d | failed: %d | rps: %.1f",
		total, success, failed, m.RequestsPerSecond())
}
