package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kinjelom/server-monitor/alert"
	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/engine"
	"github.com/kinjelom/server-monitor/metrics"
	"github.com/kinjelom/server-monitor/notify"
	"github.com/kinjelom/server-monitor/store"
)

var ProgramVersion = "dev"

const ProgramName = "server-monitor"

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration YAML")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("cannot load --config=%s: %v", *configFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Global.Database)
	if err != nil {
		log.Fatalf("cannot open store (driver=%s): %v", cfg.Global.Database.Driver, err)
	}
	defer func() { _ = st.Close() }()

	reg := metrics.NewRegistry(ProgramName, ProgramVersion, cfg.Global.Database.HistoryWindow)
	alerts := alert.NewRegistry()
	dispatcher := notify.NewDispatcher(reg.RecordNotificationFailure)

	eng := engine.New(cfg, st, reg, alerts, dispatcher)

	go eng.Run(ctx)
	go uptimeLoop(ctx, reg)

	mux := http.NewServeMux()
	mux.Handle(cfg.Global.TelemetryPath, promhttp.Handler())

	server := &http.Server{Addr: cfg.Global.ListenAddress, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Global.DrainTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown: %v", err)
		}
	}()

	fmt.Printf("starting %s v%s on %s%s\n", ProgramName, ProgramVersion, cfg.Global.ListenAddress, cfg.Global.TelemetryPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("cannot start server: %v", err)
	}
}

// uptimeLoop refreshes the uptime_seconds gauge on a slow interval; the
// metrics registry itself only tracks the process start time.
func uptimeLoop(ctx context.Context, reg *metrics.Registry) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.RefreshUptime()
		}
	}
}
