// Package main boots the marketplace inventory core service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/alerts"
	"github.com/vendora/inventory-core/internal/bulk"
	"github.com/vendora/inventory-core/internal/config"
	httpapi "github.com/vendora/inventory-core/internal/http"
	"github.com/vendora/inventory-core/internal/ledger"
	"github.com/vendora/inventory-core/internal/obs"
	"github.com/vendora/inventory-core/internal/reservation"
	"github.com/vendora/inventory-core/internal/store"
	"github.com/vendora/inventory-core/internal/validation"
)

func main() {
	cfg := config.Load()
	obs.InitLogger()
	log := obs.Logger
	defer log.Sync()
	log.Info("service_starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.InitializeSchema(ctx); err != nil {
			log.Fatal("schema_init_failed", zap.Error(err))
		}
		log.Info("store_ready", zap.String("backend", "postgres"))
		st = pg
	} else {
		log.Info("store_ready", zap.String("backend", "memory"))
		st = store.NewMemory()
	}

	var notifier alerts.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kn := alerts.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kn.Close()
		log.Info("notifier_ready", zap.String("backend", "kafka"), zap.Strings("brokers", cfg.KafkaBrokers))
		notifier = kn
	} else {
		log.Info("notifier_ready", zap.String("backend", "log"))
		notifier = &alerts.LogNotifier{Log: log}
	}

	ldg := ledger.New(st, log)
	resv := reservation.NewManager(cfg, st, log)
	prefs := alerts.NewPrefsCache(st, log)
	validator := validation.NewEngine(st, prefs, nil, log)
	bulkEngine := bulk.NewEngine(cfg, ldg, log)
	dispatcher := alerts.NewDispatcher(st, prefs, notifier, log, cfg.AlertFromEmail)

	sweeper := reservation.NewSweeper(resv, log, cfg.SweepInterval, cfg.ExpirationWindow)
	sweeper.Start(ctx)

	app := httpapi.NewApp(cfg, ldg, resv, validator, bulkEngine, dispatcher, prefs)
	router := httpapi.NewRouter(app, log)

	go func() {
		log.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := router.Listen(cfg.HTTPAddr); err != nil {
			log.Error("http_server_error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	log.Info("shutdown_signal", zap.String("signal", s.String()))

	sweeper.Stop()

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := router.ShutdownWithContext(ctxSrv); err != nil {
		log.Error("http_shutdown_error", zap.Error(err))
	}
	log.Info("service_stopped")
}
