package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/api"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/billing"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/config"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/db"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/notify"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/observability/metrics"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/redisclient"
	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/scheduling"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisAgendaLocker(rdb, cfg.LockTTL)
	cascader := billing.NewCascader(
		billing.NewPgCatalog(pgPool),
		billing.NewPgRepository(pgPool),
		cfg.DefaultCurrency,
	)

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	}

	m := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)
	svc := scheduling.NewService(repo, locker, cascader, notifier, m)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
