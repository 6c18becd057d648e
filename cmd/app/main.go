// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dwg-boq-service/internal/boq"
	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/infra/convert"
	pg "dwg-boq-service/internal/infra/db/postgres"
	"dwg-boq-service/internal/infra/logging"
	"dwg-boq-service/internal/infra/metrics"
	red "dwg-boq-service/internal/infra/redis"
	"dwg-boq-service/internal/infra/storage"
	"dwg-boq-service/internal/infra/web"
	"dwg-boq-service/internal/infra/worker"
	"dwg-boq-service/internal/pipeline"
	"dwg-boq-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	queue := red.NewJobQueue(redisClient, cfg.Redis.QueueKey)
	statusCache := red.NewStatusCache(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Storage & catalog ----
	store, err := storage.NewJobStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	catalog, err := boq.LoadCatalog(cfg.Storage.Catalog)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.Catalog).Msg("catalog")
	}
	if len(catalog) == 0 {
		logger.Warn().Msg("catalog empty; all blocks will resolve from attributes only")
	}

	// ---- Converter & pipeline ----
	converter, err := convert.NewExternalConverter(cfg.Converter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("converter")
	}
	pipe := pipeline.New(converter, store, catalog, logger)

	// ---- Use cases ----
	jobUC := usecase.NewJobUseCase(jobRepo, queue, statusCache, store, cfg.Worker.MaxRetries, logger)
	statsUC := usecase.NewStatsUseCase(jobRepo, queue)

	// ---- Workers ----
	pool2 := worker.NewPool(cfg.Worker.Count, logger)
	pool2.Start(ctx)
	lockTTL := cfg.Converter.Timeout + time.Minute
	processor := worker.NewJobProcessor(jobRepo, queue, statusCache, locker, pipe, cfg.Worker, lockTTL, logger)
	go processor.Start(ctx, pool2)
	sweeper := worker.NewSweeper(jobRepo, queue, statusCache, cfg.Worker, logger)
	go sweeper.Start(ctx)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := web.NewServer(jobUC, statsUC, auth, cfg.Admin.APIKey, cfg.Server.MaxUploadBytes, logger)
	router := srv.Router()
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
	pool2.Stop()
}
