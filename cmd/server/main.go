// Command bellrock-server starts the Bellrock ingest API over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zidek-labs/bellrock/internal/aidcodec"
	"github.com/zidek-labs/bellrock/internal/celltower"
	"github.com/zidek-labs/bellrock/internal/config"
	"github.com/zidek-labs/bellrock/internal/httpapi"
	"github.com/zidek-labs/bellrock/internal/ingest"
	"github.com/zidek-labs/bellrock/internal/keyregistry"
	"github.com/zidek-labs/bellrock/internal/keyvault"
	"github.com/zidek-labs/bellrock/internal/migrate"
	"github.com/zidek-labs/bellrock/internal/repository/postgres"
	"github.com/zidek-labs/bellrock/internal/resolver"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.UpMain(ctx, cfg.MainDSN); err != nil {
		logger.Fatal("migrate up (main store)", zap.Error(err))
	}
	if err := migrate.UpKeyStore(ctx, cfg.KeyDSN); err != nil {
		logger.Fatal("migrate up (key store)", zap.Error(err))
	}

	mainDB, err := postgres.New(ctx, cfg.MainDSN)
	if err != nil {
		logger.Fatal("connect main store", zap.Error(err))
	}
	keyDB, err := postgres.New(ctx, cfg.KeyDSN)
	if err != nil {
		logger.Fatal("connect key store", zap.Error(err))
	}

	store := postgres.NewStore(mainDB, keyDB)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("store close", zap.Error(err))
		}
	}()

	kek := keyvault.DeriveMasterKEK([]byte(cfg.MasterKey), []byte("bellrock-key-store"))
	vault := keyvault.New(kek)

	keys := keyregistry.New(store.Keys(), vault)
	if err := keys.Warm(ctx); err != nil {
		logger.Fatal("warm key registry", zap.Error(err))
	}
	logger.Info("key registry warmed", zap.Int("keys", keys.Len()))

	cellTowers := celltower.NewEmpty()
	if cfg.CellTowerSnapshotPath != "" {
		cellTowers, err = celltower.Load(cfg.CellTowerSnapshotPath)
		if err != nil {
			logger.Fatal("load cell-tower snapshot", zap.Error(err))
		}
		logger.Info("cell-tower map loaded", zap.Int("entries", cellTowers.Len()))
	}

	codec := aidcodec.New()
	res := resolver.New(
		codec,
		keys,
		store.Peers(),
		store.Locations(),
		store.Observations(),
		logger,
		resolver.WithLRUCapacity(cfg.LRUCapacity),
		resolver.WithParallelThreshold(cfg.ParallelThreshold),
		resolver.WithWorkers(cfg.Workers),
	)

	locBuf := postgres.NewBufferedLocationWriter(postgres.NewLocationRepo(mainDB), cfg.CommitBufferSize)
	locBuf.Start(ctx, cfg.CommitInterval)
	defer locBuf.Stop()

	svc := ingest.New(store, keys, res, logger).WithLocationBuffer(locBuf).WithCellTowers(cellTowers)
	mux := httpapi.NewMux(svc, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
