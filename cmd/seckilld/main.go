package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flashmart/seckill/internal/auth"
	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/httpapi"
	"github.com/flashmart/seckill/internal/idgen"
	"github.com/flashmart/seckill/internal/logx"
	"github.com/flashmart/seckill/internal/redisx"
	"github.com/flashmart/seckill/internal/seckill"
	"github.com/flashmart/seckill/internal/shop"
	"github.com/flashmart/seckill/internal/store"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Info().Msg("starting seckilld")

	cfg := DefaultConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer db.Close()

	rdb, err := redisx.Dial([]string{cfg.RedisAddr})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	logger := logx.Zerolog(log.Logger)

	cacheClient, err := cache.New(rdb, cache.Options{
		Strategy: cfg.Strategy(),
		Logger:   logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build cache client")
	}
	defer cacheClient.Close()

	shops := shop.NewService(cacheClient, db, cfg.ShopCacheTTL)
	authSvc := auth.NewService(rdb, db, logger)
	coord := seckill.New(rdb, idgen.New(rdb), db, seckill.Config{
		Consumer: cfg.ConsumerName,
		Logger:   logger,
	})

	api := httpapi.NewServer(shops, coord, authSvc, db, log.Logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("seckilld failed")
	}
	log.Info().Msg("shutdown complete")
}
