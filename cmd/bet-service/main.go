package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	bhttp "github.com/radieske/settlement-engine/internal/bet-api/http"
	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/oddscache"
	"github.com/radieske/settlement-engine/internal/shared/cache"
	"github.com/radieske/settlement-engine/internal/shared/config"
	"github.com/radieske/settlement-engine/internal/shared/db"
	"github.com/radieske/settlement-engine/internal/shared/logger"
	"github.com/radieske/settlement-engine/internal/shared/metrics"
	"github.com/radieske/settlement-engine/internal/wager"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de odds escrito pelo reconciler)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// deps
	wagers := wager.NewPostgres(pg)
	fixtures := fixture.NewPostgres(pg)
	balances := ledger.NewPostgres(pg)
	odds := oddscache.NewRedisCache(rdb, 5*time.Minute)

	// HTTP público
	api := bhttp.NewServer(log, wagers, fixtures, balances, odds)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("bet-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
