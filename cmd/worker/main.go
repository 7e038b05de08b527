// The worker drains the Redis traffic buckets into the nodes' daily byte
// counters. It runs beside the broker so quota accounting survives a broker
// restart without losing buffered deltas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/worldvpn/broker/internal/infrastructure/cache"
	"github.com/worldvpn/broker/internal/infrastructure/config"
	"github.com/worldvpn/broker/internal/infrastructure/database"
	"github.com/worldvpn/broker/internal/infrastructure/repository"
	"github.com/worldvpn/broker/internal/shared/logger"
)

const flushInterval = 5 * time.Minute

func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting traffic flush worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	nodeRepo := repository.NewNodeRepository(database.Get(), log)
	accumulator := cache.NewRedisTrafficAccumulator(redisClient, nodeRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	log.Infow("running initial traffic flush")
	if err := accumulator.Flush(ctx); err != nil {
		log.Errorw("initial traffic flush failed", "error", err)
	}

	log.Infow("traffic flush worker started", "interval", flushInterval)

	for {
		select {
		case <-ticker.C:
			if err := accumulator.Flush(ctx); err != nil {
				log.Errorw("traffic flush failed", "error", err)
			}
		case sig := <-sigChan:
			log.Infow("shutdown signal received, running final flush", "signal", sig)

			// The final flush gets its own deadline; the parent context is
			// about to be cancelled.
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := accumulator.Flush(flushCtx); err != nil {
				log.Errorw("final traffic flush failed", "error", err)
			}
			flushCancel()

			log.Infow("traffic flush worker stopped")
			return
		}
	}
}
