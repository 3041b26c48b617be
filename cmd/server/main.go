package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vishal-43/smart-attendece-system/internal/cache"
	"github.com/Vishal-43/smart-attendece-system/internal/codes"
	"github.com/Vishal-43/smart-attendece-system/internal/config"
	"github.com/Vishal-43/smart-attendece-system/internal/db"
	internalhttp "github.com/Vishal-43/smart-attendece-system/internal/http"
	"github.com/Vishal-43/smart-attendece-system/internal/jobs"
	"github.com/Vishal-43/smart-attendece-system/internal/publish"
	"github.com/Vishal-43/smart-attendece-system/internal/ratelimit"
	"github.com/Vishal-43/smart-attendece-system/internal/validation"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	// Single-instance fallbacks when Redis is not configured. The memory
	// implementations do not coordinate across replicas.
	var (
		limiter    ratelimit.Limiter
		fenceCache cache.GeoFenceCache
		publisher  publish.Publisher
	)
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)
		fenceCache = cache.NewRedisCache(redisClient)
		publisher = publish.NewRedisPublisher(redisClient, cfg.PublishTimeout)
	} else {
		log.Printf("redis not configured, using in-process limiter, cache and publisher")
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		fenceCache = cache.NewMemoryCache()
		publisher = publish.NewMemoryPublisher()
	}

	validator := validation.NewValidator(limiter, fenceCache, store.Queries, publisher, cfg.GeoFenceCacheTTL)
	codeService := codes.NewService(store, cfg.QRCodeTTL, cfg.OTPCodeTTL)

	jobs.StartCodeRotationJob(ctx, cfg, codeService)

	server := internalhttp.NewServer(cfg, validator, codeService)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("presence http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
