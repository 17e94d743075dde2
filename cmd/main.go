/**
 * @description
 * This is the main entry point for the impact-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the rate limiter backend, the event producer, repositories, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Optional distributed rate-limiter backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/indexclient, pkg/rabbitmq: Outbound collaborators.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/enturk/impact-service/internal/api"
	"github.com/enturk/impact-service/internal/app"
	"github.com/enturk/impact-service/internal/config"
	"github.com/enturk/impact-service/internal/store"
	"github.com/enturk/impact-service/pkg/indexclient"
	"github.com/enturk/impact-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}
	if cfg.AdminAPIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"admin api key not configured; admin endpoints are open\"")
	}

	log.Printf("level=info component=bootstrap msg=\"starting impact-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for post-commit contribution events.
	var producer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; contribution events disabled\"")
		producer = &rabbitmq.EventProducerFallback{}
	} else if eventProducer, prodErr := rabbitmq.NewEventProducer(cfg.RabbitMQURL); prodErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the best-effort indexing client.
	var indexer *indexclient.Client
	if strings.TrimSpace(cfg.IndexerBaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"indexer not configured; project indexing disabled\"")
	} else {
		indexer = indexclient.NewClient(cfg.IndexerBaseURL, time.Duration(cfg.IndexerTimeoutSeconds)*time.Second)
	}

	// Pick the rate limiter backend: Redis when configured and reachable, the
	// bounded in-process window otherwise.
	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()

	var limiter app.RateLimiter
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-process limiter\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-process limiter\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis rate limiter connected\"")
			}
		}
	}
	if limiter == nil {
		memoryLimiter := app.NewMemoryRateLimiter(cfg.RateLimiterMaxEntries)
		memoryLimiter.StartSweeper(sweeperCtx, time.Duration(cfg.RateLimiterSweepSeconds)*time.Second)
		limiter = memoryLimiter
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	impactService := app.NewService(repository, producer, indexer, cfg.ProjectListMaxLimit)

	// Initialize the API handlers and the route tree.
	handlers := api.NewImpactHandlers(impactService)
	router := api.Routes(handlers, api.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
		ManagerAuth: api.ManagerAuthConfig{
			JWKSURL:       cfg.ManagerJWKSURL,
			RoleClaims:    config.CSVList(cfg.ManagerRoleClaims),
			AllowedRoles:  config.CSVList(cfg.ManagerAllowedRoles),
			AllowedEmails: config.CSVList(cfg.ManagerAllowedEmails),
		},
		Limiter:                 limiter,
		ProjectCreateLimit:      cfg.ProjectCreateRateLimit,
		ProjectCreateWindow:     time.Duration(cfg.ProjectCreateWindowSeconds) * time.Second,
		ApplicationCreateLimit:  cfg.ApplicationRateLimit,
		ApplicationCreateWindow: time.Duration(cfg.ApplicationWindowSeconds) * time.Second,
	})

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
