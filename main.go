package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"campaign_workflow/config"
	controllers "campaign_workflow/controllers/campaign"
	routes "campaign_workflow/routers/campaign"
	"campaign_workflow/services/versionstore"
	"campaign_workflow/services/workflow"
	"campaign_workflow/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	maxHeaderBytes  = 1 << 20 // 1MB
	maxBodyBytes    = 10 << 20
	shutdownTimeout = 30 * time.Second
)

// dependencies holds the optional infrastructure the server was started with.
type dependencies struct {
	mongoClient *mongo.Client
	redisClient *redis.Client
	publisher   *utils.ExchangePublisher
}

func initializeServer(service *workflow.Service, metrics *utils.Metrics, registry *prometheus.Registry, deps *dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-Requested-With",
		controllers.HeaderTenantID,
		controllers.HeaderUserID,
		controllers.HeaderIdempotencyKey,
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(gin.Recovery())
	router.Use(controllers.RequestMetrics(metrics))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(corsConfig))

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	})

	routes.MapCampaignRoutes(router, controllers.NewController(service))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Campaign Workflow service is running"})
	})
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{}
		healthy := true
		if deps.mongoClient != nil {
			if err := utils.PingMongo(c.Request.Context(), deps.mongoClient, 2*time.Second); err != nil {
				checks["mongo"] = err.Error()
				healthy = false
			} else {
				checks["mongo"] = "ok"
			}
		}
		if deps.redisClient != nil {
			if err := deps.redisClient.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = err.Error()
			} else {
				checks["redis"] = "ok"
			}
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
	})

	return router
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := utils.NewLogger(utils.LoggerConfig{})
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := utils.InitGlobalLogger(utils.LoggerConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("database", cfg.DatabaseName).
		Str("port", cfg.ServerPort).
		Msg("starting campaign workflow service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := utils.NewMetrics(registry)

	deps := &dependencies{}
	repo := buildRepository(ctx, cfg, logger, deps)

	opts := []workflow.Option{workflow.WithMetrics(metrics)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := utils.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		deps.redisClient = client
		redisClient = client
		go utils.MonitorRedis(ctx, client, 10*time.Second, utils.ComponentLogger(logger, "redis"))
	}
	opts = append(opts, sharedStateOptions(cfg, redisClient, metrics, logger)...)

	if cfg.RabbitMQURL != "" {
		publisher, err := utils.NewExchangePublisher(cfg.RabbitMQURL, cfg.EventsExchange, cfg.EventsSigningSecret, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize RabbitMQ")
		}
		deps.publisher = publisher
		opts = append(opts, workflow.WithEventPublisher(workflow.NewBrokerEvents(publisher)))
	} else {
		logger.Warn().Msg("RABBITMQ_URL not set: revision events are not published")
	}

	service := workflow.NewService(versionstore.NewStore(repo), logger, opts...)
	router := initializeServer(service, metrics, registry, deps)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        router,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("attempting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	closeDependencies(shutdownCtx, deps, logger)
	logger.Info().Msg("server exited")
}

// sharedStateOptions picks the idempotency guard and statistics cache. Without
// a Redis client both stay in process memory.
func sharedStateOptions(cfg *config.Config, client *redis.Client, metrics *utils.Metrics, logger zerolog.Logger) []workflow.Option {
	if client != nil {
		logger.Info().Msg("redis connected: idempotency keys and statistics cache enabled")
		return []workflow.Option{
			workflow.WithIdempotencyGuard(workflow.NewRedisIdempotencyGuard(client, cfg.IdempotencyTTL)),
			workflow.WithStatsCache(workflow.NewTieredStatsCache(client, cfg.StatsCacheTTL, metrics, logger)),
		}
	}
	if cfg.StoreDriver == config.StoreDriverMongo {
		logger.Warn().Msg("REDIS_URL not set: idempotency keys and statistics cache are local to this instance")
	}
	return []workflow.Option{
		workflow.WithIdempotencyGuard(workflow.NewMemoryIdempotencyGuard(cfg.IdempotencyTTL)),
		workflow.WithStatsCache(workflow.NewTieredStatsCache(nil, cfg.StatsCacheTTL, metrics, logger)),
	}
}

func buildRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger, deps *dependencies) versionstore.Repository {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory campaign store: data is lost on restart")
		return versionstore.NewMemoryRepository()
	}

	client, db, err := utils.InitMongo(ctx, cfg.MongoURI, cfg.DatabaseName, utils.ComponentLogger(logger, "mongo"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize MongoDB")
	}
	deps.mongoClient = client

	repo := versionstore.NewMongoRepository(db, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}
	return repo
}

func closeDependencies(ctx context.Context, deps *dependencies, logger zerolog.Logger) {
	if deps.publisher != nil {
		if err := deps.publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing RabbitMQ connection")
		}
	}
	if deps.redisClient != nil {
		if err := deps.redisClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing Redis client")
		}
	}
	if deps.mongoClient != nil {
		if err := deps.mongoClient.Disconnect(ctx); err != nil {
			logger.Warn().Err(err).Msg("error disconnecting MongoDB")
		}
	}
}
