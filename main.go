// main.go
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	"github.com/controlcoreio/control-core-012025-sub001/cache"
	"github.com/controlcoreio/control-core-012025-sub001/config"
	"github.com/controlcoreio/control-core-012025-sub001/connector"
	"github.com/controlcoreio/control-core-012025-sub001/controller"
	"github.com/controlcoreio/control-core-012025-sub001/dao"
	"github.com/controlcoreio/control-core-012025-sub001/db"
	"github.com/controlcoreio/control-core-012025-sub001/health"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/metrics"
	"github.com/controlcoreio/control-core-012025-sub001/registry"
	"github.com/controlcoreio/control-core-012025-sub001/resolver"
	"github.com/controlcoreio/control-core-012025-sub001/router"
	"github.com/controlcoreio/control-core-012025-sub001/scheduler"
	"github.com/controlcoreio/control-core-012025-sub001/service"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger(cfg.Log.Dir, cfg.Log.Level)
	defer logger.Sync()

	metrics.InitializeCollectors(prometheus.DefaultRegisterer)

	// Engine core
	reg := registry.New()
	connectors := connector.NewRegistry()
	connector.RegisterDefaults(connectors)
	pool := connector.NewPool(connectors, connector.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	})
	reg.AddListener(pool)

	attrMapper := mapper.New(
		mapper.WithMaxSteps(cfg.Mapper.CustomMaxSteps),
		mapper.WithTimeout(cfg.Mapper.CustomTimeout),
	)
	sched := scheduler.New()
	notificationService := util.NewNotificationService(cfg.Notifications.WebhookURL)

	cacheOpts := []cache.Option{cache.WithNotifier(notificationService)}
	if cfg.Redis.Enabled {
		if err := db.InitRedis(cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer db.CloseRedis()

		key, err := base64.StdEncoding.DecodeString(cfg.Redis.EncryptionKey)
		if err != nil {
			logger.Fatal("Invalid redis.encryptionKey, expected base64", zap.Error(err))
		}
		bagStore, err := db.NewBagStore(db.RedisClient, key, cfg.Redis.KeyPrefix)
		if err != nil {
			logger.Fatal("Failed to create shared cache store", zap.Error(err))
		}
		cacheOpts = append(cacheOpts, cache.WithSharedStore(bagStore))
	}

	cacheManager, err := cache.NewManager(cache.Config{
		MaxEntries:      cfg.Cache.MaxEntries,
		MaxBytes:        cfg.Cache.MaxBytes,
		GracePeriod:     cfg.Cache.GracePeriod,
		FetchTimeout:    cfg.Cache.FetchTimeout,
		SensitiveMaxTTL: cfg.Cache.SensitiveMaxTTL,
	}, reg, pool, attrMapper, sched, cacheOpts...)
	if err != nil {
		logger.Fatal("Failed to create attribute cache", zap.Error(err))
	}
	reg.AddListener(cacheManager)

	attrResolver := resolver.New(reg, cacheManager, resolver.Config{
		DefaultDeadline: cfg.Resolver.DefaultDeadline,
		MaxDeadline:     cfg.Resolver.MaxDeadline,
	})
	healthService := health.NewService(connectors, reg, cfg.Connectors.TestTimeout)

	// Configuration store
	var store dao.ConfigStore = dao.NewMemoryStore()
	if cfg.Store.Type == "neo4j" {
		if err := db.InitNeo4j(cfg.Neo4j); err != nil {
			logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
		}
		defer db.CloseNeo4j()

		connectionDAO, err := dao.NewConnectionDAO(db.Neo4jDriver)
		if err != nil {
			logger.Fatal("Failed to initialize connection store", zap.Error(err))
		}
		store = connectionDAO
	}

	// Audit
	var auditRepository audit.Repository = audit.DiscardRepository{}
	if cfg.Audit.Enabled {
		esRepository, err := audit.NewElasticsearchRepository(cfg.Elasticsearch.URL, cfg.Audit.Index)
		if err != nil {
			logger.Fatal("Failed to initialize audit repository", zap.Error(err))
		}
		auditRepository = esRepository
	}
	auditService := audit.NewService(auditRepository)

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	validationUtil := util.NewValidationUtil(connectors)
	services, err := service.InitializeServices(service.Engine{
		Registry: reg,
		Mapper:   attrMapper,
		Health:   healthService,
		Resolver: attrResolver,
		Cache:    cacheManager,
	}, store, auditService, validationUtil, notificationService, eventBus)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	report, err := service.LoadConfiguration(ctx, store, reg, attrMapper, validationUtil)
	if err != nil {
		logger.Fatal("Failed to load stored configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.Int("connections", report.Connections),
		zap.Int("mappings", report.Mappings),
		zap.Strings("skipped", report.Skipped))

	if err := cacheManager.StartJanitor(cfg.Cache.SweepSchedule); err != nil {
		logger.Fatal("Failed to schedule cache sweep", zap.Error(err))
	}
	sched.Start()

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	controllers := controller.InitializeControllers(services)
	engine := router.SetupRouter(controllers, router.OptionsFromConfig(cfg))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	sched.Stop(5 * time.Second)
	pool.Close()
	eventBus.Wait()
	notificationService.Flush()

	logger.Info("Server exiting")
}
