package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/config"
	"github.com/formledger/formledger-backend/internal/handler"
	"github.com/formledger/formledger-backend/internal/jobs"
	"github.com/formledger/formledger-backend/internal/migration"
	"github.com/formledger/formledger-backend/internal/repository"
	"github.com/formledger/formledger-backend/internal/routes"
	"github.com/formledger/formledger-backend/internal/scheduler"
	"github.com/formledger/formledger-backend/internal/service"
	pkgcache "github.com/formledger/formledger-backend/pkg/cache"
	pkglogger "github.com/formledger/formledger-backend/pkg/logger"
	pkgredis "github.com/formledger/formledger-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Formledger Backend API
// @version         1.0
// @description     Versioned form-driven order backend: immutable version ledger, WIP purge job, schema registry.
//
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	zlog := pkglogger.GetLogger()
	zlog.Info().Str("env", env).Strs("dotenv", dotenvFiles).Msg("starting")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	zlog.Info().Msg("connected to MySQL")

	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		zlog.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		redisClient = nil
	} else {
		zlog.Info().Msg("connected to Redis")
	}

	cacheService := pkgcache.NewService(redisClient)

	// Repositories and services
	versionRepo := repository.NewVersionRepository(db)
	schemaRepo := repository.NewSchemaRepository(db)
	versionService := service.NewVersionService(versionRepo, schemaRepo)
	schemaService := service.NewSchemaService(schemaRepo, cacheService)

	// Purge engine. The run lock is a Redis lease when Redis is up, so runs
	// stay single-flight across instances; otherwise an in-process lock.
	var runLock jobs.RunLock
	if redisClient != nil {
		runLock = jobs.NewRedisRunLock(redisClient, cfg.Purge.LockTTL.Std())
	} else {
		runLock = jobs.NewLocalRunLock()
	}
	purgeEngine := jobs.NewPurgeEngine(versionRepo, runLock)

	sched := scheduler.New(pkglogger.WithComponent("scheduler"))
	if cfg.Purge.Enabled {
		sched.Register("wip-purge", cfg.Purge.Interval.Std(), func() error {
			_, err := purgeEngine.Run(context.Background())
			if errors.Is(err, common.ErrPurgeRunning) {
				// A manual run is in flight; the next tick tries again.
				return nil
			}
			return err
		})
	}
	sched.Start()

	if env != "local" && env != "development" && env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		ExposeHeaders:    []string{"X-Cache"},
		MaxAge:           86400,
	}))

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "formledger-backend",
			"time":    time.Now().Unix(),
		})
	})

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	versionHandler := handler.NewVersionHandler(versionService)
	schemaHandler := handler.NewSchemaHandler(schemaService)
	adminHandler := handler.NewAdminHandler(purgeEngine, sched)
	routes.Setup(router, versionHandler, schemaHandler, adminHandler, redisClient, cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}

// initDB opens the MySQL connection through gorm.
func initDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
