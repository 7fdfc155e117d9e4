package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courseoj/internal/access"
	catalogcontroller "courseoj/internal/catalog/controller"
	"courseoj/internal/catalog/repository"
	catalogservice "courseoj/internal/catalog/service"
	"courseoj/internal/common/cache"
	"courseoj/internal/common/db"
	commonmw "courseoj/internal/common/http/middleware"
	"courseoj/internal/common/mq"
	judgecontroller "courseoj/internal/judge/controller"
	"courseoj/internal/judge/executor"
	judgeservice "courseoj/internal/judge/service"
	"courseoj/pkg/utils/logger"
)

const defaultConfigPath = "configs/server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	problemRepo := repository.NewProblemRepository(mysqlDB, redisCache)
	testCaseRepo := repository.NewTestCaseRepository(mysqlDB)
	progressRepo := repository.NewProgressRepository(mysqlDB)

	executorClient := executor.NewHTTPClient(executor.Config{
		BaseURL:         appCfg.Executor.BaseURL,
		AccessToken:     appCfg.Executor.AccessToken,
		TransportMargin: appCfg.Executor.TransportMargin,
	})

	var mqClient mq.MessageQueue
	if appCfg.Reverify.IsEnabled() {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
	}

	verifierService := catalogservice.NewVerifierService(problemRepo, testCaseRepo, executorClient)

	var reverifyPublisher *catalogservice.ProblemReverifyPublisher
	if mqClient != nil {
		reverifyPublisher = catalogservice.NewProblemReverifyPublisher(mqClient, appCfg.Reverify.Topic)
		reverifyConsumer := catalogservice.NewProblemReverifyConsumer(mqClient, verifierService, redisCache)
		if err := reverifyConsumer.Subscribe(context.Background(), appCfg.Reverify.Topic, appCfg.Reverify.ConsumerGroup, appCfg.Reverify.toSubscribeOptions()); err != nil {
			logger.Error(context.Background(), "subscribe reverify events failed", zap.Error(err))
			return
		}
	}

	problemService := catalogservice.NewProblemService(mysqlDB, problemRepo, testCaseRepo, verifierService, reverifyPublisher)
	searchService := catalogservice.NewSearchService(problemRepo, progressRepo)

	judgeService, err := judgeservice.NewService(judgeservice.Config{
		Problems:        problemRepo,
		TestCases:       testCaseRepo,
		Progress:        progressRepo,
		Executor:        executorClient,
		MaxCodeSize:     appCfg.Judge.MaxCodeSize,
		CaseConcurrency: appCfg.Judge.CaseConcurrency,
		WorkerPoolSize:  appCfg.Judge.WorkerPoolSize,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, problemService, verifierService, searchService, judgeService)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
}

func buildHTTPServer(
	appCfg *AppConfig,
	problemService *catalogservice.ProblemService,
	verifierService *catalogservice.VerifierService,
	searchService *catalogservice.SearchService,
	judgeService *judgeservice.Service,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(commonmw.AuthMiddleware(appCfg.Auth.JWTSecret))

	problemController := catalogcontroller.NewProblemController(problemService)
	testCaseController := catalogcontroller.NewTestCaseController(verifierService)
	searchController := catalogcontroller.NewSearchController(searchService)
	submitController := judgecontroller.NewJudgeController(judgeService)

	problems := api.Group("/problems")
	problems.GET("", searchController.Search)
	problems.GET("/:id", problemController.Get)
	problems.POST("/:id/submissions", submitController.Submit)

	manage := problems.Group("")
	manage.Use(commonmw.RequireCapability(access.CapManageProblems))
	manage.POST("", problemController.Create)
	manage.PATCH("/:id", problemController.Update)
	manage.DELETE("/:id", problemController.Delete)
	manage.POST("/:id/review", problemController.SubmitForReview)
	manage.POST("/:id/archive", problemController.Archive)
	manage.POST("/:id/reopen", problemController.Reopen)
	manage.POST("/:id/test-cases", testCaseController.Create)

	review := problems.Group("")
	review.Use(commonmw.RequireCapability(access.CapReviewProblems))
	review.POST("/:id/publish", problemController.Publish)
	review.POST("/:id/reject", problemController.Reject)

	testCases := api.Group("/test-cases")
	testCases.Use(commonmw.RequireCapability(access.CapManageProblems))
	testCases.PATCH("/:id", testCaseController.Update)
	testCases.DELETE("/:id", testCaseController.Delete)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(c.Request.Context(), "http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
