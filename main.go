package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contract-guard/api/handler"
	"contract-guard/api/router"
	"contract-guard/config"
	"contract-guard/job"
	"contract-guard/logic/analysis"
	"contract-guard/logic/chat"
	"contract-guard/logic/extract"
	"contract-guard/logic/risk"
	"contract-guard/pkg/logger"
	"contract-guard/service"
	"contract-guard/storage/cache"
	"contract-guard/storage/es"
	"contract-guard/storage/memory"
	"contract-guard/storage/objstore"
	"contract-guard/storage/postgres"
	"contract-guard/types"
	"contract-guard/vars"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(vars.GetEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(&cfg.Log)

	// 1. 缓存
	artifactStore, templateStore, err := buildCacheStores(cfg.Cache)
	if err != nil {
		fatal("failed to initialize cache", err)
	}
	results := cache.NewResultCache(artifactStore, cfg.Cache.ArtifactTTL)
	templateCache := cache.NewTemplateCache(templateStore, cfg.Cache.TemplateTTL)

	// 2. 持久化存储，未配置 PG 时使用内存存储
	var (
		repo     service.Repository
		jobStore job.Store
	)
	if cfg.Postgres.Enabled() {
		db, err := postgres.InitDB(cfg.Postgres.DSN())
		if err != nil {
			fatal("failed to connect postgres", err)
		}
		pgRepo := postgres.NewAnalysisRepo(db)
		if err := pgRepo.SeedTemplates(ctx, service.DefaultTemplates()); err != nil {
			slog.Warn("seed templates failed", "error", err)
		}
		repo = pgRepo
		jobStore = postgres.NewJobRepo(db)
	} else {
		slog.Warn("postgres not configured, using in-memory storage")
		repo = memory.NewStore(service.DefaultTemplates())
		jobStore = job.NewMemoryStore()
	}

	// 3. 检索索引
	var (
		index    service.IssueIndexer
		issueIdx *es.IssueIndex
	)
	if len(cfg.Elasticsearch.Addresses) > 0 {
		issueIdx, err = es.NewIssueIndex(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index)
		if err != nil {
			fatal("failed to initialize elasticsearch", err)
		}
		index = issueIdx
	}

	// 4. 文件抽取
	var objects extract.ObjectFetcher
	var minioStore *objstore.MinioStore
	if cfg.Minio.Endpoint != "" {
		minioStore, err = objstore.NewMinioStore(objstore.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			fatal("failed to initialize minio", err)
		}
		objects = minioStore
	}
	extractor, err := extract.New(ctx, objects)
	if err != nil {
		fatal("failed to initialize extractor", err)
	}
	if cfg.Server.FileRoot != "" {
		if extractor, err = extractor.WithLocalRoot(cfg.Server.FileRoot); err != nil {
			fatal("invalid file root", err)
		}
	}

	// 5. LLM Model
	chatModel, err := chat.CreateChatModel(ctx, chat.Options{
		Provider:    cfg.Model.Provider,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		APIKey:      cfg.Model.APIKey,
		Timeout:     cfg.Model.Timeout,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		fatal("failed to initialize chat model", err)
	}

	// 6. 调度器与 Service
	scheduler := job.NewScheduler(jobStore, cfg.Scheduler.Retry, cfg.Scheduler.Workers)
	scorer := risk.NewScorer(risk.WithOverrides(cfg.Risk.Weights))
	executor := service.NewExecutor(analysis.NewAnalyzer(chatModel), scorer, cfg.Executor.Retry)
	orch := service.NewOrchestrator(results, executor, service.Options{
		Repo:             repo,
		Index:            index,
		Extractor:        extractor,
		Jobs:             scheduler,
		ExecutionTimeout: cfg.Executor.ExecutionTimeout,
	})
	fixes := service.NewFixApplicator(orch, results, scorer, repo, index)
	templates := service.NewTemplateService(templateCache, repo)

	monitor := job.NewMonitor(orch, scheduler, job.LogNotifier{}, job.Thresholds{
		MaxConsecutiveFailures: int64(cfg.Monitor.MaxConsecutiveFailures),
		MaxQueueDepth:          cfg.Monitor.MaxQueueDepth,
	})
	monitor.AddCheck("cache", results)
	monitor.AddCheck("repository", repo)
	if issueIdx != nil {
		monitor.AddCheck("search", issueIdx)
	}
	if minioStore != nil {
		monitor.AddCheck("object_store", minioStore)
	}

	deps := job.Deps{
		Analyzer: orch,
		Caches: map[string]job.Sweeper{
			vars.ArtifactCache: results,
			vars.TemplateCache: templateCache,
		},
		Repo:             repo,
		Monitor:          monitor,
		BatchConcurrency: cfg.Scheduler.BatchConcurrency,
		Retention:        cfg.Scheduler.AnalysisRetention,
	}
	if issueIdx != nil {
		deps.Index = issueIdx
	}
	job.RegisterHandlers(scheduler, deps)
	if err := scheduler.Start(ctx); err != nil {
		fatal("failed to start scheduler", err)
	}

	// 启动定时任务
	cronJob, err := job.StartCronJob(scheduler)
	if err != nil {
		fatal("failed to start cron", err)
	}

	// 7. Handler (API 层)
	hd := handler.Deps{
		Analysis:  orch,
		Fixes:     fixes,
		Jobs:      scheduler,
		Templates: templates,
		Health:    monitor,
		Uploads:   extractor,
	}
	if issueIdx != nil {
		hd.Search = issueIdx
	}
	contractHandler := handler.NewContractHandler(hd)

	// 8. 启动 Web Server
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	router.RegisterRoutes(r, contractHandler, router.Options{
		APIKey:       cfg.Server.APIKey,
		RateLimitRPM: cfg.Server.RateLimitRPM,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Executor.ExecutionTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-cronJob.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		slog.Error("scheduler did not stop in time", "error", err)
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		slog.Error("in-flight analyses did not finish", "error", err)
	}
	slog.Info("server exited gracefully")
}

func buildCacheStores(cfg config.CacheConfig) (cache.Store[*types.AnalysisArtifact], cache.Store[*types.TemplateLibrary], error) {
	if cfg.Backend != vars.CacheRedis {
		return cache.NewMemoryStore[*types.AnalysisArtifact](), cache.NewMemoryStore[*types.TemplateLibrary](), nil
	}
	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// 缓存不可用时请求绕过缓存，启动不中断
		slog.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	return cache.NewRedisStore[*types.AnalysisArtifact](client, "contract-guard:artifact:"),
		cache.NewRedisStore[*types.TemplateLibrary](client, "contract-guard:template:"),
		nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
