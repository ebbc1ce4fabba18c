package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"maukemana-backend/internal/batch"
	"maukemana-backend/internal/cache"
	"maukemana-backend/internal/config"
	"maukemana-backend/internal/database"
	"maukemana-backend/internal/dispatcher"
	"maukemana-backend/internal/httpapi"
	"maukemana-backend/internal/hub"
	"maukemana-backend/internal/jellyfin"
	"maukemana-backend/internal/logger"
	"maukemana-backend/internal/metadata"
	"maukemana-backend/internal/model"
	"maukemana-backend/internal/observability"
	"maukemana-backend/internal/poster"
	"maukemana-backend/internal/progress"
	"maukemana-backend/internal/queue"
	"maukemana-backend/internal/repository"
	"maukemana-backend/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	port := getEnv("PORT", "3001")
	env := getEnv("NODE_ENV", "development")

	appLog := logger.Init("maukemana-batch-core", env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "maukemana-batch-core")
	if err != nil {
		appLog.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				appLog.Error("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.New(databaseURL)
	if err != nil {
		appLog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	appLog.Info("connected to PostgreSQL")

	cfg := config.Load()
	for _, repaired := range cfg.Validate() {
		appLog.Warn("config repaired", "detail", repaired)
	}

	repo := repository.New(db)
	jobQueue := queue.New()

	jellyfinClient := jellyfin.New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, cfg.Jellyfin.UserID,
		cfg.PosterDownloadRetries, cfg.PosterDownloadBackoff)
	tagService := jellyfin.NewTagService(jellyfinClient)

	cacheStore := buildCacheStore()
	extractors := buildExtractors(cfg)

	progressSink := hub.New(appLog)
	tracker := progress.New(progressSink)

	posterProcessor := poster.New(jellyfinClient, tagService, cacheStore, extractors, cfg.BadgeStyle, tracker, appLog)

	batchEngine := batch.New(repo, jobQueue)
	batchWorker := worker.New(repo, posterProcessor, tracker, appLog, cfg.MaxRetriesPerPoster, cfg.InterPosterThrottle)
	dispatch := dispatcher.New(jobQueue, batchWorker, appLog, cfg.MaxConcurrentJobs)
	dispatch.Start()
	defer dispatch.Stop()

	handler := httpapi.New(batchEngine, repo, jobQueue, dispatch, tracker, progressSink)
	router := httpapi.Setup(db, handler)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		appLog.Info("server starting", "port", port, "env", env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	appLog.Info("server exited")
}

// buildCacheStore wires a RemoteStore when S3/R2 credentials are
// configured, falling back to local disk otherwise; the cache layout
// is identical either way.
func buildCacheStore() cache.Store {
	baseDir := getEnv("CACHE_BASE_DIR", "./data")
	endpoint := os.Getenv("CACHE_S3_ENDPOINT")
	if endpoint == "" {
		return cache.NewLocalStore(baseDir)
	}
	return cache.NewRemoteStore(baseDir, endpoint,
		os.Getenv("CACHE_S3_BUCKET"), os.Getenv("CACHE_S3_ACCESS_KEY_ID"), os.Getenv("CACHE_S3_SECRET_ACCESS_KEY"))
}

// buildExtractors assembles the badge extractor set from
// configuration, one poster.Extractor closure per badge type.
func buildExtractors(cfg *config.Config) map[model.BadgeType]poster.Extractor {
	limiter := metadata.NewProviderLimiter()
	limiter.Register("tmdb", rate.Limit(4), 8)
	limiter.Register("imdb", rate.Limit(1), 2)
	limiter.Register("fanart", rate.Limit(2), 4)

	var sources []metadata.ReviewSource
	for _, name := range cfg.Review.SourcesEnabled {
		switch name {
		case "tmdb":
			sources = append(sources, metadata.NewTMDBSource(os.Getenv("TMDB_API_KEY"), limiter))
		case "imdb", "rotten_tomatoes", "metacritic":
			sources = append(sources, metadata.NewOMDBSource(os.Getenv("OMDB_API_KEY"), limiter))
		}
	}
	reviewExtractor := metadata.NewReviewExtractor(sources, cfg.Review.SourcePriority, cfg.Review.MinVotes, cfg.Review.MaxBadges)

	awardsPath := getEnv("AWARDS_DATASET_PATH", "./data/awards.json")
	awardsDataset, err := metadata.LoadAwardsDataset(awardsPath)
	if err != nil {
		slog.Default().Warn("failed to load awards dataset, awards badge disabled", "error", err)
		awardsDataset = &metadata.AwardsDataset{WinnersByTmdbID: map[string][]string{}}
	}
	awardsExtractor := metadata.NewAwardsExtractor(awardsDataset, cfg.Awards.ColorScheme, cfg.Awards.SourcesEnabled)

	return map[model.BadgeType]poster.Extractor{
		model.BadgeAudio:      metadata.ExtractAudio,
		model.BadgeResolution: metadata.ExtractResolution,
		model.BadgeReview:     reviewExtractor.Extract,
		model.BadgeAwards:     awardsExtractor.Extract,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
