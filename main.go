package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/cache"
	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/handlers"
	"github.com/nijaru/yt-scribe/logger"
	"github.com/nijaru/yt-scribe/middleware"
	"github.com/nijaru/yt-scribe/repository"
	"github.com/nijaru/yt-scribe/repository/sqlite"
	"github.com/nijaru/yt-scribe/services/audio"
	"github.com/nijaru/yt-scribe/services/captions"
	"github.com/nijaru/yt-scribe/services/stt"
	"github.com/nijaru/yt-scribe/services/transcript"
	"github.com/nijaru/yt-scribe/storage"
	"github.com/nijaru/yt-scribe/youtube"
	"github.com/nijaru/yt-scribe/ytdlp"
)

func main() {
	// Load .env if present; deployed environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log, err := logger.Init(cfg.LogDir, cfg.LogLevel, cfg.Debug)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}

	// Durable cache tier. Startup continues without it; transcripts then
	// live in memory only.
	var store repository.TranscriptStore
	db, err := sqlite.Open(cfg.Cache.DBPath, sqlite.DefaultDBConfig())
	if err != nil {
		log.WithError(err).Warn("Durable cache unavailable, running memory-only")
	} else {
		store = sqlite.NewRepository(db)
		defer db.Close()
	}

	transcriptCache := cache.New(store, cfg.Cache, log)

	ytClient := youtube.NewClient(nil)

	runner, err := ytdlp.NewRunner(cfg.Audio.YTDLPPath, log)
	if err != nil {
		log.WithError(err).Warn("yt-dlp not found, its caption and audio tiers are disabled")
	}

	captionService := captions.NewService(ytClient, runner, cfg.Captions, cfg.TempDir, log)
	audioService := audio.NewService(ytClient, runner, cfg.Audio, cfg.TempDir, log)

	local := stt.NewLocalTranscriber(cfg.STT, log)
	chain := stt.NewChain(log, stt.NewFastTranscriber(cfg.STT, log), local)

	var archiver transcript.Archiver
	if cfg.Archive.Enabled() {
		client, err := storage.NewClient(cfg.Archive, log)
		if err != nil {
			log.WithError(err).Warn("Archive storage unavailable")
		} else {
			archiver = client
			log.WithField("bucket", cfg.Archive.Bucket).Info("Transcript archiving enabled")
		}
	}

	service := transcript.NewService(
		transcriptCache,
		captionService,
		audioService,
		chain,
		archiver,
		cfg.Delivery,
		log,
	)

	probes := map[string]handlers.Prober{
		"database": func(ctx context.Context) bool {
			return db != nil && db.PingContext(ctx) == nil
		},
		"whisper": local.Available,
	}

	mux := http.NewServeMux()
	handlers.New(service, transcriptCache, probes, cfg, log).Register(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      applyMiddleware(mux, cfg, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cache.PurgeInterval > 0 {
		go purgeLoop(ctx, transcriptCache, cfg.Cache.PurgeInterval, log)
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.ServerPort,
			"version": cfg.Version,
		}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func applyMiddleware(h http.Handler, cfg *config.Config, log *logrus.Logger) http.Handler {
	var chain []func(http.Handler) http.Handler

	if cfg.Middleware.EnableRecover {
		chain = append(chain, middleware.Recovery(log))
	}
	if cfg.Middleware.EnableRequestID {
		chain = append(chain, middleware.RequestID())
	}
	if cfg.Middleware.EnableLogger {
		chain = append(chain, middleware.Logging(log))
	}
	if cfg.Middleware.EnableCORS {
		chain = append(chain, middleware.CORS(cfg.CORS))
	}
	if cfg.Middleware.EnableRateLimit {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
		chain = append(chain, limiter.Middleware)
	}

	return middleware.Chain(h, chain...)
}

// purgeLoop evicts expired cache entries on a fixed interval until ctx
// is cancelled.
func purgeLoop(ctx context.Context, c *cache.Cache, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.PurgeExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("Cache purge failed")
				continue
			}
			if removed > 0 {
				log.WithField("removed", removed).Info("Purged expired transcripts")
			}
		}
	}
}
