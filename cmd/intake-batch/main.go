// cmd/intake-batch/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stock-intake/internal/aggregate"
	"stock-intake/internal/catalog"
	"stock-intake/internal/common/config"
	"stock-intake/internal/common/database"
	"stock-intake/internal/common/logger"
	"stock-intake/internal/common/observability"
	"stock-intake/internal/fields"
	"stock-intake/internal/models"
	"stock-intake/internal/ocr"
	"stock-intake/internal/pipeline"
	"stock-intake/internal/reconcile"
)

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	// Exit through a wrapper so deferred cleanups run before the process
	// reports its status.
	os.Exit(run())
}

func run() int {
	var (
		imageDir    = flag.String("dir", "", "directory of receipt photos to process")
		configPath  = flag.String("config", "", "config file path (default: config.yaml lookup)")
		metricsAddr = flag.String("serve-metrics", "", "serve /metrics and /health on this address, e.g. :8080")
	)
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if *imageDir == "" {
		zapLog.Error("missing required -dir flag")
		return 1
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		zapLog.Error("config load failed", zap.Error(err))
		return 1
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Reference source ---
	var source catalog.Source
	switch cfg.Reference.Backend {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Reference.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Error("postgres failed after retries", zap.Error(err))
			return 1
		}
		defer pg.Close()
		source = catalog.NewPostgresSource(pg)
	default:
		source = catalog.NewSheetSource(cfg.Reference.Sheet.Path)
	}
	cache := catalog.NewCache(source, cfg.Cache.TTL(), log)

	// --- Progress sink ---
	var sink pipeline.ProgressSink = pipeline.NopSink{}
	if cfg.Redis.Enabled {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Error("redis failed after retries", zap.Error(err))
			return 1
		}
		defer redisClient.Close()
		sink = pipeline.NewRedisTracker(redisClient, 24*time.Hour)
	}

	// --- Pipeline stages ---
	textExtractor := ocr.NewExtractor(ocr.Config{
		MaxUploadBytes: cfg.Upload.MaxUploadBytes(),
		Timeout:        config.GetDuration(cfg.Providers.Vision.Timeout),
		RatePerSecond:  cfg.Providers.Vision.RatePerSecond,
	}, ocr.NewHTTPProvider(cfg.Providers.Vision.BaseURL, cfg.Providers.Vision.APIKey, cfg.Providers.Vision.Model), log)

	fieldExtractor := fields.NewExtractor(fields.Config{
		Temperature: cfg.Providers.Chat.Temperature,
		MaxTokens:   cfg.Providers.Chat.MaxTokens,
		Timeout:     config.GetDuration(cfg.Providers.Chat.Timeout),
	}, fields.NewHTTPProvider(cfg.Providers.Chat.BaseURL, cfg.Providers.Chat.APIKey, cfg.Providers.Chat.Model), log)

	reconciler := reconcile.New(reconcile.Config{
		FuzzyMatchThreshold: cfg.Pipeline.FuzzyMatchThreshold,
		ConfidenceWarning:   cfg.Pipeline.ConfidenceWarning,
		UnmatchedFloor:      cfg.Pipeline.UnmatchedFloor,
		MaxSuggestions:      cfg.Pipeline.MaxSuggestions,
	}, log)

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Concurrency: cfg.Pipeline.OCRConcurrency,
		ItemTimeout: config.GetDuration(cfg.Pipeline.ItemTimeout),
	}, textExtractor, fieldExtractor, reconciler, cache, sink, obs, log)

	// --- Health & Metrics Server ---
	if *metricsAddr != "" {
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Health/Metrics server listening", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	inputs, err := loadImages(*imageDir)
	if err != nil {
		zapLog.Error("loading images failed", zap.Error(err))
		return 1
	}
	if len(inputs) == 0 {
		zapLog.Error("no supported images found", zap.String("dir", *imageDir))
		return 1
	}
	zapLog.Info("Images loaded", zap.Int("count", len(inputs)))

	result, err := orchestrator.Run(ctx, inputs)
	if err != nil {
		zapLog.Error("batch failed", zap.Error(err))
		return 1
	}

	report := struct {
		*models.BatchResult
		Aggregate aggregate.Summary `json:"aggregate"`
	}{result, aggregate.Batch(result.Results)}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		zapLog.Error("encoding result failed", zap.Error(err))
		return 1
	}

	if result.Summary.Failed > 0 {
		return 1
	}
	return 0
}

// loadImages reads every supported image in dir, sorted by filename so runs
// are reproducible.
func loadImages(dir string) ([]models.ImageInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var inputs []models.ImageInput
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType, ok := mimeByExtension[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		inputs = append(inputs, models.ImageInput{
			Ref:      entry.Name(),
			MimeType: mimeType,
			Data:     data,
		})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Ref < inputs[j].Ref })
	return inputs, nil
}
