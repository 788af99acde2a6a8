package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/annualguard/annualguard/internal/application"
	"github.com/annualguard/annualguard/internal/application/detect"
	"github.com/annualguard/annualguard/internal/application/extraction"
	appfin "github.com/annualguard/annualguard/internal/application/financials"
	"github.com/annualguard/annualguard/internal/application/pipeline"
	appsec "github.com/annualguard/annualguard/internal/application/sections"
	"github.com/annualguard/annualguard/internal/config"
	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/flags"
	openaiClient "github.com/annualguard/annualguard/internal/infra/ai/openai"
	mysqlp "github.com/annualguard/annualguard/internal/infra/db/mysql"
	postgresp "github.com/annualguard/annualguard/internal/infra/db/postgres"
	"github.com/annualguard/annualguard/internal/infra/extract"
	"github.com/annualguard/annualguard/internal/infra/httpserver"
	minioStore "github.com/annualguard/annualguard/internal/infra/storage"
	"github.com/annualguard/annualguard/internal/infra/usage"
	"github.com/annualguard/annualguard/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (driver configurable)
	var db *sql.DB
	var verdicts analysis.VerdictRepository
	var failures analysis.FailureRepository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		verdicts = postgresp.NewVerdictRepository(db)
		failures = postgresp.NewFailureRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		verdicts = mysqlp.NewVerdictRepository(db)
		failures = mysqlp.NewFailureRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init openai
	ai := openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.VisionModel)

	retry := application.RetryPolicy{
		Attempts:  cfg.Pipeline.RetryAttempts,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
	}

	// OCR engine
	ocr := extract.NewTesseractEngine(cfg.Pipeline.WorkDir)
	ocr.Language = cfg.Pipeline.OCRLanguage

	// pipeline stages
	extractor := &extraction.Service{
		OpenNative: func(content []byte) (extraction.NativeReader, error) {
			return extract.OpenPDF(content)
		},
		OCR:                ocr,
		AI:                 ai,
		Workers:            cfg.Pipeline.Workers,
		MinCharsPerPage:    cfg.Pipeline.MinCharsPerPage,
		MinOCRConfidence:   cfg.Pipeline.MinOCRConfidence,
		VendorPageFraction: cfg.Pipeline.VendorPageFraction,
		Retry:              retry,
		WorkDir:            cfg.Pipeline.WorkDir,
	}
	locator := &appsec.Locator{
		AI:            ai,
		Stride:        cfg.Pipeline.SectionStride,
		MinConfidence: 0.4,
		Retry:         retry,
	}
	financials := &appfin.Extractor{MinPageConfidence: 0.2}
	runner := &detect.Runner{
		AI:      ai,
		Workers: cfg.Pipeline.Workers,
		Retry:   retry,
	}

	// init service
	svc := &pipeline.Service{
		Repo:              verdicts,
		Failures:          failures,
		Store:             store,
		Usage:             usage.LogReporter{},
		Extractor:         extractor,
		Locator:           locator,
		Financials:        financials,
		Detector:          runner,
		Catalog:           flags.Catalog(cfg.Thresholds.Overrides),
		Clock:             application.SystemClock{},
		TokenBudget:       cfg.Pipeline.TokenBudget,
		StageTimeout:      cfg.StageTimeout(),
		GlobalTimeout:     cfg.GlobalTimeout(),
		ThresholdsVersion: cfg.Thresholds.Version,
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database":     &middleware.DatabaseHealthChecker{DB: db},
		"object_store": middleware.PingHealthChecker{Ping: store.Ping},
		"ai":           middleware.PingHealthChecker{Ping: ai.Ping},
	}))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Mount("/", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE butuh long-lived writes
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
