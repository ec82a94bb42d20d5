package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/socialchef/recipewizard/internal/config"
	"github.com/socialchef/recipewizard/internal/httpclient"
	"github.com/socialchef/recipewizard/internal/logger"
	"github.com/socialchef/recipewizard/internal/middleware"
	"github.com/socialchef/recipewizard/internal/sentry"
	"github.com/socialchef/recipewizard/internal/services/gateway"
	"github.com/socialchef/recipewizard/internal/services/render"
	"github.com/socialchef/recipewizard/internal/services/storage"
	"github.com/socialchef/recipewizard/internal/services/store"
	"github.com/socialchef/recipewizard/internal/session"
	"github.com/socialchef/recipewizard/internal/telemetry"
	"github.com/socialchef/recipewizard/internal/web"
	"github.com/socialchef/recipewizard/internal/wizard"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, cfg.OTLPHeaders())
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	metricsHandler, shutdownMetrics, err := telemetry.InitMetrics(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer shutdownMetrics(context.Background())

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init sentry", "error", err)
	}
	if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize logger with OTel support
	slog.SetDefault(logger.New(cfg.Env))

	// The renderer cannot work without its font.
	renderer, err := render.NewRenderer(cfg.FontPath)
	if err != nil {
		log.Fatalf("Failed to load font: %v", err)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	dynamo := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		}
	})

	// Local endpoints start empty; the real table is provisioned out of band.
	if cfg.AWSEndpointURL != "" {
		if err := store.EnsureTable(ctx, dynamo, cfg.DynamoDBTable); err != nil {
			log.Fatalf("Failed to prepare table: %v", err)
		}
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init session store: %v", err)
	}
	defer closeSessions()

	ctrl := wizard.NewController(
		gateway.NewClient(cfg.GatewayURL, nil),
		store.NewClient(dynamo, cfg.DynamoDBTable),
		renderer,
		storage.NewClient(s3Client, cfg.S3Bucket),
	)

	webServer, err := web.NewServer(ctrl, session.NewRegistry(sessions))
	if err != nil {
		log.Fatalf("Failed to init web server: %v", err)
	}

	// Router
	r := chi.NewRouter()

	r.Use(sentry.HTTPMiddleware)

	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(cfg))
		webServer.Routes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server",
		"port", cfg.Port,
		"table", cfg.DynamoDBTable,
		"bucket", cfg.S3Bucket,
		"session_backend", cfg.Session.Backend)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithHTTPClient(httpclient.WrapClient(&http.Client{Timeout: httpclient.DefaultTimeout})),
	)
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.Session.Backend == "redis" {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, cfg.Session.TTL), func() { _ = client.Close() }, nil
	}
	return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
}
