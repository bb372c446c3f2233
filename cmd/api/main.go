// Package main is the entry point for the socialgraph API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/socialgraph/internal/api"
	"github.com/onnwee/socialgraph/internal/auth"
	"github.com/onnwee/socialgraph/internal/config"
	"github.com/onnwee/socialgraph/internal/db"
	"github.com/onnwee/socialgraph/internal/events"
	"github.com/onnwee/socialgraph/internal/health"
	"github.com/onnwee/socialgraph/internal/idempotency"
	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/post"
	"github.com/onnwee/socialgraph/internal/ranking"
	"github.com/onnwee/socialgraph/internal/relationship"
	"github.com/onnwee/socialgraph/internal/search"
	"github.com/onnwee/socialgraph/internal/story"
	"github.com/onnwee/socialgraph/internal/tracing"
	"github.com/onnwee/socialgraph/internal/upload"
	"github.com/onnwee/socialgraph/internal/user"
	"github.com/onnwee/socialgraph/migrations"
)

const serviceName = "socialgraph-api"

// rateLimitCleanupInterval is how often expired in-memory buckets are dropped.
const rateLimitCleanupInterval = time.Minute

// storyCleanupInterval is how often expired stories are deleted.
const storyCleanupInterval = 15 * time.Minute

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("socialgraph API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// .env is a local development convenience; a missing file is fine.
	envErr := godotenv.Load()

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", envErr)
	}
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run builds every dependency from cfg, serves until ctx is done and then
// shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn, migrations.FS, logger); err != nil {
		return err
	}

	d := deps{
		cfg:       cfg,
		logger:    logger,
		users:     user.NewPostgresDirectory(conn, logger),
		relStore:  relationship.NewPostgresStore(conn.DB, logger),
		posts:     post.NewPostgresStore(conn, logger),
		stories:   story.NewPostgresStore(conn, logger),
		publisher: relationship.NopPublisher{},
		registry:  prometheus.NewRegistry(),
		checkers:  map[string]api.HealthChecker{"database": health.NewDBChecker(conn)},
	}
	d.httpMetrics = middleware.NewMetrics()

	if d.weights, err = loadWeights(cfg.RankingCalibrationPath); err != nil {
		return err
	}
	go story.NewService(d.stories, d.relStore, logger).RunPeriodicCleanup(ctx, storyCleanupInterval)

	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		d.rateStore = middleware.NewRedisRateLimitStore(client).WithMetrics(d.httpMetrics).WithLogger(logger)
		d.checkers["redis"] = health.NewRedisChecker(client)
		d.idempotency = idempotency.NewRedisRepository(client, idempotency.DefaultExpiry)
		logger.Info("using redis rate limit store")
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		d.rateStore = mem
		go cleanupLoop(ctx, mem, rateLimitCleanupInterval)
		idem := idempotency.NewInMemoryRepository()
		d.idempotency = idem
		go idempotency.RunPeriodicCleanup(ctx, idem, time.Hour, idempotency.DefaultExpiry, logger)
		logger.Info("using in-memory rate limit store")
	}

	if cfg.NATSURL != "" {
		pub, err := events.Connect(events.Config{URL: cfg.NATSURL, Name: serviceName, MaxReconnects: -1}, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		d.publisher = pub
		d.checkers["nats"] = health.NewNATSChecker(pub)
	}

	if cfg.UploadsEnabled() {
		svc, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicURL,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			return fmt.Errorf("failed to create upload service: %w", err)
		}
		d.uploader = svc
	} else {
		logger.Info("uploads disabled, R2 is not configured")
	}

	handler, err := newHandler(d)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, server, logger)
}

// deps are the constructed backends the HTTP handler is assembled from.
type deps struct {
	cfg         *config.Config
	logger      *slog.Logger
	users       user.Directory
	relStore    relationship.Store
	posts       post.Store
	stories     story.Store
	publisher   relationship.EventPublisher
	rateStore   middleware.RateLimitStore
	idempotency idempotency.Repository
	uploader    api.URLSigner
	weights     *ranking.Weights
	checkers    map[string]api.HealthChecker
	registry    *prometheus.Registry
	httpMetrics *middleware.Metrics
}

// newHandler wires the core services, the router and the global middleware
// chain: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> RateLimiter.
func newHandler(d deps) (http.Handler, error) {
	cfg := d.cfg
	if d.httpMetrics == nil {
		d.httpMetrics = middleware.NewMetrics()
	}
	searchMetrics := search.NewMetrics()
	relMetrics := relationship.NewMetrics()

	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newUserCountCollector(d.users, d.logger),
	)
	for _, reg := range []interface {
		Register(prometheus.Registerer) error
	}{d.httpMetrics, searchMetrics, relMetrics} {
		if err := reg.Register(d.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	graph := relationship.NewGraph(d.relStore,
		relationship.WithPolicy(relationship.Policy{
			RejectSelf:         cfg.PolicyRejectSelf,
			BlockSeversFollows: cfg.PolicyBlockSeversFollows,
		}),
		relationship.WithPublisher(d.publisher),
		relationship.WithMetrics(relMetrics),
		relationship.WithLogger(d.logger),
	)
	ranker := search.NewRanker(d.users,
		search.WithWeights(d.weights),
		search.WithMetrics(searchMetrics),
		search.WithLogger(d.logger),
	)
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:         cfg.JWTSecret,
		PreviousSecret: cfg.JWTPreviousSecret,
		Issuer:         cfg.JWTIssuer,
	})

	mux := api.NewRouter(api.RouterConfig{
		Search:         api.NewSearchHandlers(ranker),
		Relationships:  api.NewRelationshipHandlers(graph),
		Users:          api.NewUserHandlers(d.users, user.NewSyncer(d.users, d.logger)),
		Posts:          api.NewPostHandlers(post.NewService(d.posts, d.relStore, post.WithLogger(d.logger))),
		Stories:        api.NewStoryHandlers(story.NewService(d.stories, d.relStore, d.logger)),
		Uploads:        api.NewUploadHandlers(d.uploader),
		Health:         api.NewHealthHandlers(api.HealthHandlersConfig{Checkers: d.checkers}),
		Auth:           jwtSvc,
		RateLimitStore: d.rateStore,
		Idempotency:    d.idempotency,
		Logger:         d.logger,
		SearchLimit:    perMinute(cfg.RateLimitSearch),
		WriteLimit:     perMinute(cfg.RateLimitWrite),
		Metrics:        d.httpMetrics,
		MetricsHandler: promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}),
	})

	var handler http.Handler = mux
	handler = middleware.RateLimiter(d.rateStore, perMinute(cfg.RateLimitGlobal),
		middleware.ScopedKeyFunc("global", middleware.IPKeyFunc()), d.httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		MaxAge:           3600,
	})(handler)
	handler = middleware.HTTPMetrics(d.httpMetrics)(handler)
	handler = middleware.Logging(d.logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	return handler, nil
}

func perMinute(n int) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{RequestsPerWindow: n, WindowDuration: time.Minute}
}

// loadWeights returns the default ranking weights, overridden by the
// calibration file when path is set.
func loadWeights(path string) (*ranking.Weights, error) {
	if path == "" {
		return ranking.DefaultWeights(), nil
	}
	w, err := ranking.LoadCalibration(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking calibration: %w", err)
	}
	return w, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// cleanupLoop drops expired in-memory rate limit buckets until ctx is done.
func cleanupLoop(ctx context.Context, store *middleware.InMemoryRateLimitStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}

// serve runs server until ctx is done, then gives in-flight requests ten
// seconds to finish.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// userCounter is satisfied by every user.Directory.
type userCounter interface {
	Count(ctx context.Context) (int, error)
}

// newUserCountCollector exposes the number of stored users as a gauge read
// at scrape time.
func newUserCountCollector(users userCounter, logger *slog.Logger) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "socialgraph_users_total",
		Help: "Number of users in the directory",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := users.Count(ctx)
		if err != nil {
			logger.Warn("failed to count users", "error", err)
			return 0
		}
		return float64(n)
	})
}
