package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/tunisianchic/backend-boutique/internal/app"
	"github.com/tunisianchic/backend-boutique/internal/auth"
	"github.com/tunisianchic/backend-boutique/internal/cart"
	"github.com/tunisianchic/backend-boutique/internal/catalog"
	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/config"
	"github.com/tunisianchic/backend-boutique/internal/contact"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/health"
	"github.com/tunisianchic/backend-boutique/internal/newsletter"
	"github.com/tunisianchic/backend-boutique/internal/notify"
	"github.com/tunisianchic/backend-boutique/internal/obs"
	"github.com/tunisianchic/backend-boutique/internal/order"
	"github.com/tunisianchic/backend-boutique/internal/payment"
	"github.com/tunisianchic/backend-boutique/internal/pricing"
	"github.com/tunisianchic/backend-boutique/internal/ratelimit"
	"github.com/tunisianchic/backend-boutique/internal/resilience"
	"github.com/tunisianchic/backend-boutique/internal/reviews"
	"github.com/tunisianchic/backend-boutique/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "boutique")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "boutique-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "boutique-api"
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if cfg.AutoMigrate {
		m, err := migrate.New(envOrDefault("MIGRATIONS_SOURCE", "file://db/migrations"), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open migrations")
		}
		if err := app.RunMigrations(m); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.SMTPHost != "" {
		mailer = common.SMTPEmailSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailName,
		}
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	engine := pricing.Engine{Rules: pricing.Rules{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		TaxRate:               cfg.TaxRate,
		DiscountRate:          cfg.NewsletterDiscount,
	}}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries: queries,
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalogService)
	catalogAdmin := catalog.NewAdminHandler(catalogService, validate)

	authService, err := auth.NewService(auth.Config{
		Queries:         queries,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: "access_token"}

	newsService := &newsletter.Service{Q: queries, Log: logger}
	newsHandler := newsletter.NewHandler(newsService, queries)

	cartService, err := cart.NewService(queries, &engine)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	cartHandler := cart.NewHandler(cartService, validate)

	orderService, err := order.NewService(order.ServiceConfig{
		Runner:    order.PoolRunner{Pool: pool},
		Reads:     queries,
		News:      newsService,
		Engine:    &engine,
		Logger:    logger,
		Notifiers: []order.Notifier{notify.EmailNotifier{Client: taskClient, Log: logger}},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service")
	}
	orderHandler := order.NewHandler(orderService, validate)

	reviewService, err := reviews.NewService(reviews.PoolRunner{Pool: pool}, queries)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise review service")
	}
	reviewHandler := reviews.NewHandler(reviewService, validate)

	gatewayHTTP := func(target string) resilience.HTTPClient {
		return resilience.HTTPClient{
			Client:      &http.Client{Timeout: 15 * time.Second},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget(target).WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
		}
	}
	paymentService, err := payment.NewService(queries, logger,
		payment.Konnect{
			HTTP:     gatewayHTTP("konnect"),
			BaseURL:  cfg.KonnectBaseURL,
			APIKey:   cfg.KonnectAPIKey,
			WalletID: cfg.KonnectWalletID,
			Webhook:  cfg.PaymentWebhook,
		},
		payment.Paymee{
			HTTP:    gatewayHTTP("paymee"),
			BaseURL: cfg.PaymeeBaseURL,
			APIKey:  cfg.PaymeeAPIKey,
		},
		payment.Flouci{
			HTTP:      gatewayHTTP("flouci"),
			BaseURL:   cfg.FlouciBaseURL,
			AppToken:  cfg.FlouciAppToken,
			AppSecret: cfg.FlouciAppSecret,
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment service")
	}
	paymentHandler := payment.NewHandler(paymentService)

	statsService, err := stats.NewService(queries, catalog.NewCache(redisClient, cfg.StatsCacheTTL))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise stats service")
	}
	statsHandler := stats.NewHandler(statsService)

	contactHandler := contact.NewHandler(mailer, cfg.ContactInbox, validate, logger)

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	slidingLimiter := ratelimit.Limiter{Client: redisClient, Prefix: "boutique:rl:"}
	loginLimit := ratelimit.Handler{
		Limiter: slidingLimiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("login"), Window: time.Minute, Max: 10},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limit degraded") },
	}
	newsletterLimit := ratelimit.Handler{
		Limiter: slidingLimiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("newsletter"), Window: time.Minute, Max: 5},
		OnError: func(err error) { logger.Warn().Err(err).Msg("newsletter rate limit degraded") },
	}

	globalLimiter, err := app.NewGlobalLimiter(redisClient, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("GLOBAL_RATE_LIMIT_PER_MINUTE", 300)),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise global rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(limitermw.NewMiddleware(globalLimiter).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.DepChecker{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductByID)
		v.Get("/products/slug/{slug}", catalogHandler.ProductBySlug)
		v.Get("/products/{id}/reviews", reviewHandler.List)
		v.With(authMiddleware.RequireAuth).Post("/products/{id}/reviews", reviewHandler.Create)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
				protected.Patch("/profile", authHandler.UpdateProfile)
			})
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.With(idem.Middleware).Post("/", cartHandler.Add)
			c.Put("/{itemId}", cartHandler.UpdateQuantity)
			c.Delete("/{itemId}", cartHandler.Remove)
			c.Delete("/", cartHandler.Clear)
		})

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.With(idem.Middleware).Post("/orders", orderHandler.Create)
			authed.Get("/orders", orderHandler.ListMine)
			authed.Get("/orders/{id}", orderHandler.Get)
		})

		v.Route("/newsletter", func(n chi.Router) {
			n.With(newsletterLimit.Middleware).Post("/", newsHandler.Subscribe)
			n.With(authMiddleware.RequireAuth).Get("/status", newsHandler.Status)
		})

		v.Post("/contact", contactHandler.Submit)

		v.Route("/payments", func(p chi.Router) {
			p.Get("/providers", paymentHandler.List)
			p.With(authMiddleware.RequireAuth, idem.Middleware).Post("/{provider}", paymentHandler.Start)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(requireRole(queries, "admin"))
			admin.Get("/stats", statsHandler.Dashboard)
			admin.Get("/stats/orders", statsHandler.Orders)
			admin.Get("/stats/products", statsHandler.Products)
			admin.Get("/stats/customers", statsHandler.Customers)
			admin.Get("/orders", orderHandler.ListAll)
			admin.Put("/orders/{id}", orderHandler.UpdateStatus)
			admin.Post("/categories", catalogAdmin.CreateCategory)
			admin.Put("/categories/{id}", catalogAdmin.UpdateCategory)
			admin.Delete("/categories/{id}", catalogAdmin.DeleteCategory)
			admin.Post("/products", catalogAdmin.CreateProduct)
			admin.Put("/products/{id}", catalogAdmin.UpdateProduct)
			admin.Delete("/products/{id}", catalogAdmin.DeleteProduct)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func requireRole(q *db.Queries, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := common.UserID(r.Context())
			if !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			var uid pgtype.UUID
			if err := uid.Scan(raw); err != nil {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			user, err := q.GetUserByID(r.Context(), uid)
			if err != nil || user.Role != role {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
