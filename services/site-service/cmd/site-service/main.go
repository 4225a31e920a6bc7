package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/libs/config"
	"github.com/ateliernova/site-backend/libs/db"
	"github.com/ateliernova/site-backend/libs/httpx"
	"github.com/ateliernova/site-backend/libs/kafkax"
	otelx "github.com/ateliernova/site-backend/libs/otel"
	"github.com/ateliernova/site-backend/libs/redisx"
	"github.com/ateliernova/site-backend/libs/runtime"
	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
	"github.com/ateliernova/site-backend/services/site-service/internal/calendar"
	"github.com/ateliernova/site-backend/services/site-service/internal/handlers"
	"github.com/ateliernova/site-backend/services/site-service/internal/outbox"
	"github.com/ateliernova/site-backend/services/site-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "site-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := time.LoadLocation(config.String("TIMEZONE", "Europe/Paris"))
	if err != nil {
		logger.Error("invalid timezone", "err", err)
		panic(err)
	}
	startHour, err := config.Hour("WORK_START_HOUR", 9)
	if err != nil {
		panic(err)
	}
	endHour, err := config.Hour("WORK_END_HOUR", 20)
	if err != nil {
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb, err := redisx.Open(ctx, config.String("REDIS_ADDR", ""))
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	bookingRepo := storage.NewBookingRepository(pool)
	messageRepo := storage.NewMessageRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	calClient, err := calendar.NewClient(
		config.String("CALENDAR_BASE_URL", ""),
		config.String("CALENDAR_ID", ""),
		config.String("CALENDAR_TOKEN", ""),
		loc,
	)
	if err != nil {
		if !errors.Is(err, calendar.ErrNotConfigured) {
			panic(err)
		}
		logger.Warn("calendar client not configured; availability uses bookings only")
		calClient = nil
	}

	busySources := []availability.BusySource{bookingRepo}
	if calClient != nil {
		busySources = append(busySources, calClient)
	}
	busy := availability.CombineSources(busySources...)

	policy := availability.Policy{StartHour: startHour, EndHour: endHour}
	planner, err := availability.NewPlanner(policy, loc, busy)
	if err != nil {
		logger.Error("planner init failed", "err", err)
		panic(err)
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	availabilityHandler := handlers.NewAvailabilityHandler(planner, rdb, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, outboxRepo, busy, calClient, policy, loc, logger)
	formsHandler := handlers.NewFormsHandler(messageRepo, outboxRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMux(readyChecks...)
	mux.HandleFunc("/api/v1/public/availability", availabilityHandler.Upcoming)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/public/contact", formsHandler.Contact)
	mux.HandleFunc("/api/v1/public/intake", formsHandler.Intake)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Get)
	mux.HandleFunc("/api/v1/bookings/", bookingHandler.Get)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		panic(err)
	}
	var rateLimiter httpx.Middleware
	if rdb != nil {
		rateLimiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "ratelimit:site").Middleware(logger)
	} else {
		rateLimiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64<<10),
		httpx.WithCORS(splitOrigins(config.String("SITE_ORIGINS", ""))),
		rateLimiter,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "site")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
