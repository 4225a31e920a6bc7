package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/libs/config"
	"github.com/ateliernova/site-backend/libs/db"
	"github.com/ateliernova/site-backend/libs/httpx"
	"github.com/ateliernova/site-backend/libs/kafkax"
	otelx "github.com/ateliernova/site-backend/libs/otel"
	"github.com/ateliernova/site-backend/libs/runtime"
	"github.com/ateliernova/site-backend/services/notify-service/internal/consumer"
	"github.com/ateliernova/site-backend/services/notify-service/internal/email"
	"github.com/ateliernova/site-backend/services/notify-service/internal/inbox"
	"github.com/ateliernova/site-backend/services/notify-service/internal/notify"
	"github.com/ateliernova/site-backend/services/notify-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notify-service")
	port, err := config.Port("PORT", "8081")
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

	loc, err := time.LoadLocation(config.String("TIMEZONE", "Europe/Paris"))
	if err != nil {
		logger.Error("invalid timezone", "err", err)
		panic(err)
	}

	var sender email.Sender
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")) {
	case "sendgrid":
		sender, err = email.NewSendGridSender(
			config.String("SENDGRID_API_KEY", ""),
			config.String("SENDGRID_FROM_NAME", "Atelier Nova"),
			config.String("SENDGRID_FROM_EMAIL", ""),
		)
		if err != nil {
			logger.Error("sendgrid setup failed", "err", err)
			panic(err)
		}
	default:
		addr := net.JoinHostPort(config.String("SMTP_HOST", "mailpit"), config.String("SMTP_PORT", "1025"))
		sender = email.NewSMTPSender(addr, config.String("SMTP_FROM", "no-reply@ateliernova.fr"))
	}

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	notifier := notify.New(sender, notificationsRepo, logger, config.String("STUDIO_EMAIL", "hello@ateliernova.fr"), loc)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notify-service")
	startConsumer := func(topic string) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			return notifier.Handle(ctx, msg.Topic, msg.Value)
		})
		go eventConsumer.Run(ctx)
	}
	startConsumer(notify.TopicBookingConfirmed)
	startConsumer(notify.TopicBookingCancelled)
	startConsumer(notify.TopicContactReceived)
	startConsumer(notify.TopicIntakeReceived)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notify")
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
