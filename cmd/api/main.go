package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/otp-relay/internal/application/alert"
	"github.com/otp-relay/internal/application/command"
	"github.com/otp-relay/internal/application/dispatch"
	"github.com/otp-relay/internal/application/messaging"
	"github.com/otp-relay/internal/application/session"
	"github.com/otp-relay/internal/application/subscription"
	"github.com/otp-relay/internal/config"
	amqpinfra "github.com/otp-relay/internal/infrastructure/amqp"
	"github.com/otp-relay/internal/infrastructure/dynamo"
	redisinfra "github.com/otp-relay/internal/infrastructure/redis"
	s3infra "github.com/otp-relay/internal/infrastructure/s3"
	"github.com/otp-relay/internal/infrastructure/smtp"
	"github.com/otp-relay/internal/infrastructure/sns"
	"github.com/otp-relay/internal/infrastructure/sqlite"
	"github.com/otp-relay/internal/infrastructure/whatsapp"
	"github.com/otp-relay/internal/pkg/phone"
	transporthttp "github.com/otp-relay/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.AppEnv == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	started := time.Now()

	// One process per session directory: two processes on the same
	// credentials would keep replacing each other's stream.
	if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.SessionDir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock session dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("session dir %s is in use by another process", cfg.SessionDir)
	}
	defer func() { _ = lock.Unlock() }()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	otpRepo := dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.Users)
	subRepo := dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions)
	attempts := dynamo.NewAttemptRepo(dynamoClient, cfg.DynamoTables.OTPLogs)
	phones := phone.Normalizer{Prefix: cfg.CountryPrefix}

	// Subscription cache: Redis when configured, in-process otherwise.
	var cache subscription.Cache = subscription.NewMemoryCache(cfg.SubscriptionCacheTTL)
	if cfg.RedisAddr != "" {
		if rdb, err := redisinfra.NewClient(ctx, cfg); err == nil {
			defer rdb.Close()
			cache = redisinfra.NewSubscriptionCache(rdb, cfg.SubscriptionCacheTTL, log)
		} else {
			log.Warn("redis unavailable, using in-process subscription cache", "err", err)
		}
	}
	gate := subscription.NewGate(subRepo, cache, phones, log)

	alerts := newAlerts(ctx, cfg, log)

	// S3 credential backup (optional).
	var backup *session.CredentialBackup
	if cfg.SessionBackupBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		store := s3infra.NewStore(s3Client, cfg.SessionBackupBucket)
		backup = session.NewCredentialBackup(store, sqlite.Files{}, cfg.SessionDir, cfg.SessionBackupInterval, log)
	}

	channels := make([]*session.Channel, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		t := whatsapp.NewClient(session.CredentialPath(cfg.SessionDir, name), log.With("channel", name))
		channels = append(channels, session.NewChannel(name, t, session.ChannelOptions{
			ReconnectDelay: cfg.ReconnectDelay,
			Alerts:         alerts,
			Logger:         log,
		}))
	}
	manager := session.NewManager(backup, channels...)

	commands, err := config.LoadCommands(cfg.CommandsFile)
	if err != nil {
		return err
	}
	deps := messaging.ServiceDeps{Gate: gate, Phones: phones}
	if ch, ok := manager.Channel(cfg.NotificationsChannel); ok {
		deps.Notifications = ch
		ch.OnMessage(command.NewListener(gate, ch, commands, log).HandlerFunc(ctx))
	} else {
		log.Warn("notifications channel not configured; keyword commands disabled", "channel", cfg.NotificationsChannel)
	}

	manager.Start(ctx)
	defer manager.Stop()

	if ch, ok := manager.Channel(cfg.OTPChannel); ok {
		deps.OTP = ch
		if cfg.PollerEnabled {
			opts := dispatch.Options{
				Interval:    cfg.PollInterval,
				ItemTimeout: cfg.DispatchItemTimeout,
				Template:    cfg.OTPMessageTemplate,
				Attempts:    attempts,
				Logger:      log,
			}
			if cfg.RabbitMQURL != "" {
				pub := amqpinfra.NewPublisher(cfg.RabbitMQURL, cfg.OTPEventsQueue, log)
				defer pub.Close()
				opts.Events = pub
			}
			poller := dispatch.NewPoller(otpRepo, ch, phones, opts)
			go poller.Run(ctx)
		}
	}

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Sessions:      manager,
		Messaging:     messaging.NewService(deps),
		Subscriptions: gate,
		Started:       started,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "channels", strings.Join(cfg.Channels, ","))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newAlerts fans operator alerts out to SNS and e-mail when configured.
func newAlerts(ctx context.Context, cfg *config.Config, log *slog.Logger) *alert.Fanout {
	var sinks []alert.Sink
	if cfg.AlertTopicARN != "" {
		if a, err := sns.NewTopicAlerter(ctx, cfg); err == nil {
			sinks = append(sinks, a)
		} else {
			log.Warn("SNS alerts not available", "err", err)
		}
	}
	if cfg.AlertEmailTo != "" {
		sinks = append(sinks, smtp.NewMailer(cfg))
	}
	return alert.NewFanout(log, sinks...)
}
