package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jmmolins87/NeuronIA-sub001/internal/app"
	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/config"
	"github.com/jmmolins87/NeuronIA-sub001/internal/notify"
	"github.com/jmmolins87/NeuronIA-sub001/internal/schedule"
	"github.com/jmmolins87/NeuronIA-sub001/internal/storage/postgres"
	transport "github.com/jmmolins87/NeuronIA-sub001/internal/transport/http"
	"github.com/jmmolins87/NeuronIA-sub001/migrations"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), logger)
		},
	}
}

func serve(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}

	sched, err := schedule.New(cfg.BusinessTimezone, cfg.BusinessOpen, cfg.BusinessClose, cfg.SlotMinutes)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	repo := postgres.NewBookingRepository(pool)
	clk := clock.NewSystem()
	sweeper := app.NewSweeper(repo)

	rescheduleOpts := []app.RescheduleOption{
		app.WithSameDayCutoff(cfg.SameDayCutoff),
	}
	if cfg.RescheduleTokenReissue {
		rescheduleOpts = append(rescheduleOpts, app.WithTokenReissue(cfg.RescheduleTokenTTL))
	}

	services := transport.Services{
		Availability: app.NewAvailabilityService(repo, sweeper, sched, clk),
		Reservation: app.NewReservationService(repo, sweeper, sched, clk,
			app.WithHoldTTL(cfg.HoldTTL),
			app.WithSessionTokenTTL(cfg.SessionTokenTTL),
		),
		Confirmation: app.NewConfirmationService(repo, sweeper, clk, notifier, logger,
			app.WithCancelTokenTTL(cfg.CancelTokenTTL),
			app.WithRescheduleTokenTTL(cfg.RescheduleTokenTTL),
			app.WithPublicBaseURL(cfg.PublicBaseURL),
		),
		Cancellation: app.NewCancellationService(repo, sweeper, clk, notifier, logger),
		Reschedule:   app.NewRescheduleService(repo, sweeper, sched, clk, rescheduleOpts...),
	}

	opts := transport.Options{
		CORSOrigins:      splitCSV(cfg.CORSOrigins),
		AllowNowOverride: cfg.AllowNowOverride,
	}
	if cfg.AllowNowOverride {
		logger.Warn().Msg("clock override enabled; do not run this in production")
	}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		opts.RateLimit = transport.RateLimit(client, cfg.RateLimitPerMinute, logger)
	}

	server := transport.NewServer(services, logger, opts)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.Start(":" + cfg.Port)
	}()
	logger.Info().Str("port", cfg.Port).Msg("api listening")

	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func buildNotifier(cfg config.Config, logger zerolog.Logger) (notify.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Warn().Msg("AMQP_URL not set; email dispatch disabled")
		return notify.NewNoop(logger), func() {}, nil
	}

	n, err := notify.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.OpsEmail, logger)
	if err != nil {
		return nil, nil, err
	}
	return n, func() { _ = n.Close() }, nil
}
