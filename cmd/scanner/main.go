package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scanner/internal/aws"
	"scanner/internal/cache"
	"scanner/internal/config"
	"scanner/internal/controller"
	"scanner/internal/database"
	"scanner/internal/events"
	"scanner/internal/notify"
	"scanner/internal/presence"
	"scanner/internal/provider/minecraft"
	"scanner/internal/rabbitmq"
	"scanner/internal/sampling"
	"scanner/internal/scanner"
	"scanner/internal/server"
	"scanner/pkg/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv(config.EnvConfigPath), "path to a JSON or YAML config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	setupLogger(cfg.Logging)
	log.Info().Str("app", cfg.AppName).Str("env", cfg.Env).Str("server", cfg.Server.Address).Msg("Starting presence scanner")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := sampling.New(cfg.Sampling.Model, samplingParams(cfg.Sampling))
	if err != nil {
		log.Error().Err(err).Msg("Invalid sampling model")
		return 1
	}

	db, err := database.New(ctx, cfg.MongoDB)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database connection")
		return 1
	}

	optional := make(map[string]controller.Pinger)

	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Known player cache disabled")
		} else {
			db = database.WithKnownPlayers(db, redisCache)
			optional["cache"] = redisCache.Ping
		}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	m := metrics.NewManager()

	emitterOpts := []events.Option{
		events.WithSkipZeroSessions(cfg.Sessions.SkipZeroDuration),
		events.WithRecorder(m),
	}

	if cfg.RabbitMQ.URL != "" {
		rabbit, err := rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ publishing disabled")
		} else {
			defer rabbit.Close()
			publisher, err := rabbitmq.NewEventPublisher(rabbit, cfg.RabbitMQ.ExchangeName)
			if err != nil {
				log.Warn().Err(err).Msg("RabbitMQ publishing disabled")
			} else {
				emitterOpts = append(emitterOpts, events.WithEventSinks(publisher))
				optional["rabbit"] = func(context.Context) error { return rabbit.Health() }
			}
		}
	}

	telegram, err := notify.NewTelegramNotifier(cfg.Telegram)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifications disabled")
	} else if telegram != nil {
		emitterOpts = append(emitterOpts, events.WithEventSinks(telegram))
	}

	if cfg.S3.Bucket != "" {
		files, err := aws.NewFileService(ctx, cfg.S3)
		if err == nil {
			err = files.TestConnection(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Snapshot archive disabled")
		} else {
			emitterOpts = append(emitterOpts, events.WithSnapshotSinks(aws.NewSnapshotArchive(files, cfg.S3.Prefix)))
			optional["file_service"] = files.TestConnection
		}
	}

	tracker := presence.NewTracker(model)
	emitter := events.NewEmitter(db, emitterOpts...)
	loop := scanner.New(
		minecraft.New(cfg.Server.Address),
		tracker,
		emitter,
		scanner.WithQueryTimeout(cfg.Server.QueryTimeout),
		scanner.WithFallbackInterval(cfg.Server.FallbackInterval),
		scanner.WithFlushTimeout(cfg.Server.FlushTimeout),
		scanner.WithRecorder(m),
	)

	srv := server.New(
		cfg.HTTP,
		controller.NewServer(db, optional),
		controller.NewPresenceController(db, tracker, loop),
		m.Handler(),
		m,
	)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	flushErr := loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if flushErr != nil {
		log.Error().Err(flushErr).Msg("Exiting after incomplete shutdown flush")
		return 1
	}

	log.Info().Msg("Scanner stopped")
	return 0
}

func samplingParams(cfg config.SamplingConfig) sampling.Params {
	return sampling.Params{
		Threshold: sampling.Bounds{Base: cfg.Threshold.Base, Min: cfg.Threshold.Min, Max: cfg.Threshold.Max},
		Interval:  sampling.Bounds{Base: cfg.Interval.Base, Min: cfg.Interval.Min, Max: cfg.Interval.Max},

		VisibilityExponent: cfg.VisibilityExponent,
		SizeExponent:       cfg.SizeExponent,
		IntervalExponent:   cfg.IntervalExponent,
	}
}

func setupLogger(config config.LoggingConfig) {
	// Set global log level
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch config.Format {
	case "json":
		// JSON is the default for zerolog
	case "console", "combined":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Logger = log.With().Timestamp().Logger()
}
