package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanoskov/fincontrol/internal/bot"
	"github.com/ivanoskov/fincontrol/internal/config"
	"github.com/ivanoskov/fincontrol/internal/events"
	"github.com/ivanoskov/fincontrol/internal/logger"
	"github.com/ivanoskov/fincontrol/internal/repository"
	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_TOKEN is required")
	}

	l := logger.New(cfg.LogLevel)

	repo, err := repository.Open(cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to open storage")
	}
	defer repo.Close()

	opts := []service.Option{service.WithInvestmentGoal(cfg.InvestmentGoal)}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, l)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to AMQP broker")
		}
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		l.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events")
	}

	tracker := service.NewTracker(repo, l, opts...)

	b, err := bot.NewBot(cfg.TelegramToken, tracker, cfg.TelegramOwnerID, l)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to start bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Error().Err(err).Msg("bot stopped")
		return
	}
	l.Info().Msg("shutting down")
}
