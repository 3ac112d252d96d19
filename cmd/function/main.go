package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/ivanoskov/fincontrol/internal/bot"
	"github.com/ivanoskov/fincontrol/internal/config"
	"github.com/ivanoskov/fincontrol/internal/events"
	"github.com/ivanoskov/fincontrol/internal/logger"
	"github.com/ivanoskov/fincontrol/internal/repository"
	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/rs/zerolog"
)

// Request is the incoming API Gateway event.
type Request struct {
	Body string `json:"body"`
}

// Response is returned to API Gateway.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// publisherDialer connects to the event broker.
type publisherDialer func(url, exchange string, log zerolog.Logger) (service.Publisher, error)

func dialAMQP(url, exchange string, log zerolog.Logger) (service.Publisher, error) {
	return events.NewAMQPPublisher(url, exchange, log)
}

var (
	initOnce sync.Once
	instance *bot.Bot
	initErr  error
	log      zerolog.Logger
)

// setup builds the bot once per warm container.
func setup() (*bot.Bot, error) {
	initOnce.Do(func() {
		cfg, err := config.LoadConfig()
		if err != nil {
			initErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			initErr = err
			return
		}
		log = logger.New(cfg.LogLevel)

		repo, err := repository.Open(cfg, log)
		if err != nil {
			initErr = err
			return
		}
		opts, err := trackerOptions(cfg, log, dialAMQP)
		if err != nil {
			initErr = err
			return
		}
		tracker := service.NewTracker(repo, log, opts...)

		instance, initErr = bot.NewBot(cfg.TelegramToken, tracker, cfg.TelegramOwnerID, log)
	})
	return instance, initErr
}

// trackerOptions configures the tracker like the long-polling binary does. The
// publisher stays open for the life of the container.
func trackerOptions(cfg *config.Config, log zerolog.Logger, dial publisherDialer) ([]service.Option, error) {
	opts := []service.Option{service.WithInvestmentGoal(cfg.InvestmentGoal)}
	if cfg.AMQPURL == "" {
		return opts, nil
	}
	publisher, err := dial(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events")
	return append(opts, service.WithPublisher(publisher)), nil
}

func Handler(ctx context.Context, request Request) (*Response, error) {
	b, err := setup()
	if err != nil {
		return errorResponse(err)
	}

	if err := b.HandleWebhook(ctx, []byte(request.Body)); err != nil {
		log.Error().Err(err).Msg("failed to handle webhook")
		return errorResponse(err)
	}

	return &Response{
		StatusCode: 200,
		Body:       "",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func errorResponse(err error) (*Response, error) {
	return &Response{
		StatusCode: 500,
		Body:       err.Error(),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func main() {
	// local entry point; the platform invokes Handler
}
