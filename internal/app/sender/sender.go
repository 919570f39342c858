// Package sender собирает воркер, который отправляет квитанции по e-mail.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/hr-storefront/internal/config"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/hr-storefront/internal/lib/smtp"
	"github.com/magabrotheeeer/hr-storefront/internal/receipt"
	senderservice "github.com/magabrotheeeer/hr-storefront/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	queue         rabbitmq.QueueConfig
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.ReceiptQueues(rabbitmq.RetryPolicy{
		MaxRedeliveries: cfg.RabbitMQ.MessageRedeliveries,
		Delay:           cfg.RabbitMQ.MessageRetryDelay,
	})
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Exchange, queues)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(
		transport,
		receipt.NewGenerator(cfg.Payment.MerchantName),
		cfg.Payment.MerchantName,
		logger,
	)

	return &App{
		conn:          conn,
		ch:            ch,
		queue:         queues[0],
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, a.queue, a.logger, a.senderService.HandleReceipt)
	if err != nil {
		a.logger.Error("failed to start receipt consumer", slog.String("queue", a.queue.QueueName), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("receipt sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
