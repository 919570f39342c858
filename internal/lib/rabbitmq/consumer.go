package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/hr-storefront/internal/lib/sl"
)

// ErrPermanent помечает ошибку обработки, после которой сообщение нельзя
// возвращать в очередь: оно отбрасывается, а не передоставляется.
var ErrPermanent = errors.New("permanent failure")

// Permanent оборачивает ошибку как неустранимую.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeReject
)

// decide выбирает судьбу сообщения после обработки.
func decide(err error, redeliveries int, policy RetryPolicy) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrPermanent), redeliveries >= policy.MaxRedeliveries:
		return outcomeReject
	default:
		return outcomeRetry
	}
}

func redeliveries(headers amqp.Table) int {
	switch v := headers[headerRedeliveries].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Сообщения обрабатываются параллельно, не более 10 одновременно.
// После временной ошибки сообщение откладывается в очередь задержки,
// после постоянной или исчерпания повторов отклоняется без возврата.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, q QueueConfig, log *slog.Logger, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		q.QueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(sl.Op(op), slog.String("queue", q.QueueName))

	// публикация в очередь задержки идёт из нескольких горутин
	var pubMu sync.Mutex
	retry := func(d amqp.Delivery, attempt int) error {
		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers[headerRedeliveries] = int32(attempt)

		pubMu.Lock()
		defer pubMu.Unlock()
		return ch.Publish("", q.retryQueue(), false, false, amqp.Publishing{
			Headers:      headers,
			ContentType:  d.ContentType,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
		})
	}

	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					handleErr := handler(d.Body)
					attempt := redeliveries(d.Headers)

					switch decide(handleErr, attempt, q.Retry) {
					case outcomeAck:
						if err := d.Ack(false); err != nil {
							log.Error("failed to ack message", sl.Err(err))
						}
					case outcomeRetry:
						log.Warn("message handling failed, scheduling redelivery",
							sl.Err(handleErr), slog.Int("redelivery", attempt+1))
						if err := retry(d, attempt+1); err != nil {
							log.Error("failed to schedule redelivery", sl.Err(err))
							if err := d.Nack(false, true); err != nil {
								log.Error("failed to nack message", sl.Err(err))
							}
							return
						}
						if err := d.Ack(false); err != nil {
							log.Error("failed to ack message", sl.Err(err))
						}
					case outcomeReject:
						log.Error("failed to handle message, rejecting",
							sl.Err(handleErr), slog.Int("redeliveries", attempt))
						if err := d.Nack(false, false); err != nil {
							log.Error("failed to nack message", sl.Err(err))
						}
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
