// Package rabbitmq подключение к RabbitMQ, объявление топологии,
// публикация и потребление JSON-сообщений.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, повторяя попытку retries раз с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	if retries < 1 {
		retries = 1
	}
	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// declareQueue объявляет рабочую очередь, а при заданной политике повторов
// ещё очередь задержки и очередь для сообщений, исчерпавших повторы.
func declareQueue(ch *amqp.Channel, exchange string, q QueueConfig) error {
	var args amqp.Table
	if q.Retry.MaxRedeliveries > 0 {
		if _, err := ch.QueueDeclare(q.deadQueue(), true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.deadQueue(), err)
		}
		_, err := ch.QueueDeclare(q.retryQueue(), true, false, false, false, amqp.Table{
			"x-message-ttl":             q.Retry.Delay.Milliseconds(),
			"x-dead-letter-exchange":    exchange,
			"x-dead-letter-routing-key": q.RoutingKey,
		})
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.retryQueue(), err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.deadQueue(),
		}
	}

	if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", q.QueueName, err)
	}
	if err := ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s with routing key %s: %w", q.QueueName, q.RoutingKey, err)
	}
	return nil
}

// SetupChannel открывает канал, объявляет direct-exchange и привязанные к нему очереди.
func SetupChannel(conn *amqp.Connection, exchange string, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if err := declareQueue(ch, exchange, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return ch, nil
}
