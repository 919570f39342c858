package rabbitmq

import "time"

const (
	// Exchange общий exchange витрины.
	Exchange = "storefront"
	// RoutingCheckoutConfirmed ключ события подтверждённой оплаты.
	RoutingCheckoutConfirmed = "checkout.confirmed"
	// QueueReceiptEmail очередь почтового воркера квитанций.
	QueueReceiptEmail = "receipt.email"

	// headerRedeliveries число уже выполненных повторов сообщения.
	headerRedeliveries = "x-redeliveries"
)

// RetryPolicy повторная доставка после временной ошибки обработчика.
// Сообщение ждёт Delay в очереди <queue>.retry и возвращается в работу;
// после MaxRedeliveries повторов оно уходит в <queue>.dead.
type RetryPolicy struct {
	MaxRedeliveries int
	Delay           time.Duration
}

type QueueConfig struct {
	QueueName  string
	RoutingKey string
	Retry      RetryPolicy
}

func (q QueueConfig) retryQueue() string { return q.QueueName + ".retry" }

func (q QueueConfig) deadQueue() string { return q.QueueName + ".dead" }

// ReceiptQueues очереди, которые слушает воркер квитанций.
func ReceiptQueues(retry RetryPolicy) []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueReceiptEmail, RoutingKey: RoutingCheckoutConfirmed, Retry: retry},
	}
}
