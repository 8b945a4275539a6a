package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated   EventType = domain.OrderEventCreated
	EventTypeOrderCompleted EventType = domain.OrderEventCompleted
	EventTypeOrderCancelled EventType = domain.OrderEventCancelled
	EventTypeOrderDeleted   EventType = domain.OrderEventDeleted
	EventTypeOrderRestored  EventType = domain.OrderEventRestored
	EventTypeOrderPurged    EventType = domain.OrderEventPurged
)

// TopicOrderEvents получает события жизненного цикла заказа.
const TopicOrderEvents = "storefront.order.events"

// OrderEventMessage описывает JSON события заказа в Kafka.
type OrderEventMessage struct {
	EventType   EventType `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	Status      string    `json:"status"`
	TotalMinor  int64     `json:"total_minor"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderEventMessage собирает сообщение из доменного события.
func NewOrderEventMessage(event domain.OrderEvent) OrderEventMessage {
	ts := event.Occurred
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return OrderEventMessage{
		EventType:   EventType(event.Type),
		OrderID:     event.OrderID,
		OrderNumber: event.OrderNumber,
		Status:      string(event.Status),
		TotalMinor:  event.TotalMinor,
		Timestamp:   ts,
	}
}

// Domain возвращает доменное событие.
func (m OrderEventMessage) Domain() domain.OrderEvent {
	return domain.OrderEvent{
		Type:        string(m.EventType),
		OrderID:     m.OrderID,
		OrderNumber: m.OrderNumber,
		Status:      domain.OrderStatus(m.Status),
		TotalMinor:  m.TotalMinor,
		Occurred:    m.Timestamp,
	}
}
