package api

import (
	"encoding/json"
	"time"
)

// Envelope оборачивает все ответы сервиса.
type Envelope struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Errors    *ErrorDetails   `json:"errors,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorDetails — структурированные подробности ошибки (422).
type ErrorDetails struct {
	Shortages  []ShortageDTO `json:"shortages,omitempty"`
	Validation []string      `json:"validation,omitempty"`
}

// Paginated — данные страницы с серверной пагинацией.
type Paginated[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// CountDTO содержит ответ счётчика корзины.
type CountDTO struct {
	Count int `json:"count"`
}

// HeaderIdempotencyKey несёт ключ идемпотентности для POST /orders.
const HeaderIdempotencyKey = "Idempotency-Key"
