package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// Ошибки валидации заказа и намерения.
	ErrOrderIDRequired         = errors.New("order_id is required")
	ErrOrderTypeInvalid        = errors.New("order type must be online or in-store")
	ErrOrderStatusInvalid      = errors.New("order status is not recognized")
	ErrCustomerNameRequired    = errors.New("customer name is required")
	ErrCustomerPhoneRequired   = errors.New("customer phone is required")
	ErrDeliveryOptionInvalid   = errors.New("delivery option must be pickup or delivery")
	ErrShippingAddressRequired = errors.New("shipping address is required for delivery")
	ErrPaymentMethodRequired   = errors.New("payment method is required")
	ErrShippingNegative        = errors.New("shipping cost must be non-negative")
	ErrLinesRequired           = errors.New("order must contain at least one line")
	ErrDuplicateLine           = errors.New("order contains the same product twice")
	ErrProductIDRequired       = errors.New("product_id is required")
	ErrLineQtyInvalid          = errors.New("line qty must be greater than zero")
	ErrLinePriceInvalid        = errors.New("line unit price must be non-negative")
	ErrLineSubtotalMismatch    = errors.New("line subtotal does not match unit price times qty")
	ErrSubtotalMismatch        = errors.New("order subtotal does not match lines sum")
	ErrTotalMismatch           = errors.New("order total does not match subtotal plus shipping")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// Детали нехватки лежат в *ShortageError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// Переход запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid transition")
	// По сущности уже выполняется изменяющий вызов.
	ErrMutationInFlight = errors.New("another mutation is in flight for this entity")
	// Заказ уже в корзине.
	ErrOrderDeleted = errors.New("order is deleted")

	// Ошибки корзины.
	ErrCartStockExceeded = errors.New("cart quantity exceeds available stock")
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrCartQtyInvalid    = errors.New("cart qty must be greater than zero")

	// Ошибки корзины удалённых сущностей.
	ErrEntityKindInvalid    = errors.New("entity kind is not supported")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrEntityNotTrashed     = errors.New("entity is not in the recycle bin")
	ErrEntityAlreadyTrashed = errors.New("entity is already in the recycle bin")
	ErrEntityPurged         = errors.New("entity was permanently deleted")
	ErrConfirmationMismatch = errors.New("force delete confirmation does not match entity")

	// Категории ошибок удалённого сервиса.
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrTransport        = errors.New("transport failure")

	// Ошибки идемпотентности.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ShortageError несёт построчную нехватку товара.
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	if len(e.Shortages) == 0 {
		return ErrInsufficientStock.Error()
	}
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s requested %d available %d", s.ProductID, s.Requested, s.Available))
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ShortageError) Unwrap() error {
	return ErrInsufficientStock
}

// TransitionError возвращается до любого сетевого вызова.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// RemoteError несёт HTTP-статус ответа удалённого сервиса.
// Unwrap возвращает категорию: ErrValidation, ErrPermissionDenied, ErrNotFound,
// ErrInvalidTransition или ErrTransport.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError классифицирует ответ по HTTP-статусу.
func NewRemoteError(op string, statusCode int, message string) *RemoteError {
	return &RemoteError{Op: op, StatusCode: statusCode, Message: message, Err: CategoryForStatus(statusCode)}
}

// NewTransportError оборачивает сетевую ошибку, когда ответа нет вовсе.
func NewTransportError(op string, cause error) *RemoteError {
	return &RemoteError{Op: op, Err: errors.Join(ErrTransport, cause)}
}

// CategoryForStatus сопоставляет HTTP-статус с категорией ошибки.
func CategoryForStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return ErrValidation
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrInvalidTransition
	default:
		return ErrTransport
	}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsShortage проверяет нехватку товара.
func IsShortage(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// AsShortage извлекает построчную нехватку.
func AsShortage(err error) (*ShortageError, bool) {
	var shortage *ShortageError
	if errors.As(err, &shortage) {
		return shortage, true
	}
	return nil, false
}

// IsNotFound объединяет локальные и удалённые «не найдено».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrEntityNotFound)
}

// IsRetryable сообщает, что пользователь может повторить действие вручную.
// Автоматических повторов нет ни для одной категории.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsIdempotencyConflict проверяет конфликт ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// JoinErrors склеивает список ошибок валидации в одну.
func JoinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
}

// IsInvalidTransition проверяет запрет перехода статуса, локальный или серверный.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
