package domain

// orderTransitions перечисляет все допустимые переходы статуса.
// in-progress и archived объявлены, но из pending в них пути нет.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusInProgress: nil,
	OrderStatusCompleted:  nil,
	OrderStatusCancelled:  nil,
	OrderStatusArchived:   nil,
}

// AllowedTransitions возвращает статусы, в которые можно перейти из from.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[from]...)
}

// CanTransition сообщает, разрешён ли переход from → to.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func IsTerminal(status OrderStatus) bool {
	return len(orderTransitions[status]) == 0
}

// ValidateTransition возвращает *TransitionError, если переход запрещён.
func ValidateTransition(orderID string, from, to OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{OrderID: orderID, From: from, To: to}
}
