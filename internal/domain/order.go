package domain

import "time"

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// Товар зарезервирован, продажа не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusInProgress объявлен в таблице переходов, но ни один путь в него не ведёт.
	OrderStatusInProgress OrderStatus = "in-progress"
	// Резерв списан со склада.
	OrderStatusCompleted OrderStatus = "completed"
	// Резерв возвращён в доступный остаток.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusArchived объявлен в таблице переходов, но недостижим.
	OrderStatusArchived OrderStatus = "archived"
)

// Valid проверяет, что статус относится к известным значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled, OrderStatusArchived:
		return true
	default:
		return false
	}
}

// OrderType различает онлайн-заказы и продажи в магазине.
type OrderType string

const (
	OrderTypeOnline  OrderType = "online"
	OrderTypeInStore OrderType = "in-store"
)

// Valid проверяет тип заказа.
func (t OrderType) Valid() bool {
	return t == OrderTypeOnline || t == OrderTypeInStore
}

// DeliveryOption — способ получения заказа.
type DeliveryOption string

const (
	DeliveryPickup   DeliveryOption = "pickup"
	DeliveryDelivery DeliveryOption = "delivery"
)

// Valid проверяет способ получения.
func (d DeliveryOption) Valid() bool {
	return d == DeliveryPickup || d == DeliveryDelivery
}

// OrderLine — одна позиция заказа.
type OrderLine struct {
	ProductID string
	// Name кэшируется на момент оформления и не меняется при переименовании товара.
	Name string
	// в минимальных денежных единицах
	UnitPriceMinor int64
	Qty            int32
	SubtotalMinor  int64
}

// Customer — контактные данные покупателя.
type Customer struct {
	Name  string
	Phone string
	Email string // Может быть пустым.
}

// Order агрегирует состояние заказа, его позиции и сумму.
type Order struct {
	ID string
	// OrderNumber назначается сервером и для клиента непрозрачен.
	OrderNumber     string
	Type            OrderType
	Status          OrderStatus
	Lines           []OrderLine
	SubtotalMinor   int64
	ShippingMinor   int64
	TotalMinor      int64
	Customer        Customer
	DeliveryOption  DeliveryOption
	ShippingAddress string
	PaymentMethod   string
	// DeletedAt не зависит от Status: завершённый заказ тоже может лежать в корзине.
	DeletedAt *time.Time
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDeleted сообщает, помечен ли заказ как удалённый.
func (o Order) IsDeleted() bool {
	return o.DeletedAt != nil
}

// StockItems возвращает позиции заказа в форме запроса к складу.
func (o Order) StockItems() []StockItem {
	return linesToStockItems(o.Lines)
}

// Clone возвращает копию заказа, не разделяющую слайсы и указатели с исходным.
func (o Order) Clone() Order {
	dst := o
	dst.Lines = append([]OrderLine(nil), o.Lines...)
	if o.DeletedAt != nil {
		deletedAt := *o.DeletedAt
		dst.DeletedAt = &deletedAt
	}
	return dst
}

// ValidateInvariants проверяет денежные и структурные инварианты заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if !o.Type.Valid() {
		errs = append(errs, ErrOrderTypeInvalid)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.ShippingMinor < 0 {
		errs = append(errs, ErrShippingNegative)
	}

	var subtotal int64
	for _, line := range o.Lines {
		errs = append(errs, validateLine(line)...)
		subtotal += line.SubtotalMinor
	}
	if subtotal != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.SubtotalMinor+o.ShippingMinor != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// OrderIntent собирают корзина или форма онлайн-заказа.
type OrderIntent struct {
	Type            OrderType
	Lines           []OrderLine
	ShippingMinor   int64
	Customer        Customer
	DeliveryOption  DeliveryOption
	ShippingAddress string
	PaymentMethod   string
}

// SubtotalMinor считает сумму позиций.
func (i OrderIntent) SubtotalMinor() int64 {
	var sum int64
	for _, line := range i.Lines {
		sum += line.SubtotalMinor
	}
	return sum
}

// TotalMinor = SubtotalMinor + ShippingMinor.
func (i OrderIntent) TotalMinor() int64 {
	return i.SubtotalMinor() + i.ShippingMinor
}

// StockItems возвращает позиции намерения в форме запроса к складу.
func (i OrderIntent) StockItems() []StockItem {
	return linesToStockItems(i.Lines)
}

// Validate проверяет намерение до обращения к удалённому сервису.
func (i OrderIntent) Validate() []error {
	var errs []error

	if !i.Type.Valid() {
		errs = append(errs, ErrOrderTypeInvalid)
	}
	if i.Customer.Name == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if i.Customer.Phone == "" {
		errs = append(errs, ErrCustomerPhoneRequired)
	}
	if !i.DeliveryOption.Valid() {
		errs = append(errs, ErrDeliveryOptionInvalid)
	}
	if i.DeliveryOption == DeliveryDelivery && i.ShippingAddress == "" {
		errs = append(errs, ErrShippingAddressRequired)
	}
	if i.PaymentMethod == "" {
		errs = append(errs, ErrPaymentMethodRequired)
	}
	if i.ShippingMinor < 0 {
		errs = append(errs, ErrShippingNegative)
	}
	if len(i.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	seen := make(map[string]struct{}, len(i.Lines))
	for _, line := range i.Lines {
		errs = append(errs, validateLine(line)...)
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[line.ProductID] = struct{}{}
	}

	return errs
}

// NewLine собирает позицию заказа и вычисляет её сумму.
func NewLine(productID, name string, unitPriceMinor int64, qty int32) OrderLine {
	return OrderLine{
		ProductID:      productID,
		Name:           name,
		UnitPriceMinor: unitPriceMinor,
		Qty:            qty,
		SubtotalMinor:  unitPriceMinor * int64(qty),
	}
}

func validateLine(line OrderLine) []error {
	var errs []error
	if line.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if line.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}
	if line.UnitPriceMinor < 0 {
		errs = append(errs, ErrLinePriceInvalid)
	}
	if line.UnitPriceMinor*int64(line.Qty) != line.SubtotalMinor {
		errs = append(errs, ErrLineSubtotalMismatch)
	}
	return errs
}

func linesToStockItems(lines []OrderLine) []StockItem {
	items := make([]StockItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, StockItem{ProductID: line.ProductID, Qty: line.Qty})
	}
	return items
}
