package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LineDTO описывает позицию заказа.
type LineDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CustomerDTO несёт данные покупателя.
type CustomerDTO struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// OrderDTO описывает заказ в ответах сервиса.
type OrderDTO struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	Lines           []LineDTO       `json:"lines"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Customer        CustomerDTO     `json:"customer"`
	DeliveryOption  string          `json:"delivery_option"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	DeletedAt       *time.Time      `json:"deleted_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateOrderRequest задаёт тело POST /orders.
type CreateOrderRequest struct {
	Type            string          `json:"type"`
	Lines           []LineDTO       `json:"lines"`
	Shipping        decimal.Decimal `json:"shipping"`
	Customer        CustomerDTO     `json:"customer"`
	DeliveryOption  string          `json:"delivery_option"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
}

// StockItemDTO описывает позицию проверки наличия.
type StockItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// AvailabilityRequest задаёт тело POST /inventory/check-availability.
type AvailabilityRequest struct {
	Items []StockItemDTO `json:"items"`
}

// ShortageDTO описывает нехватку по одному товару.
type ShortageDTO struct {
	ProductID string `json:"product_id"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
}

// AvailabilityResponse содержит результат проверки наличия.
type AvailabilityResponse struct {
	Available bool          `json:"available"`
	Shortages []ShortageDTO `json:"shortages"`
}

// ProductDTO описывает товар каталога.
type ProductDTO struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Image                  string          `json:"image,omitempty"`
	Price                  decimal.Decimal `json:"price"`
	Stock                  int32           `json:"stock"`
	CategoryID             string          `json:"category_id"`
	DetachedFromCategoryID string          `json:"detached_from_category_id,omitempty"`
	DeletedAt              *time.Time      `json:"deleted_at"`
}

// TrashedEntityDTO — запись корзины категорий, товаров или заказов.
type TrashedEntityDTO struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	DeletedAt               *time.Time `json:"deleted_at"`
	RestorableProductsCount int        `json:"restorable_products_count,omitempty"`
}

// OrderFromDomain строит DTO заказа.
func OrderFromDomain(o domain.Order) OrderDTO {
	lines := make([]LineDTO, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, LineDTO{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: MoneyFromMinor(line.UnitPriceMinor),
			Quantity:  line.Qty,
			Subtotal:  MoneyFromMinor(line.SubtotalMinor),
		})
	}
	return OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Type:            string(o.Type),
		Status:          string(o.Status),
		Lines:           lines,
		Subtotal:        MoneyFromMinor(o.SubtotalMinor),
		Shipping:        MoneyFromMinor(o.ShippingMinor),
		Total:           MoneyFromMinor(o.TotalMinor),
		Customer:        CustomerDTO(o.Customer),
		DeliveryOption:  string(o.DeliveryOption),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		DeletedAt:       o.DeletedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// ToDomain разбирает DTO заказа.
func (d OrderDTO) ToDomain() (domain.Order, error) {
	lines, err := linesToDomain(d.Lines, true)
	if err != nil {
		return domain.Order{}, err
	}
	subtotal, err := MoneyToMinor(d.Subtotal)
	if err != nil {
		return domain.Order{}, fmt.Errorf("subtotal: %w", err)
	}
	shipping, err := MoneyToMinor(d.Shipping)
	if err != nil {
		return domain.Order{}, fmt.Errorf("shipping: %w", err)
	}
	total, err := MoneyToMinor(d.Total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("total: %w", err)
	}
	return domain.Order{
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		Type:            domain.OrderType(d.Type),
		Status:          domain.OrderStatus(d.Status),
		Lines:           lines,
		SubtotalMinor:   subtotal,
		ShippingMinor:   shipping,
		TotalMinor:      total,
		Customer:        domain.Customer(d.Customer),
		DeliveryOption:  domain.DeliveryOption(d.DeliveryOption),
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		DeletedAt:       d.DeletedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// CreateOrderFromIntent строит тело запроса создания заказа.
func CreateOrderFromIntent(intent domain.OrderIntent) CreateOrderRequest {
	lines := make([]LineDTO, 0, len(intent.Lines))
	for _, line := range intent.Lines {
		lines = append(lines, LineDTO{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: MoneyFromMinor(line.UnitPriceMinor),
			Quantity:  line.Qty,
			Subtotal:  MoneyFromMinor(line.SubtotalMinor),
		})
	}
	return CreateOrderRequest{
		Type:            string(intent.Type),
		Lines:           lines,
		Shipping:        MoneyFromMinor(intent.ShippingMinor),
		Customer:        CustomerDTO(intent.Customer),
		DeliveryOption:  string(intent.DeliveryOption),
		ShippingAddress: intent.ShippingAddress,
		PaymentMethod:   intent.PaymentMethod,
	}
}

// ToIntent разбирает тело запроса создания заказа. Подытоги строк пересчитываются на сервере.
func (r CreateOrderRequest) ToIntent() (domain.OrderIntent, error) {
	lines, err := linesToDomain(r.Lines, false)
	if err != nil {
		return domain.OrderIntent{}, err
	}
	shipping, err := MoneyToMinor(r.Shipping)
	if err != nil {
		return domain.OrderIntent{}, fmt.Errorf("shipping: %w", err)
	}
	return domain.OrderIntent{
		Type:            domain.OrderType(r.Type),
		Lines:           lines,
		ShippingMinor:   shipping,
		Customer:        domain.Customer(r.Customer),
		DeliveryOption:  domain.DeliveryOption(r.DeliveryOption),
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   r.PaymentMethod,
	}, nil
}

func linesToDomain(dtos []LineDTO, keepSubtotal bool) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(dtos))
	for i, dto := range dtos {
		price, err := MoneyToMinor(dto.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("lines[%d].unit_price: %w", i, err)
		}
		line := domain.NewLine(dto.ProductID, dto.Name, price, dto.Quantity)
		if keepSubtotal {
			subtotal, err := MoneyToMinor(dto.Subtotal)
			if err != nil {
				return nil, fmt.Errorf("lines[%d].subtotal: %w", i, err)
			}
			line.SubtotalMinor = subtotal
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// StockItemsFromDomain строит тело проверки наличия.
func StockItemsFromDomain(items []domain.StockItem) AvailabilityRequest {
	dtos := make([]StockItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, StockItemDTO{ProductID: item.ProductID, Quantity: item.Qty})
	}
	return AvailabilityRequest{Items: dtos}
}

// StockItems разбирает тело проверки наличия.
func (r AvailabilityRequest) StockItems() []domain.StockItem {
	items := make([]domain.StockItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.StockItem{ProductID: item.ProductID, Qty: item.Quantity})
	}
	return items
}

// ShortagesFromDomain переводит нехватку в DTO.
func ShortagesFromDomain(shortages []domain.Shortage) []ShortageDTO {
	dtos := make([]ShortageDTO, 0, len(shortages))
	for _, s := range shortages {
		dtos = append(dtos, ShortageDTO(s))
	}
	return dtos
}

// ShortagesToDomain переводит DTO нехватки в доменные значения.
func ShortagesToDomain(dtos []ShortageDTO) []domain.Shortage {
	shortages := make([]domain.Shortage, 0, len(dtos))
	for _, d := range dtos {
		shortages = append(shortages, domain.Shortage(d))
	}
	return shortages
}

// AvailabilityFromDomain строит ответ проверки наличия.
func AvailabilityFromDomain(a domain.Availability) AvailabilityResponse {
	return AvailabilityResponse{Available: a.Available, Shortages: ShortagesFromDomain(a.Shortages)}
}

// ToDomain разбирает ответ проверки наличия.
func (r AvailabilityResponse) ToDomain() domain.Availability {
	return domain.Availability{Available: r.Available, Shortages: ShortagesToDomain(r.Shortages)}
}

// ProductFromDomain строит DTO товара.
func ProductFromDomain(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:                     p.ID,
		Name:                   p.Name,
		Image:                  p.Image,
		Price:                  MoneyFromMinor(p.PriceMinor),
		Stock:                  p.Stock,
		CategoryID:             p.CategoryID,
		DetachedFromCategoryID: p.DetachedFromCategoryID,
		DeletedAt:              p.DeletedAt,
	}
}

// ToDomain разбирает DTO товара.
func (d ProductDTO) ToDomain() (domain.Product, error) {
	price, err := MoneyToMinor(d.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price: %w", d.ID, err)
	}
	return domain.Product{
		ID:                     d.ID,
		Name:                   d.Name,
		Image:                  d.Image,
		PriceMinor:             price,
		Stock:                  d.Stock,
		CategoryID:             d.CategoryID,
		DetachedFromCategoryID: d.DetachedFromCategoryID,
		DeletedAt:              d.DeletedAt,
	}, nil
}

// TrashedFromDomain строит DTO записи корзины.
func TrashedFromDomain(e domain.RecyclableEntity) TrashedEntityDTO {
	return TrashedEntityDTO{
		ID:                      e.ID,
		Name:                    e.Name,
		DeletedAt:               e.DeletedAt,
		RestorableProductsCount: e.RestorableChildren,
	}
}

// ToDomain разбирает DTO записи корзины.
func (d TrashedEntityDTO) ToDomain(kind domain.EntityKind) domain.RecyclableEntity {
	return domain.RecyclableEntity{
		Kind:               kind,
		ID:                 d.ID,
		Name:               d.Name,
		DeletedAt:          d.DeletedAt,
		RestorableChildren: d.RestorableProductsCount,
	}
}

// TimelineEventDTO — событие истории заказа.
type TimelineEventDTO struct {
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// TimelineEventFromDomain строит DTO события истории.
func TimelineEventFromDomain(e domain.TimelineEvent) TimelineEventDTO {
	return TimelineEventDTO{Type: e.Type, Status: string(e.Status), Reason: e.Reason, Occurred: e.Occurred}
}

// ToDomain разбирает DTO события истории.
func (d TimelineEventDTO) ToDomain(orderID string) domain.TimelineEvent {
	return domain.TimelineEvent{
		OrderID:  orderID,
		Type:     d.Type,
		Status:   domain.OrderStatus(d.Status),
		Reason:   d.Reason,
		Occurred: d.Occurred,
	}
}
