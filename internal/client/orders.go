package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Orders — удалённое хранилище заказов поверх REST API.
type Orders struct {
	c *Client
}

var _ domain.OrderRemote = (*Orders)(nil)

// Create создаёт заказ; сервер резервирует остатки в том же вызове.
func (o *Orders) Create(ctx context.Context, intent domain.OrderIntent, idempotencyKey string) (domain.Order, error) {
	headers := make(http.Header)
	if idempotencyKey != "" {
		headers.Set(api.HeaderIdempotencyKey, idempotencyKey)
	}
	return o.order(ctx, "create order", http.MethodPost, "/orders", api.CreateOrderFromIntent(intent), headers)
}

// Complete переводит заказ в completed.
func (o *Orders) Complete(ctx context.Context, orderID string) (domain.Order, error) {
	return o.order(ctx, "complete order", http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/complete", nil, nil)
}

// Cancel переводит заказ в cancelled.
func (o *Orders) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	return o.order(ctx, "cancel order", http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/cancel", nil, nil)
}

// Delete мягко удаляет заказ.
func (o *Orders) Delete(ctx context.Context, orderID string) error {
	return o.c.do(ctx, "delete order", http.MethodDelete, "/orders/"+url.PathEscape(orderID), nil, nil, nil, nil)
}

// List загружает страницу заказов.
func (o *Orders) List(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	values := url.Values{}
	if query.Status != "" {
		values.Set("status", string(query.Status))
	}
	if query.Type != "" {
		values.Set("type", string(query.Type))
	}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(query.PerPage))
	}

	var page api.Paginated[api.OrderDTO]
	if err := o.c.do(ctx, "list orders", http.MethodGet, "/orders", values, nil, nil, &page); err != nil {
		return domain.OrderPage{}, err
	}
	items, err := ordersToDomain("list orders", page.Items)
	if err != nil {
		return domain.OrderPage{}, err
	}
	return domain.OrderPage{
		Items:       items,
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
		PerPage:     page.PerPage,
		Total:       page.Total,
	}, nil
}

// ListTrashed загружает заказы из корзины.
func (o *Orders) ListTrashed(ctx context.Context) ([]domain.Order, error) {
	var dtos []api.OrderDTO
	if err := o.c.do(ctx, "list trashed orders", http.MethodGet, "/orders/trashed", nil, nil, nil, &dtos); err != nil {
		return nil, err
	}
	return ordersToDomain("list trashed orders", dtos)
}

// Timeline загружает историю событий заказа.
func (o *Orders) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	var dtos []api.TimelineEventDTO
	if err := o.c.do(ctx, "order timeline", http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/timeline", nil, nil, nil, &dtos); err != nil {
		return nil, err
	}
	events := make([]domain.TimelineEvent, 0, len(dtos))
	for _, dto := range dtos {
		events = append(events, dto.ToDomain(orderID))
	}
	return events, nil
}

func (o *Orders) order(ctx context.Context, op, method, path string, body any, headers http.Header) (domain.Order, error) {
	var dto api.OrderDTO
	if err := o.c.do(ctx, op, method, path, nil, body, headers, &dto); err != nil {
		return domain.Order{}, err
	}
	order, err := dto.ToDomain()
	if err != nil {
		return domain.Order{}, domain.NewTransportError(op, err)
	}
	return order, nil
}

func ordersToDomain(op string, dtos []api.OrderDTO) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(dtos))
	for _, dto := range dtos {
		order, err := dto.ToDomain()
		if err != nil {
			return nil, domain.NewTransportError(op, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}
