package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (s *Server) checkAvailability(r *http.Request) (result, error) {
	var req api.AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		return result{}, err
	}
	availability, err := s.orders.CheckAvailability(r.Context(), req.StockItems())
	if err != nil {
		return result{}, err
	}
	return ok(api.AvailabilityFromDomain(availability)), nil
}

func (s *Server) listOrders(r *http.Request) (result, error) {
	query := r.URL.Query()
	page, err := intParam(query.Get("page"), 1)
	if err != nil {
		return result{}, err
	}
	perPage, err := intParam(query.Get("per_page"), domain.DefaultPerPage)
	if err != nil {
		return result{}, err
	}

	orders, err := s.orders.List(r.Context(), domain.OrderQuery{
		Status:  domain.OrderStatus(query.Get("status")),
		Type:    domain.OrderType(query.Get("type")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return result{}, err
	}

	items := make([]api.OrderDTO, 0, len(orders.Items))
	for _, order := range orders.Items {
		items = append(items, api.OrderFromDomain(order))
	}
	return ok(api.Paginated[api.OrderDTO]{
		Items:       items,
		CurrentPage: orders.CurrentPage,
		LastPage:    orders.LastPage,
		PerPage:     orders.PerPage,
		Total:       orders.Total,
	}), nil
}

func (s *Server) createOrder(r *http.Request) (result, error) {
	var req api.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		return result{}, err
	}
	intent, err := req.ToIntent()
	if err != nil {
		return result{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	order, err := s.orders.Create(r.Context(), intent)
	if err != nil {
		return result{}, err
	}
	return created(api.OrderFromDomain(order)), nil
}

func (s *Server) completeOrder(r *http.Request) (result, error) {
	order, err := s.orders.Complete(r.Context(), pathID(r))
	if err != nil {
		return result{}, err
	}
	return ok(api.OrderFromDomain(order)), nil
}

func (s *Server) cancelOrder(r *http.Request) (result, error) {
	order, err := s.orders.Cancel(r.Context(), pathID(r))
	if err != nil {
		return result{}, err
	}
	return ok(api.OrderFromDomain(order)), nil
}

func (s *Server) deleteOrder(r *http.Request) (result, error) {
	if err := s.orders.Delete(r.Context(), pathID(r)); err != nil {
		return result{}, err
	}
	return done("order moved to recycle bin"), nil
}

func (s *Server) restoreOrder(r *http.Request) (result, error) {
	order, err := s.orders.Restore(r.Context(), pathID(r))
	if err != nil {
		return result{}, err
	}
	return ok(api.OrderFromDomain(order)), nil
}

func (s *Server) forceDeleteOrder(r *http.Request) (result, error) {
	if err := s.orders.ForceDelete(r.Context(), pathID(r)); err != nil {
		return result{}, err
	}
	return done("order permanently deleted"), nil
}

func (s *Server) listTrashedOrders(r *http.Request) (result, error) {
	orders, err := s.orders.ListTrashed(r.Context())
	if err != nil {
		return result{}, err
	}
	items := make([]api.OrderDTO, 0, len(orders))
	for _, order := range orders {
		items = append(items, api.OrderFromDomain(order))
	}
	return ok(items), nil
}

func (s *Server) countTrashedOrders(r *http.Request) (result, error) {
	count, err := s.orders.TrashCount(r.Context())
	if err != nil {
		return result{}, err
	}
	return ok(api.CountDTO{Count: count}), nil
}

func (s *Server) orderTimeline(r *http.Request) (result, error) {
	events, err := s.orders.Timeline(r.Context(), pathID(r))
	if err != nil {
		return result{}, err
	}
	items := make([]api.TimelineEventDTO, 0, len(events))
	for _, event := range events {
		items = append(items, api.TimelineEventFromDomain(event))
	}
	return ok(items), nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadRequest, raw)
	}
	return value, nil
}
