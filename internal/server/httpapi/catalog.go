package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (s *Server) listProducts(r *http.Request) (result, error) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		return result{}, err
	}
	items := make([]api.ProductDTO, 0, len(products))
	for _, p := range products {
		items = append(items, api.ProductFromDomain(p))
	}
	return ok(items), nil
}

func (s *Server) listTrashed(kind domain.EntityKind) handlerFunc {
	return func(r *http.Request) (result, error) {
		entities, err := s.catalog.ListTrashed(r.Context(), kind)
		if err != nil {
			return result{}, err
		}
		items := make([]api.TrashedEntityDTO, 0, len(entities))
		for _, e := range entities {
			items = append(items, api.TrashedFromDomain(e))
		}
		return ok(items), nil
	}
}

func (s *Server) countTrashed(kind domain.EntityKind) handlerFunc {
	return func(r *http.Request) (result, error) {
		count, err := s.catalog.TrashCount(r.Context(), kind)
		if err != nil {
			return result{}, err
		}
		return ok(api.CountDTO{Count: count}), nil
	}
}

func (s *Server) softDelete(kind domain.EntityKind) handlerFunc {
	return func(r *http.Request) (result, error) {
		if err := s.catalog.SoftDelete(r.Context(), kind, pathID(r)); err != nil {
			return result{}, err
		}
		return done(string(kind) + " moved to recycle bin"), nil
	}
}

func (s *Server) restore(kind domain.EntityKind) handlerFunc {
	return func(r *http.Request) (result, error) {
		if err := s.catalog.Restore(r.Context(), kind, pathID(r)); err != nil {
			return result{}, err
		}
		return done(string(kind) + " restored"), nil
	}
}

func (s *Server) forceDelete(kind domain.EntityKind) handlerFunc {
	return func(r *http.Request) (result, error) {
		if err := s.catalog.ForceDelete(r.Context(), kind, pathID(r)); err != nil {
			return result{}, err
		}
		return done(string(kind) + " permanently deleted"), nil
	}
}
