package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// RecycleBin — операции корзины для категорий, товаров и заказов.
type RecycleBin struct {
	c *Client
}

var _ domain.RecycleBinRemote = (*RecycleBin)(nil)

// SoftDelete переносит сущность в корзину.
func (b *RecycleBin) SoftDelete(ctx context.Context, kind domain.EntityKind, id string) error {
	path, err := entityPath(kind, id, "")
	if err != nil {
		return err
	}
	return b.c.do(ctx, "delete "+string(kind), http.MethodDelete, path, nil, nil, nil, nil)
}

// Restore возвращает сущность из корзины.
func (b *RecycleBin) Restore(ctx context.Context, kind domain.EntityKind, id string) error {
	path, err := entityPath(kind, id, "/restore")
	if err != nil {
		return err
	}
	return b.c.do(ctx, "restore "+string(kind), http.MethodPost, path, nil, nil, nil, nil)
}

// ForceDelete безвозвратно удаляет сущность.
func (b *RecycleBin) ForceDelete(ctx context.Context, kind domain.EntityKind, id string) error {
	path, err := entityPath(kind, id, "/force")
	if err != nil {
		return err
	}
	return b.c.do(ctx, "force delete "+string(kind), http.MethodDelete, path, nil, nil, nil, nil)
}

// ListTrashed загружает содержимое корзины указанного типа.
func (b *RecycleBin) ListTrashed(ctx context.Context, kind domain.EntityKind) ([]domain.RecyclableEntity, error) {
	if !kind.Valid() {
		return nil, domain.ErrEntityKindInvalid
	}

	if kind == domain.EntityKindOrder {
		orders, err := b.c.Orders().ListTrashed(ctx)
		if err != nil {
			return nil, err
		}
		entities := make([]domain.RecyclableEntity, 0, len(orders))
		for _, o := range orders {
			entities = append(entities, domain.OrderToRecyclable(o))
		}
		return entities, nil
	}

	var dtos []api.TrashedEntityDTO
	if err := b.c.do(ctx, "list trashed "+string(kind), http.MethodGet, "/"+kind.Collection()+"/recycle-bin", nil, nil, nil, &dtos); err != nil {
		return nil, err
	}
	entities := make([]domain.RecyclableEntity, 0, len(dtos))
	for _, dto := range dtos {
		entities = append(entities, dto.ToDomain(kind))
	}
	return entities, nil
}

// TrashCount загружает авторитетный размер корзины.
func (b *RecycleBin) TrashCount(ctx context.Context, kind domain.EntityKind) (int, error) {
	if !kind.Valid() {
		return 0, domain.ErrEntityKindInvalid
	}
	var count api.CountDTO
	if err := b.c.do(ctx, "trash count "+string(kind), http.MethodGet, "/"+kind.Collection()+"/recycle-bin/count", nil, nil, nil, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

func entityPath(kind domain.EntityKind, id, suffix string) (string, error) {
	if !kind.Valid() {
		return "", domain.ErrEntityKindInvalid
	}
	return "/" + kind.Collection() + "/" + url.PathEscape(id) + suffix, nil
}
