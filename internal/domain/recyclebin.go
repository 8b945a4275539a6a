package domain

import "time"

const (
	// После этого срока внешний планировщик удаляет сущность окончательно.
	RetentionWindow = 30 * 24 * time.Hour
	// Столько дней до удаления сущность помечается как скоро истекающая.
	ExpiryWarningDays = 25
)

// EntityKind — тип сущности, поддерживающей корзину.
type EntityKind string

const (
	EntityKindCategory EntityKind = "category"
	EntityKindProduct  EntityKind = "product"
	EntityKindOrder    EntityKind = "order"
)

// Valid проверяет тип сущности.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindCategory, EntityKindProduct, EntityKindOrder:
		return true
	default:
		return false
	}
}

// Collection возвращает сегмент пути REST-ресурса.
func (k EntityKind) Collection() string {
	switch k {
	case EntityKindCategory:
		return "categories"
	case EntityKindProduct:
		return "products"
	case EntityKindOrder:
		return "orders"
	default:
		return ""
	}
}

// RecyclableEntity описывает категорию, товар или заказ в корзине.
type RecyclableEntity struct {
	Kind EntityKind
	ID   string
	Name string
	// DeletedAt == nil означает «живую» сущность.
	DeletedAt *time.Time
	// Сколько дочерних сущностей сервер вернёт при восстановлении.
	RestorableChildren int
}

// IsTrashed сообщает, что сущность в корзине.
func (e RecyclableEntity) IsTrashed() bool {
	return e.DeletedAt != nil
}

// Age возвращает время, прошедшее с мягкого удаления.
func (e RecyclableEntity) Age(now time.Time) time.Duration {
	if e.DeletedAt == nil {
		return 0
	}
	return now.Sub(*e.DeletedAt)
}

// IsExpiring сообщает, что с удаления прошло не меньше thresholdDays суток.
// Граница включительная: ровно 25 суток уже считаются «скоро истекает».
func (e RecyclableEntity) IsExpiring(now time.Time, thresholdDays int) bool {
	if e.DeletedAt == nil {
		return false
	}
	return e.Age(now) >= time.Duration(thresholdDays)*24*time.Hour
}

// PurgeAt возвращает момент окончательного удаления внешним процессом.
func (e RecyclableEntity) PurgeAt() time.Time {
	if e.DeletedAt == nil {
		return time.Time{}
	}
	return e.DeletedAt.Add(RetentionWindow)
}

// OrderToRecyclable представляет заказ в форме записи корзины.
func OrderToRecyclable(o Order) RecyclableEntity {
	name := o.OrderNumber
	if name == "" {
		name = o.ID
	}
	return RecyclableEntity{Kind: EntityKindOrder, ID: o.ID, Name: name, DeletedAt: o.DeletedAt}
}

// CategoryToRecyclable представляет категорию в форме записи корзины.
func CategoryToRecyclable(c Category) RecyclableEntity {
	return RecyclableEntity{
		Kind:               EntityKindCategory,
		ID:                 c.ID,
		Name:               c.Name,
		DeletedAt:          c.DeletedAt,
		RestorableChildren: c.RestorableProductsCount,
	}
}

// ProductToRecyclable представляет товар в форме записи корзины.
func ProductToRecyclable(p Product) RecyclableEntity {
	return RecyclableEntity{Kind: EntityKindProduct, ID: p.ID, Name: p.Name, DeletedAt: p.DeletedAt}
}
