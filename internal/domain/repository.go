package domain

// OrderFilter отбирает заказы в хранилище сервера.
type OrderFilter struct {
	Status  OrderStatus // Пусто: любой статус.
	Type    OrderType   // Пусто: любой тип.
	Page    int
	PerPage int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderVersionConflict, если ID занят.
	Create(order Order) error
	// Get возвращает заказ (в том числе удалённый) или ErrOrderNotFound.
	Get(id string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// List возвращает «живые» заказы, новые первыми.
	List(filter OrderFilter) (OrderPage, error)
	// ListTrashed возвращает мягко удалённые заказы.
	ListTrashed() ([]Order, error)
	// Purge удаляет заказ безвозвратно.
	Purge(id string) error
}

// CatalogRepository хранит категории и товары эталонного сервиса.
type CatalogRepository interface {
	GetCategory(id string) (Category, error)
	SaveCategory(category Category) error
	PurgeCategory(id string) error
	ListCategories(trashed bool) ([]Category, error)

	GetProduct(id string) (Product, error)
	SaveProduct(product Product) error
	PurgeProduct(id string) error
	ListProducts(trashed bool) ([]Product, error)
}
