package domain

// Параметры серверной пагинации.
const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// NormalizePage приводит номер и размер страницы к допустимым значениям.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// LastPage возвращает номер последней страницы; пустая выборка имеет одну страницу.
func LastPage(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// PageOf вырезает страницу из уже отсортированного списка.
func PageOf(orders []Order, page, perPage int) OrderPage {
	page, perPage = NormalizePage(page, perPage)
	total := len(orders)

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	items := make([]Order, 0, end-start)
	for _, order := range orders[start:end] {
		items = append(items, order.Clone())
	}
	return OrderPage{
		Items:       items,
		CurrentPage: page,
		LastPage:    LastPage(total, perPage),
		PerPage:     perPage,
		Total:       total,
	}
}
