package domain

// StockItem — запрос количества товара к складу.
type StockItem struct {
	ProductID string
	Qty       int32
}

// Shortage описывает нехватку по одной позиции.
type Shortage struct {
	ProductID string
	Requested int32
	Available int32
}

// Availability — результат проверки наличия.
type Availability struct {
	Available bool
	Shortages []Shortage
}

// Err возвращает *ShortageError, если есть нехватка, иначе nil.
func (a Availability) Err() error {
	if a.Available && len(a.Shortages) == 0 {
		return nil
	}
	return &ShortageError{Shortages: append([]Shortage(nil), a.Shortages...)}
}

// MergeStockItems суммирует количества по одинаковым товарам, сохраняя порядок первого вхождения.
func MergeStockItems(items []StockItem) []StockItem {
	index := make(map[string]int, len(items))
	merged := make([]StockItem, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
