package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, domain.DefaultPerPage},
		{-3, 5, 1, 5},
		{2, 500, 2, domain.MaxPerPage},
		{4, 15, 4, 15},
	}
	for _, tc := range cases {
		page, perPage := domain.NormalizePage(tc.page, tc.perPage)
		assert.Equal(t, tc.wantPage, page)
		assert.Equal(t, tc.wantPerPage, perPage)
	}
}

func TestPageOf(t *testing.T) {
	orders := make([]domain.Order, 0, 32)
	for i := 0; i < 32; i++ {
		orders = append(orders, domain.Order{ID: fmt.Sprintf("o-%02d", i)})
	}

	page := domain.PageOf(orders, 3, 15)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 32, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "o-30", page.Items[0].ID)

	beyond := domain.PageOf(orders, 9, 15)
	assert.Empty(t, beyond.Items)

	empty := domain.PageOf(nil, 1, 15)
	assert.Equal(t, 1, empty.LastPage)
	assert.Zero(t, empty.Total)
}
