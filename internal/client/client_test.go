package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/server/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/recyclebin"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/store"
)

type remoteEnv struct {
	client *Client
	ledger *inventory.Ledger
	server *httptest.Server
}

func newRemoteEnv(t *testing.T) remoteEnv {
	t.Helper()
	logger := log.New().WithField("test", t.Name())

	ledger := inventory.NewLedger(logger)
	require.NoError(t, ledger.SetOnHand("p1", 4))
	require.NoError(t, ledger.SetOnHand("p2", 10))

	catalogRepo := memory.NewCatalogRepository()
	require.NoError(t, catalogRepo.SaveCategory(domain.Category{ID: domain.FallbackCategoryID, Name: "Uncategorized"}))
	require.NoError(t, catalogRepo.SaveCategory(domain.Category{ID: "c1", Name: "Garden"}))
	require.NoError(t, catalogRepo.SaveProduct(domain.Product{ID: "p1", Name: "Rake", PriceMinor: 1999, CategoryID: "c1"}))
	require.NoError(t, catalogRepo.SaveProduct(domain.Product{ID: "p2", Name: "Seeds", PriceMinor: 250, CategoryID: "c1"}))

	srv := httpapi.NewServer(
		orders.NewService(memory.NewOrderRepository(), memory.NewTimelineRepository(), ledger, orders.WithLogger(logger)),
		catalog.NewService(catalogRepo, ledger, logger),
		httpapi.WithLogger(logger),
		httpapi.WithIdempotency(memory.NewIdempotencyRepository()),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, WithLogger(logger))
	require.NoError(t, err)
	return remoteEnv{client: c, ledger: ledger, server: ts}
}

func intentFor(lines ...domain.OrderLine) domain.OrderIntent {
	return domain.OrderIntent{
		Type:           domain.OrderTypeInStore,
		Lines:          lines,
		Customer:       domain.Customer{Name: "Eve", Phone: "+300"},
		DeliveryOption: domain.DeliveryPickup,
		PaymentMethod:  "cash",
	}
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080")
	require.Error(t, err)
}

func TestClient_ListProductsParsesDecimalPrices(t *testing.T) {
	env := newRemoteEnv(t)

	products, err := env.client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	byID := map[string]domain.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}
	assert.Equal(t, int64(1999), byID["p1"].PriceMinor)
	assert.Equal(t, int32(4), byID["p1"].Stock)
}

func TestClient_RemoteErrorsAreClassified(t *testing.T) {
	env := newRemoteEnv(t)
	ctx := context.Background()
	orderRemote := env.client.Orders()

	_, err := orderRemote.Complete(ctx, "missing")
	require.True(t, domain.IsNotFound(err))
	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)

	order, err := orderRemote.Create(ctx, intentFor(domain.NewLine("p2", "Seeds", 250, 1)), "key-1")
	require.NoError(t, err)
	_, err = orderRemote.Cancel(ctx, order.ID)
	require.NoError(t, err)
	_, err = orderRemote.Complete(ctx, order.ID)
	require.True(t, domain.IsInvalidTransition(err))
	assert.False(t, domain.IsRetryable(err))

	_, err = orderRemote.Create(ctx, intentFor(domain.NewLine("p1", "Rake", 1999, 5)), "key-2")
	require.True(t, domain.IsShortage(err))
	require.ErrorIs(t, err, domain.ErrValidation)
	shortage, ok := domain.AsShortage(err)
	require.True(t, ok)
	assert.Equal(t, []domain.Shortage{{ProductID: "p1", Requested: 5, Available: 4}}, shortage.Shortages)
}

func TestClient_TransportFailureIsRetryable(t *testing.T) {
	env := newRemoteEnv(t)
	env.server.Close()

	_, err := env.client.CheckAvailability(context.Background(), []domain.StockItem{{ProductID: "p1", Qty: 1}})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_CreateIsIdempotentPerKey(t *testing.T) {
	env := newRemoteEnv(t)
	ctx := context.Background()
	intent := intentFor(domain.NewLine("p1", "Rake", 1999, 2))

	first, err := env.client.Orders().Create(ctx, intent, "same-key")
	require.NoError(t, err)
	second, err := env.client.Orders().Create(ctx, intent, "same-key")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(2), env.ledger.Level("p1").Available())
}

func TestClient_OrderFlowThroughCoordinatorAndHistory(t *testing.T) {
	env := newRemoteEnv(t)
	ctx := context.Background()
	st := store.New()
	orderRemote := env.client.Orders()

	coordinator := lifecycle.NewCoordinator(orderRemote, env.client, st, lifecycle.WithTrashCounter(st))
	engine := history.NewEngine(orderRemote, st)

	products, err := env.client.ListProducts(ctx)
	require.NoError(t, err)
	basket := cart.NewAggregator()
	for _, p := range products {
		require.NoError(t, basket.Add(p, 1))
	}

	order, err := coordinator.Create(ctx, basket.Intent(intentFor()))
	require.NoError(t, err)
	assert.Equal(t, int32(3), env.ledger.Level("p1").Available())
	assert.Equal(t, int32(9), env.ledger.Level("p2").Available())

	_, err = coordinator.Complete(ctx, order.ID)
	require.NoError(t, err)
	level := env.ledger.Level("p1")
	assert.Equal(t, int32(3), level.OnHand)
	assert.Equal(t, int32(0), level.Reserved)

	require.NoError(t, engine.SelectTab(history.TabCompleted))
	page, err := engine.Load(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.ID, page.Items[0].ID)

	require.NoError(t, coordinator.Delete(ctx, order.ID))
	require.NoError(t, engine.SelectTab(history.TabDeleted))
	page, err = engine.Load(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, st.TrashCount(domain.EntityKindOrder))

	events, err := orderRemote.Timeline(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestClient_RecycleBinLifecycleAgainstServer(t *testing.T) {
	env := newRemoteEnv(t)
	ctx := context.Background()
	st := store.New()
	bin := recyclebin.New(env.client.RecycleBin(), st)

	require.NoError(t, bin.SoftDelete(ctx, domain.EntityKindCategory, "c1"))
	assert.Equal(t, 1, st.TrashCount(domain.EntityKindCategory))

	entities, err := bin.List(ctx, domain.EntityKindCategory)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, 2, entities[0].RestorableChildren)

	confirmation, err := bin.RequestForceDelete(entities[0])
	require.NoError(t, err)
	require.NoError(t, bin.ConfirmForceDelete(ctx, confirmation))

	count, err := bin.SyncCount(ctx, domain.EntityKindCategory)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = bin.Restore(ctx, domain.EntityKindCategory, "c1")
	require.ErrorIs(t, err, domain.ErrEntityPurged)

	products, err := env.client.ListProducts(ctx)
	require.NoError(t, err)
	for _, p := range products {
		assert.Equal(t, domain.FallbackCategoryID, p.CategoryID)
	}
}

func TestRecycleBin_RejectsInvalidKind(t *testing.T) {
	env := newRemoteEnv(t)
	err := env.client.RecycleBin().SoftDelete(context.Background(), "widget", "x")
	require.ErrorIs(t, err, domain.ErrEntityKindInvalid)
}

func TestClient_PathIDsAreEscapedOnce(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.URL + "/api")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Orders().Delete(ctx, "a/b"))
	require.NoError(t, c.RecycleBin().Restore(ctx, domain.EntityKindOrder, "50% off"))
	require.NoError(t, c.Orders().Delete(ctx, "plain"))

	assert.Equal(t, []string{
		"/api/orders/a%2Fb",
		"/api/orders/50%25%20off/restore",
		"/api/orders/plain",
	}, paths)
}
