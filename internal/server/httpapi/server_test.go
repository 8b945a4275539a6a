package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type testEnv struct {
	server *httptest.Server
	ledger *inventory.Ledger
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	logger := log.New().WithField("test", t.Name())

	ledger := inventory.NewLedger(logger)
	require.NoError(t, ledger.SetOnHand("p1", 5))

	catalogRepo := memory.NewCatalogRepository()
	catalogSvc := catalog.NewService(catalogRepo, ledger, logger)
	require.NoError(t, catalogRepo.SaveCategory(domain.Category{ID: domain.FallbackCategoryID, Name: "Uncategorized"}))
	require.NoError(t, catalogRepo.SaveCategory(domain.Category{ID: "c1", Name: "Tools"}))
	require.NoError(t, catalogRepo.SaveProduct(domain.Product{ID: "p1", Name: "Hammer", PriceMinor: 1250, CategoryID: "c1"}))

	orderSvc := orders.NewService(memory.NewOrderRepository(), memory.NewTimelineRepository(), ledger, orders.WithLogger(logger))
	srv := NewServer(orderSvc, catalogSvc,
		WithLogger(logger),
		WithIdempotency(memory.NewIdempotencyRepository()),
		WithMetrics(metrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry())),
		WithClock(func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{server: ts, ledger: ledger}
}

func (e testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, api.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func createBody(qty int32) api.CreateOrderRequest {
	return api.CreateOrderFromIntent(domain.OrderIntent{
		Type:            domain.OrderTypeOnline,
		Lines:           []domain.OrderLine{domain.NewLine("p1", "Hammer", 1250, qty)},
		ShippingMinor:   500,
		Customer:        domain.Customer{Name: "Bob", Phone: "+200"},
		DeliveryOption:  domain.DeliveryDelivery,
		ShippingAddress: "1 Main St",
		PaymentMethod:   "card",
	})
}

func key(k string) map[string]string {
	return map[string]string{api.HeaderIdempotencyKey: k}
}

func decodeOrder(t *testing.T, envelope api.Envelope) api.OrderDTO {
	t.Helper()
	var order api.OrderDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &order))
	return order
}

func TestServer_CreateOrderReplaysByIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)

	status, first := env.do(t, http.MethodPost, "/orders", createBody(2), key("k-1"))
	require.Equal(t, http.StatusCreated, status)
	order := decodeOrder(t, first)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "30", order.Total.String())

	status, second := env.do(t, http.MethodPost, "/orders", createBody(2), key("k-1"))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, order.ID, decodeOrder(t, second).ID)
	assert.Equal(t, int32(3), env.ledger.Level("p1").Available())

	status, _ = env.do(t, http.MethodPost, "/orders", createBody(1), key("k-1"))
	assert.Equal(t, http.StatusConflict, status)
}

func TestServer_CreateOrderRequiresKey(t *testing.T) {
	env := newTestEnv(t)
	status, envelope := env.do(t, http.MethodPost, "/orders", createBody(1), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, envelope.Errors)
	assert.NotEmpty(t, envelope.Errors.Validation)
}

func TestServer_CreateOrderShortage(t *testing.T) {
	env := newTestEnv(t)

	status, envelope := env.do(t, http.MethodPost, "/orders", createBody(9), key("k-2"))
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, envelope.Errors)
	require.Len(t, envelope.Errors.Shortages, 1)
	assert.Equal(t, api.ShortageDTO{ProductID: "p1", Requested: 9, Available: 5}, envelope.Errors.Shortages[0])
	assert.Equal(t, int32(5), env.ledger.Level("p1").Available())
}

func TestServer_FailedCreateIsReplayedFromCache(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/orders", createBody(9), key("k-short"))
	require.Equal(t, http.StatusUnprocessableEntity, status)

	require.NoError(t, env.ledger.SetOnHand("p1", 20))
	status, envelope := env.do(t, http.MethodPost, "/orders", createBody(9), key("k-short"))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, envelope.Errors)
	assert.Len(t, envelope.Errors.Shortages, 1)
	assert.Equal(t, int32(20), env.ledger.Level("p1").Available())

	status, _ = env.do(t, http.MethodPost, "/orders", createBody(2), key("k-short"))
	assert.Equal(t, http.StatusConflict, status)
}

func TestServer_CreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	body := createBody(1)
	body.Customer.Name = ""
	body.ShippingAddress = ""

	status, envelope := env.do(t, http.MethodPost, "/orders", body, key("k-3"))
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, envelope.Errors)
	assert.ElementsMatch(t, []string{
		domain.ErrCustomerNameRequired.Error(),
		domain.ErrShippingAddressRequired.Error(),
	}, envelope.Errors.Validation)
}

func TestServer_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.do(t, http.MethodPost, "/inventory/check-availability", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_CheckAvailability(t *testing.T) {
	env := newTestEnv(t)
	status, envelope := env.do(t, http.MethodPost, "/inventory/check-availability", api.AvailabilityRequest{
		Items: []api.StockItemDTO{{ProductID: "p1", Quantity: 6}},
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var availability api.AvailabilityResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &availability))
	assert.False(t, availability.Available)
	require.Len(t, availability.Shortages, 1)
}

func TestServer_TransitionsMapToStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, http.MethodPost, "/orders", createBody(1), key("k-4"))
	id := decodeOrder(t, created).ID

	status, envelope := env.do(t, http.MethodPatch, "/orders/"+id+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", decodeOrder(t, envelope).Status)

	status, _ = env.do(t, http.MethodPatch, "/orders/"+id+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPatch, "/orders/missing/complete", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, envelope = env.do(t, http.MethodGet, "/orders/"+id+"/timeline", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var events []api.TimelineEventDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &events))
	assert.Len(t, events, 2)
}

func TestServer_ListOrdersPaginated(t *testing.T) {
	env := newTestEnv(t)
	for _, k := range []string{"a", "b", "c"} {
		status, _ := env.do(t, http.MethodPost, "/orders", createBody(1), key(k))
		require.Equal(t, http.StatusCreated, status)
	}

	status, envelope := env.do(t, http.MethodGet, "/orders?status=pending&page=2&per_page=2", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var page api.Paginated[api.OrderDTO]
	require.NoError(t, json.Unmarshal(envelope.Data, &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	status, _ = env.do(t, http.MethodGet, "/orders?page=x", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_OrderRecycleBin(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.do(t, http.MethodPost, "/orders", createBody(2), key("k-5"))
	id := decodeOrder(t, created).ID

	status, _ := env.do(t, http.MethodDelete, "/orders/"+id, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(5), env.ledger.Level("p1").Available())

	status, envelope := env.do(t, http.MethodGet, "/orders/recycle-bin/count", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var count api.CountDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &count))
	assert.Equal(t, 1, count.Count)

	status, _ = env.do(t, http.MethodPost, "/orders/"+id+"/restore", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(3), env.ledger.Level("p1").Available())
}

func TestServer_CategoryRecycleBin(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodDelete, "/categories/c1", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, envelope := env.do(t, http.MethodGet, "/categories/recycle-bin", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var trashed []api.TrashedEntityDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &trashed))
	require.Len(t, trashed, 1)
	assert.Equal(t, 1, trashed[0].RestorableProductsCount)

	status, _ = env.do(t, http.MethodDelete, "/categories/"+domain.FallbackCategoryID, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodDelete, "/categories/c1/force", nil, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/categories/c1/restore", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, envelope = env.do(t, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var products []api.ProductDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, domain.FallbackCategoryID, products[0].CategoryID)
	assert.Equal(t, int32(5), products[0].Stock)
}
