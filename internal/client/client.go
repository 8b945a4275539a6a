package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTimeout ограничивает один HTTP-вызов; повторов нет.
const DefaultTimeout = 10 * time.Second

// Client — REST-клиент удалённого сервиса магазина.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Entry
	headers http.Header
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент. Трассировка в этом случае не добавляется.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout задаёт таймаут одного вызова.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.Timeout = timeout }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHeader добавляет заголовок ко всем запросам (например, токен сессии).
func WithHeader(name, value string) Option {
	return func(c *Client) { c.headers.Set(name, value) }
}

// New создаёт клиент для базового адреса вида http://host:port.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithPropagators(propagation.TraceContext{})),
		},
		logger:  log.New().WithField("component", "storefront-client"),
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Orders возвращает удалённое хранилище заказов.
func (c *Client) Orders() *Orders {
	return &Orders{c: c}
}

// RecycleBin возвращает удалённые операции корзины.
func (c *Client) RecycleBin() *RecycleBin {
	return &RecycleBin{c: c}
}

// CheckAvailability проверяет наличие без побочных эффектов.
func (c *Client) CheckAvailability(ctx context.Context, items []domain.StockItem) (domain.Availability, error) {
	var resp api.AvailabilityResponse
	if err := c.do(ctx, "check availability", http.MethodPost, "/inventory/check-availability", nil, api.StockItemsFromDomain(items), nil, &resp); err != nil {
		return domain.Availability{}, err
	}
	return resp.ToDomain(), nil
}

// ListProducts загружает актуальные снимки товаров.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var dtos []api.ProductDTO
	if err := c.do(ctx, "list products", http.MethodGet, "/products", nil, nil, nil, &dtos); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		product, err := dto.ToDomain()
		if err != nil {
			return nil, domain.NewTransportError("list products", err)
		}
		products = append(products, product)
	}
	return products, nil
}

// do выполняет один запрос и раскрывает конверт. Любой ответ вне 2xx
// превращается в *domain.RemoteError; повторов нет.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, headers http.Header, out any) error {
	// path приходит уже экранированным: RawPath сохраняет %2F внутри id.
	target := *c.baseURL
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", op, path, err)
	}
	target.RawPath = c.baseURL.EscapedPath() + path
	target.Path += unescaped
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, values := range c.headers {
		req.Header[name] = values
	}
	for name, values := range headers {
		req.Header[name] = values
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{"op": op, "method": method, "path": path}).Warn("remote call failed")
		return domain.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	var envelope api.Envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(op, resp.StatusCode, envelope, decodeErr)
	}
	if decodeErr != nil {
		return domain.NewTransportError(op, fmt.Errorf("decode envelope: %w", decodeErr))
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return domain.NewTransportError(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func remoteError(op string, status int, envelope api.Envelope, decodeErr error) error {
	message := envelope.Message
	if decodeErr != nil {
		message = http.StatusText(status)
	}
	if envelope.Errors != nil && len(envelope.Errors.Validation) > 0 {
		message = strings.Join(envelope.Errors.Validation, "; ")
	}

	remote := domain.NewRemoteError(op, status, message)
	if envelope.Errors != nil && len(envelope.Errors.Shortages) > 0 {
		return fmt.Errorf("%w: %w", remote, &domain.ShortageError{
			Shortages: api.ShortagesToDomain(envelope.Errors.Shortages),
		})
	}
	return remote
}

var (
	_ domain.AvailabilityChecker = (*Client)(nil)
	_ domain.ProductCatalog      = (*Client)(nil)
)
