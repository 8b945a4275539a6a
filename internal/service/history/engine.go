package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// PendingSource отдаёт активный набор и счётчик удалённых заказов.
type PendingSource interface {
	PendingOrders() []domain.Order
	TrashCount(kind domain.EntityKind) int
}

// Page — результат загрузки вкладки.
type Page struct {
	Tab         Tab
	Items       []domain.Order
	CurrentPage int
	LastPage    int
	PerPage     int
	// Серверный итог по вкладке. Уточняющий фильтр его не меняет.
	Total int
}

// Counts — значения бейджей по вкладкам.
type Counts struct {
	Pending   int
	Completed int
	Cancelled int
	All       int
	Deleted   int
}

// Engine отвечает за вкладки истории, пагинацию и уточняющий фильтр.
type Engine struct {
	remote  domain.OrderRemote
	pending PendingSource
	perPage int
	logger  *log.Entry

	mu         sync.Mutex
	tab        Tab
	page       int
	refinement Refinement
}

// EngineOption настраивает Engine.
type EngineOption func(*Engine)

// WithPageSize задаёт фиксированный размер страницы.
func WithPageSize(perPage int) EngineOption {
	return func(e *Engine) {
		_, e.perPage = domain.NormalizePage(1, perPage)
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine создаёт движок истории с вкладкой pending.
func NewEngine(remote domain.OrderRemote, pending PendingSource, opts ...EngineOption) *Engine {
	e := &Engine{
		remote:  remote,
		pending: pending,
		perPage: domain.DefaultPerPage,
		logger:  log.New().WithField("component", "order-history"),
		tab:     TabPending,
		page:    1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectTab переключает вкладку и сбрасывает страницу на первую.
func (e *Engine) SelectTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tab = tab
	e.page = 1
	return nil
}

// SetPage выбирает страницу текущей вкладки.
func (e *Engine) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = page
}

// Refine задаёт уточняющий фильтр.
func (e *Engine) Refine(refinement Refinement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refinement = refinement
}

// State возвращает текущие вкладку и страницу.
func (e *Engine) State() (Tab, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tab, e.page
}

// Load загружает текущую вкладку.
func (e *Engine) Load(ctx context.Context) (Page, error) {
	e.mu.Lock()
	tab, page, refinement := e.tab, e.page, e.refinement
	e.mu.Unlock()

	plan, err := PlanFor(tab, page, e.perPage)
	if err != nil {
		return Page{}, err
	}
	result, err := e.Execute(ctx, plan)
	if err != nil {
		return Page{}, err
	}
	result.Tab = tab
	result.Items = refinement.Apply(result.Items)
	return result, nil
}

// Execute выполняет план без уточняющего фильтра.
func (e *Engine) Execute(ctx context.Context, plan QueryPlan) (Page, error) {
	switch p := plan.(type) {
	case LocalPlan:
		return e.executeLocal(p), nil
	case PaginatedPlan:
		return e.executePaginated(ctx, p)
	case FullScanPlan:
		return e.executeFullScan(ctx)
	default:
		return Page{}, fmt.Errorf("unsupported query plan %T", plan)
	}
}

func (e *Engine) executeLocal(plan LocalPlan) Page {
	orders := e.pending.PendingOrders()
	if plan.Status != domain.OrderStatusPending {
		orders = nil
	}
	page := domain.PageOf(orders, plan.Page, plan.PerPage)
	return Page{
		Items:       page.Items,
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
		PerPage:     page.PerPage,
		Total:       page.Total,
	}
}

func (e *Engine) executePaginated(ctx context.Context, plan PaginatedPlan) (Page, error) {
	if len(plan.Statuses) == 1 {
		status := plan.Statuses[0]
		page, err := e.remote.List(ctx, domain.OrderQuery{Status: status, Page: plan.Page, PerPage: plan.PerPage})
		if err != nil {
			e.logger.WithError(err).WithField("status", status).Warn("history page fetch failed")
			return Page{}, fmt.Errorf("list %s orders: %w", status, err)
		}
		return Page{
			Items:       page.Items,
			CurrentPage: plan.Page,
			LastPage:    max(page.LastPage, 1),
			PerPage:     plan.PerPage,
			Total:       page.Total,
		}, nil
	}

	// Страница N слияния лежит среди первых N*PerPage заказов каждого статуса.
	var (
		merged []domain.Order
		total  int
	)
	for _, status := range plan.Statuses {
		prefix, statusTotal, err := e.listPrefix(ctx, status, plan.Page, plan.PerPage)
		if err != nil {
			return Page{}, err
		}
		merged = append(merged, prefix...)
		total += statusTotal
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	start := min((plan.Page-1)*plan.PerPage, len(merged))
	end := min(start+plan.PerPage, len(merged))

	return Page{
		Items:       merged[start:end],
		CurrentPage: plan.Page,
		LastPage:    domain.LastPage(total, plan.PerPage),
		PerPage:     plan.PerPage,
		Total:       total,
	}, nil
}

// listPrefix читает страницы 1..upTo одного статуса, останавливаясь на последней.
func (e *Engine) listPrefix(ctx context.Context, status domain.OrderStatus, upTo, perPage int) ([]domain.Order, int, error) {
	var (
		orders []domain.Order
		total  int
	)
	for page := 1; page <= upTo; page++ {
		result, err := e.remote.List(ctx, domain.OrderQuery{Status: status, Page: page, PerPage: perPage})
		if err != nil {
			e.logger.WithError(err).WithFields(log.Fields{"status": status, "page": page}).Warn("history page fetch failed")
			return nil, 0, fmt.Errorf("list %s orders: %w", status, err)
		}
		orders = append(orders, result.Items...)
		total = result.Total
		if page >= result.LastPage || len(result.Items) == 0 {
			break
		}
	}
	return orders, total, nil
}

func (e *Engine) executeFullScan(ctx context.Context) (Page, error) {
	orders, err := e.remote.ListTrashed(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("deleted orders fetch failed")
		return Page{}, fmt.Errorf("list deleted orders: %w", err)
	}
	return Page{
		Items:       orders,
		CurrentPage: 1,
		LastPage:    1,
		PerPage:     len(orders),
		Total:       len(orders),
	}, nil
}

// Counts считает бейджи вкладок: per_page=1 запросы к серверу и длина активного набора.
// Число удалённых берётся из счётчика корзины.
func (e *Engine) Counts(ctx context.Context) (Counts, error) {
	counts := Counts{
		Pending: len(e.pending.PendingOrders()),
		Deleted: e.pending.TrashCount(domain.EntityKindOrder),
	}

	for _, status := range []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusCancelled} {
		page, err := e.remote.List(ctx, domain.OrderQuery{Status: status, Page: 1, PerPage: 1})
		if err != nil {
			return Counts{}, fmt.Errorf("count %s orders: %w", status, err)
		}
		if status == domain.OrderStatusCompleted {
			counts.Completed = page.Total
		} else {
			counts.Cancelled = page.Total
		}
	}
	counts.All = counts.Completed + counts.Cancelled
	return counts, nil
}
