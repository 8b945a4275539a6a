// Command loadtest создаёт поток заказов через REST API витрины и печатает сводку задержек.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/client"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

type loadMode string

const (
	modeCreate         loadMode = "create"
	modeCreateComplete loadMode = "create-complete"
	modeCreateCancel   loadMode = "create-cancel"
)

const outcomeOK = "ok"

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	productID   string
	qty         int
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type operationReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Outcomes  map[string]int64 `json:"outcomes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                  `json:"started_at"`
	DurationSeconds   float64                    `json:"duration_seconds"`
	TotalScenarios    int64                      `json:"total_scenarios"`
	SuccessScenarios  int64                      `json:"success_scenarios"`
	FailedScenarios   int64                      `json:"failed_scenarios"`
	ErrorRate         float64                    `json:"error_rate"`
	RPS               float64                    `json:"rps"`
	ScenarioLatencyMs latencySummary             `json:"scenario_latency_ms"`
	Operations        map[string]operationReport `json:"operations"`
}

type operationStats struct {
	calls     int64
	success   int64
	outcomes  map[string]int64
	latencies []float64
}

// collector копит задержки и исходы по операциям; безопасен для конкурентного использования.
type collector struct {
	mu         sync.Mutex
	operations map[string]*operationStats
}

func newCollector() *collector {
	return &collector{operations: make(map[string]*operationStats)}
}

func (c *collector) record(operation string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.operations[operation]
	if !ok {
		stats = &operationStats{outcomes: make(map[string]int64)}
		c.operations[operation] = stats
	}

	stats.calls++
	outcome := outcomeOf(err)
	if outcome == outcomeOK {
		stats.success++
	}
	stats.outcomes[outcome]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Operations:      make(map[string]operationReport, len(c.operations)),
	}
	for name, stats := range c.operations {
		outcomes := make(map[string]int64, len(stats.outcomes))
		for k, v := range stats.outcomes {
			outcomes[k] = v
		}
		op := operationReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.calls - stats.success,
			ErrorRate: ratio(stats.calls-stats.success, stats.calls),
			Outcomes:  outcomes,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
		if name == "scenario" {
			result.TotalScenarios = op.Calls
			result.SuccessScenarios = op.Success
			result.FailedScenarios = op.Failed
			result.ErrorRate = op.ErrorRate
			result.ScenarioLatencyMs = op.LatencyMs
			continue
		}
		result.Operations[name] = op
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

// outcomeOf сводит ошибку к категории для отчёта.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case domain.IsShortage(err):
		return "shortage"
	case domain.IsIdempotencyConflict(err):
		return "idempotency_conflict"
	case domain.IsInvalidTransition(err):
		return "conflict"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsRetryable(err):
		return "transport"
	default:
		return "error"
	}
}

func parseConfig(args []string) (config, error) {
	var (
		cfg  config
		mode string
	)
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "storefront API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "load mode: create | create-complete | create-cancel")
	fs.StringVar(&cfg.productID, "product", "", "product id to order")
	fs.IntVar(&cfg.qty, "qty", 1, "quantity per order")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	switch loadMode(strings.TrimSpace(mode)) {
	case modeCreate, modeCreateComplete, modeCreateCancel:
		cfg.mode = loadMode(strings.TrimSpace(mode))
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", mode)
	}

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.qty <= 0 || cfg.qty > math.MaxInt32:
		return cfg, errors.New("qty must be > 0")
	case strings.TrimSpace(cfg.productID) == "":
		return cfg, errors.New("product is required")
	}
	return cfg, nil
}

func main() {
	ctx := context.Background()
	result, err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) (report, error) {
	cfg, err := parseConfig(args)
	if err != nil {
		return report{}, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	c, err := client.New(cfg.baseURL,
		client.WithTimeout(cfg.timeout),
		client.WithLogger(logger.WithField("component", "loadtest")),
		client.WithHeader("User-Agent", version.UserAgent("loadtest")),
	)
	if err != nil {
		return report{}, err
	}

	product, err := findProduct(ctx, c, cfg.productID)
	if err != nil {
		return report{}, err
	}

	startedAt := time.Now()
	runID := uuid.NewString()[:8]
	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runScenario(ctx, c.Orders(), cfg, product, runID, i, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	printReport(out, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			return result, fmt.Errorf("write report: %w", err)
		}
	}
	return result, nil
}

func findProduct(ctx context.Context, c *client.Client, productID string) (domain.Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return domain.Product{}, fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		if p.ID == productID {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(
	ctx context.Context,
	orders *client.Orders,
	cfg config,
	product domain.Product,
	runID string,
	index int,
	col *collector,
) {
	scenarioStart := time.Now()
	var err error
	defer func() {
		col.record("scenario", time.Since(scenarioStart), err)
	}()

	intent := domain.OrderIntent{
		Type:           domain.OrderTypeInStore,
		Lines:          []domain.OrderLine{domain.NewLine(product.ID, product.Name, product.PriceMinor, int32(cfg.qty))},
		Customer:       domain.Customer{Name: fmt.Sprintf("load-%s-%d", runID, index), Phone: "+000"},
		DeliveryOption: domain.DeliveryPickup,
		PaymentMethod:  "cash",
	}

	start := time.Now()
	order, err := orders.Create(ctx, intent, fmt.Sprintf("lt-%s-%d", runID, index))
	col.record("create", time.Since(start), err)
	if err != nil || cfg.mode == modeCreate {
		return
	}

	start = time.Now()
	if cfg.mode == modeCreateComplete {
		_, err = orders.Complete(ctx, order.ID)
		col.record("complete", time.Since(start), err)
		return
	}
	_, err = orders.Cancel(ctx, order.ID)
	col.record("cancel", time.Since(start), err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintf(out, "mode=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	s := result.ScenarioLatencyMs
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		s.Min, s.Avg, s.P50, s.P95, s.P99, s.Max)

	names := make([]string, 0, len(result.Operations))
	for name := range result.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := result.Operations[name]
		_, _ = fmt.Fprintf(out, "%s: calls=%d success=%d failed=%d p95=%.2fms outcomes=%v\n",
			name, op.Calls, op.Success, op.Failed, op.LatencyMs.P95, op.Outcomes)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
