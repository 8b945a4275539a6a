package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/server/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func startServer(t *testing.T, onHand int32) string {
	t.Helper()
	logger := log.New().WithField("test", t.Name())
	logger.Logger.SetLevel(log.WarnLevel)

	ledger := inventory.NewLedger(logger)
	require.NoError(t, ledger.SetOnHand("rake", onHand))

	catalogRepo := memory.NewCatalogRepository()
	require.NoError(t, catalogRepo.SaveCategory(domain.Category{ID: domain.FallbackCategoryID, Name: "Uncategorized"}))
	require.NoError(t, catalogRepo.SaveProduct(domain.Product{ID: "rake", Name: "Rake", PriceMinor: 1999, CategoryID: domain.FallbackCategoryID}))

	srv := httpapi.NewServer(
		orders.NewService(memory.NewOrderRepository(), memory.NewTimelineRepository(), ledger, orders.WithLogger(logger)),
		catalog.NewService(catalogRepo, ledger, logger),
		httpapi.WithLogger(logger),
		httpapi.WithIdempotency(memory.NewIdempotencyRepository()),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestRun_CreateModeReportsShortages(t *testing.T) {
	baseURL := startServer(t, 5)

	var out bytes.Buffer
	result, err := run(context.Background(), []string{
		"-base-url", baseURL, "-product", "rake", "-total", "8", "-concurrency", "4",
	}, &out)
	require.NoError(t, err)

	assert.EqualValues(t, 8, result.TotalScenarios)
	assert.EqualValues(t, 5, result.SuccessScenarios)
	assert.EqualValues(t, 3, result.FailedScenarios)
	assert.EqualValues(t, 3, result.Operations["create"].Outcomes["shortage"])
	assert.Contains(t, out.String(), "mode=create total=8")
}

func TestRun_CreateCompleteMode(t *testing.T) {
	baseURL := startServer(t, 10)

	result, err := run(context.Background(), []string{
		"-base-url", baseURL, "-product", "rake", "-total", "4", "-concurrency", "2", "-mode", "create-complete",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.EqualValues(t, 4, result.SuccessScenarios)
	assert.EqualValues(t, 4, result.Operations["complete"].Success)
	_, cancelled := result.Operations["cancel"]
	assert.False(t, cancelled)
}

func TestRun_WritesJSONReport(t *testing.T) {
	baseURL := startServer(t, 10)
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = run(context.Background(), []string{
		"-base-url", baseURL, "-product", "rake", "-total", "2", "-mode", "create-cancel", "-output", "report.json",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 2, decoded.Operations["cancel"].Calls)
}

func TestRun_UnknownProduct(t *testing.T) {
	baseURL := startServer(t, 1)

	_, err := run(context.Background(), []string{"-base-url", baseURL, "-product", "shovel", "-total", "1"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "valid", args: []string{"-product", "rake"}},
		{name: "missing product", args: nil, wantErr: "product is required"},
		{name: "bad mode", args: []string{"-product", "rake", "-mode", "create-pay"}, wantErr: "unsupported mode"},
		{name: "zero concurrency", args: []string{"-product", "rake", "-concurrency", "0"}, wantErr: "concurrency"},
		{name: "zero total", args: []string{"-product", "rake", "-total", "0"}, wantErr: "total must be > 0"},
		{name: "negative duration", args: []string{"-product", "rake", "-duration", "-1s"}, wantErr: "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(tt.args)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, modeCreate, cfg.mode)
			assert.False(t, cfg.totalSet)
		})
	}
}

func TestDispatchJobs_DurationWithTotal(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(context.Background(), jobs, config{duration: time.Minute, total: 3, totalSet: true})

	var got []int
	for i := range jobs {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: outcomeOK},
		{err: &domain.ShortageError{}, want: "shortage"},
		{err: domain.NewRemoteError("create", 409, "conflict"), want: "conflict"},
		{err: domain.NewRemoteError("get", 404, "missing"), want: "not_found"},
		{err: domain.NewRemoteError("create", 422, "bad"), want: "validation"},
		{err: domain.NewTransportError("create", errors.New("refused")), want: "transport"},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: "timeout"},
		{err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outcomeOf(tt.err), "%v", tt.err)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, percentile(values, 50), 1e-9)
	assert.InDelta(t, 4.8, percentile(values, 95), 1e-9)
	assert.Zero(t, percentile(nil, 50))

	summary := buildLatencySummary([]float64{3, 1, 2})
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 3.0, summary.Max)
	assert.Equal(t, 2.0, summary.Avg)
}

func TestWriteJSONReport_RejectsEscapingPath(t *testing.T) {
	require.Error(t, writeJSONReport("../report.json", report{}))
	require.Error(t, writeJSONReport(".", report{}))
}
