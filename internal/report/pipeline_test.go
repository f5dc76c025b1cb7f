package report

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/wellcore/internal/analysis"
	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/config"
	"github.com/goodtune/wellcore/internal/device"
	"github.com/goodtune/wellcore/internal/provider"
	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage"
	redisstore "github.com/goodtune/wellcore/internal/storage/redis"
	"github.com/rs/zerolog"
)

var now = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

type countingAnalyzer struct {
	calls atomic.Int32
	err   error
}

func (a *countingAnalyzer) Analyze(ctx context.Context, in analysis.Input) (*analysis.Result, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return analysis.Heuristic{}.Analyze(ctx, in)
}

func setupReportStore(t *testing.T) storage.ReportStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := redisstore.Open(config.RedisConfig{
		Host:         mr.Addr(),
		PoolSize:     5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store.Reports()
}

func newTestPipeline(t *testing.T, analyzer analysis.Provider, store storage.ReportStore) *Pipeline {
	t.Helper()
	p, err := NewPipeline(analyzer, store, Config{DedupeCacheSize: 8, Clock: clock.NewManual(now)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestHandleEnded_StoresReport(t *testing.T) {
	store := setupReportStore(t)
	analyzer := &countingAnalyzer{}
	p := newTestPipeline(t, analyzer, store)

	report, err := p.HandleEnded(context.Background(), session.Ended{
		SessionID:       "conv-1",
		UserID:          "user-1",
		DurationSeconds: 300,
		CeilingSeconds:  900,
		Reason:          session.ReasonUser,
		ReachedActive:   true,
	})
	if err != nil {
		t.Fatalf("HandleEnded failed: %v", err)
	}
	if report.QualityTier != analysis.TierStandard || !report.CreatedAt.Equal(now) {
		t.Errorf("unexpected report: %+v", report)
	}

	stored, err := store.GetReport(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if stored.ID != report.ID || stored.TechnicalMetrics.EndReason != "user" {
		t.Errorf("stored report mismatch: %+v", stored)
	}

	list, _ := p.List(context.Background(), "user-1", 10)
	if len(list) != 1 {
		t.Errorf("expected 1 listed report, got %d", len(list))
	}
}

func TestHandleEnded_Skips(t *testing.T) {
	analyzer := &countingAnalyzer{}
	p := newTestPipeline(t, analyzer, setupReportStore(t))

	tests := []struct {
		name string
		ev   session.Ended
	}{
		{"never active", session.Ended{UserID: "user-1", ReachedActive: false}},
		{"no session id", session.Ended{UserID: "user-1", DurationSeconds: 10, ReachedActive: true}},
		{"zero duration", session.Ended{SessionID: "conv-1", ReachedActive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.HandleEnded(context.Background(), tt.ev); !errors.Is(err, ErrSkipped) {
				t.Errorf("expected ErrSkipped, got %v", err)
			}
		})
	}
	if analyzer.calls.Load() != 0 {
		t.Errorf("analyzer should not run for skipped sessions, got %d calls", analyzer.calls.Load())
	}
}

func TestGenerate_AtMostOncePerSession(t *testing.T) {
	store := setupReportStore(t)
	analyzer := &countingAnalyzer{}
	p := newTestPipeline(t, analyzer, store)

	in := analysis.Input{SessionID: "conv-1", UserID: "user-1", DurationSeconds: 60}
	if _, err := p.Generate(context.Background(), in); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := p.Generate(context.Background(), in); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate from cache, got %v", err)
	}

	// A fresh pipeline has an empty cache; the store still refuses
	other := newTestPipeline(t, analyzer, store)
	if _, err := other.Generate(context.Background(), in); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate from store, got %v", err)
	}
	if analyzer.calls.Load() != 2 {
		t.Errorf("expected 2 analyzer calls, got %d", analyzer.calls.Load())
	}
}

func TestGenerate_FailureAllowsRetry(t *testing.T) {
	analyzer := &countingAnalyzer{err: errors.New("model unavailable")}
	p := newTestPipeline(t, analyzer, setupReportStore(t))

	in := analysis.Input{SessionID: "conv-1", UserID: "user-1", DurationSeconds: 60}
	if _, err := p.Generate(context.Background(), in); err == nil {
		t.Fatal("expected analysis failure")
	}

	analyzer.err = nil
	if _, err := p.Generate(context.Background(), in); err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
}

type staticProvider struct{}

func (staticProvider) CreateSession(ctx context.Context, req provider.CreateRequest) (*provider.Conversation, error) {
	return &provider.Conversation{ID: "conv-1", URL: "https://video.example/conv-1"}, nil
}

func (staticProvider) EndSession(ctx context.Context, id string) error { return nil }

func TestAttach(t *testing.T) {
	store := setupReportStore(t)
	p := newTestPipeline(t, &countingAnalyzer{}, store)

	clk := clock.NewManual(now)
	logger := zerolog.Nop()
	guard := device.NewGuard(device.NewLeaseBackend(), "user-1", logger)
	o := session.New("user-1", guard, staticProvider{}, nil, session.Config{
		TickInterval: time.Hour,
		Clock:        clk,
	}, logger)
	dispose := p.Attach(o)
	defer dispose()

	ctx := context.Background()
	if _, err := o.Start(ctx, "", 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(10 * time.Minute)
	_ = o.End(ctx)
	_ = o.End(ctx)
	p.Wait()

	report, err := store.GetReport(ctx, "conv-1")
	if err != nil {
		t.Fatalf("expected report after session end: %v", err)
	}
	if report.DurationSeconds != 600 || report.QualityTier != analysis.TierExtended {
		t.Errorf("unexpected report: %+v", report)
	}

	list, _ := store.ListReports(ctx, "user-1", 10)
	if len(list) != 1 {
		t.Errorf("expected exactly one report, got %d", len(list))
	}
}
