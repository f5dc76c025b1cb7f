// Package report builds and stores the report of each ended session.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodtune/wellcore/internal/analysis"
	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrSkipped is returned for sessions that never became active
	ErrSkipped = errors.New("report: session has no id or duration")

	// ErrDuplicate is returned when the session already has a report
	ErrDuplicate = errors.New("report: already generated for session")
)

const defaultDedupeCacheSize = 1024

// Config holds pipeline configuration
type Config struct {
	DedupeCacheSize int
	Clock           clock.Clock
}

// Pipeline turns ended sessions into stored reports. Generation is
// best-effort and never feeds back into session teardown.
type Pipeline struct {
	analyzer analysis.Provider
	store    storage.ReportStore
	clock    clock.Clock
	logger   zerolog.Logger

	seen *lru.Cache[string, struct{}]
	wg   sync.WaitGroup
}

// NewPipeline creates a report pipeline
func NewPipeline(analyzer analysis.Provider, store storage.ReportStore, config Config, logger zerolog.Logger) (*Pipeline, error) {
	if config.DedupeCacheSize <= 0 {
		config.DedupeCacheSize = defaultDedupeCacheSize
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}

	seen, err := lru.New[string, struct{}](config.DedupeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}

	return &Pipeline{
		analyzer: analyzer,
		store:    store,
		clock:    config.Clock,
		logger:   logger.With().Str("component", "report-pipeline").Logger(),
		seen:     seen,
	}, nil
}

// Attach subscribes the pipeline to o's terminal events. Reports are built
// in the background; use Wait to drain them.
func (p *Pipeline) Attach(o *session.Orchestrator) (dispose func()) {
	return o.Subscribe(func(ev session.Ended) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_, err := p.HandleEnded(context.Background(), ev)
			switch {
			case err == nil, errors.Is(err, ErrSkipped), errors.Is(err, ErrDuplicate):
			default:
				p.logger.Error().Err(err).Str("session_id", ev.SessionID).Msg("Failed to generate session report")
			}
		}()
	})
}

// Wait blocks until background report generation has finished
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// HandleEnded builds the report for a terminal event
func (p *Pipeline) HandleEnded(ctx context.Context, ev session.Ended) (*storage.SessionReport, error) {
	if !ev.ReachedActive {
		return nil, ErrSkipped
	}
	return p.Generate(ctx, analysis.Input{
		SessionID:       ev.SessionID,
		UserID:          ev.UserID,
		DurationSeconds: ev.DurationSeconds,
		CeilingSeconds:  ev.CeilingSeconds,
		EndReason:       string(ev.Reason),
	})
}

// Generate analyzes a session and stores its report. Each session gets at
// most one report.
func (p *Pipeline) Generate(ctx context.Context, in analysis.Input) (*storage.SessionReport, error) {
	if in.SessionID == "" || in.DurationSeconds <= 0 {
		metrics.ReportsGenerated.WithLabelValues("skipped").Inc()
		return nil, ErrSkipped
	}

	if found, _ := p.seen.ContainsOrAdd(in.SessionID, struct{}{}); found {
		metrics.ReportsGenerated.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicate
	}

	report, err := p.generate(ctx, in)
	if err != nil && !errors.Is(err, ErrDuplicate) {
		// Let a later attempt try again
		p.seen.Remove(in.SessionID)
	}
	return report, err
}

func (p *Pipeline) generate(ctx context.Context, in analysis.Input) (*storage.SessionReport, error) {
	result, err := p.analyzer.Analyze(ctx, in)
	if err != nil {
		metrics.ReportsGenerated.WithLabelValues("analysis_failed").Inc()
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	report := storage.SessionReport{
		ID:               uuid.NewString(),
		SessionID:        in.SessionID,
		UserID:           in.UserID,
		DurationSeconds:  int64(in.DurationSeconds),
		QualityTier:      result.QualityTier,
		MoodAnalysis:     result.Mood,
		AIInsights:       result.Insights,
		TechnicalMetrics: result.Technical,
		CreatedAt:        p.clock.Now(),
	}

	if err := p.store.InsertReport(ctx, report); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			metrics.ReportsGenerated.WithLabelValues("duplicate").Inc()
			return nil, ErrDuplicate
		}
		metrics.ReportsGenerated.WithLabelValues("persist_failed").Inc()
		metrics.PersistenceFailures.WithLabelValues("report").Inc()
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	metrics.ReportsGenerated.WithLabelValues("ok").Inc()
	p.logger.Info().
		Str("session_id", in.SessionID).
		Str("quality_tier", report.QualityTier).
		Msg("Session report stored")

	return &report, nil
}

// List returns the user's most recent reports
func (p *Pipeline) List(ctx context.Context, userID string, limit int) ([]storage.SessionReport, error) {
	return p.store.ListReports(ctx, userID, limit)
}
