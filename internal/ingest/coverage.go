package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
)

// CoverageMonitor periodically audits per-symbol freshness, persists a
// health row per symbol, and hands stale symbols to the backfill
// scheduler. The first cycles inside the warm-up window are skipped so
// a cold socket does not trigger false staleness alarms.
type CoverageMonitor struct {
	cfg      config.CoverageConfig
	health   *healthTracker
	buf      *WriteBuffer
	backfill *BackfillScheduler

	startedAt time.Time
	now       func() time.Time

	mu          sync.Mutex
	lastSummary time.Time
	lastReport  market.CoverageReport
}

func NewCoverageMonitor(cfg config.CoverageConfig, health *healthTracker, buf *WriteBuffer, backfill *BackfillScheduler) *CoverageMonitor {
	return &CoverageMonitor{
		cfg:       cfg,
		health:    health,
		buf:       buf,
		backfill:  backfill,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// LastReport returns the most recent audit for the status endpoint.
func (m *CoverageMonitor) LastReport() market.CoverageReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// RunCycle performs one audit.
func (m *CoverageMonitor) RunCycle(ctx context.Context) {
	now := m.now()
	if now.Sub(m.startedAt) < m.cfg.Warmup() {
		return
	}
	report := market.ComputeCoverage(m.health.LastSeen(), now.UnixMilli(), m.cfg.Freshness().Milliseconds())

	m.mu.Lock()
	m.lastReport = report
	summaryDue := now.Sub(m.lastSummary) >= m.cfg.SummaryEvery()
	if report.Ratio < m.cfg.MinRatio || summaryDue {
		m.lastSummary = now
	}
	m.mu.Unlock()

	switch {
	case report.Total > 0 && report.Ratio < m.cfg.MinRatio:
		logger.Warnf("coverage: ratio %.2f below minimum %.2f (%d/%d fresh, %d stale)",
			report.Ratio, m.cfg.MinRatio, report.Fresh, report.Total, len(report.Stale))
		m.buf.AddTrace(market.IngestionTrace{
			Severity: market.TraceWarn,
			Event:    "coverage_degraded",
			Details:  fmt.Sprintf("%d of %d symbols stale", len(report.Stale), report.Total),
			Metrics: map[string]any{
				"ratio": report.Ratio,
				"fresh": report.Fresh,
				"total": report.Total,
			},
		})
	case summaryDue:
		logger.Infof("coverage: %d/%d fresh (ratio %.2f)", report.Fresh, report.Total, report.Ratio)
		m.buf.AddTrace(market.IngestionTrace{
			Severity: market.TraceInfo,
			Event:    "coverage_summary",
			Metrics: map[string]any{
				"ratio": report.Ratio,
				"fresh": report.Fresh,
				"total": report.Total,
			},
		})
	}

	m.buf.AddHealth(m.health.Snapshot())

	if len(report.Stale) > 0 && !m.backfill.Running() {
		m.backfill.Trigger(ctx, report.Stale)
	}
}
