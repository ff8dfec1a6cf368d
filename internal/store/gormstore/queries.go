package gormstore

import (
	"context"
	"encoding/json"
	"fmt"

	"hyperfeed/internal/market"
	"hyperfeed/internal/store/model"
)

// LastCandleTimes returns the newest market_data bucket per symbol,
// used to seed the freshness tracker after a restart.
func (s *Store) LastCandleTimes(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	type row struct {
		Symbol string
		Latest int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.MarketDataModel{}).
		Select("symbol, MAX(timestamp) AS latest").
		Group("symbol").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Symbol] = r.Latest
	}
	return out, nil
}

// CandlesForSymbol returns the newest limit candles for a symbol in
// bucket order. The bound is pushed into the query so a long-running
// ingester never loads a symbol's full history per request.
func (s *Store) CandlesForSymbol(ctx context.Context, symbol string, limit int) ([]market.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 500
	}
	var models []model.MarketDataModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, len(models))
	for i, m := range models {
		out[len(models)-1-i] = market.Candle{
			Symbol:    m.Symbol,
			Timestamp: m.Timestamp,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
			VWAP:      m.VWAP,
			Source:    market.Source(m.Source),
		}
	}
	return out, nil
}

// TrackedSymbols returns the full persisted catalog.
func (s *Store) TrackedSymbols(ctx context.Context) ([]market.TrackedSymbol, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []model.TrackedSymbolModel
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]market.TrackedSymbol, 0, len(models))
	for _, m := range models {
		out = append(out, market.TrackedSymbol(m))
	}
	return out, nil
}

// RecentTraces returns the newest ingestion traces, newest first.
func (s *Store) RecentTraces(ctx context.Context, limit int) ([]market.IngestionTrace, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	var models []model.IngestionTraceModel
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]market.IngestionTrace, 0, len(models))
	for _, m := range models {
		tr := market.IngestionTrace{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Severity:  m.Severity,
			Event:     m.Event,
			Symbol:    m.Symbol,
			Source:    m.Source,
			Details:   m.Details,
		}
		if len(m.Metrics) > 0 {
			_ = json.Unmarshal(m.Metrics, &tr.Metrics)
		}
		out = append(out, tr)
	}
	return out, nil
}

// SymbolHealthRows returns the current health row per symbol.
func (s *Store) SymbolHealthRows(ctx context.Context) ([]market.SymbolHealth, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []model.SymbolHealthModel
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]market.SymbolHealth, 0, len(models))
	for _, m := range models {
		out = append(out, market.SymbolHealth(m))
	}
	return out, nil
}
