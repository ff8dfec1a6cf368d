package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hyperfeed/internal/market"
	"hyperfeed/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Batch carries one flush cycle worth of pending writes. All slices
// are optional; an empty batch is a no-op.
type Batch struct {
	Candles []market.Candle
	Books   []market.OrderBookSnapshot
	Trades  []market.Trade
	Funding []market.FundingRate
	Traces  []market.IngestionTrace
	Health  []market.SymbolHealth
}

// Size is the total number of queued items across all entity types.
func (b Batch) Size() int {
	return len(b.Candles) + len(b.Books) + len(b.Trades) + len(b.Funding) + len(b.Traces) + len(b.Health)
}

// WriteBatch persists an entire batch in a single transaction.
// market_data and symbol_ingestion_health are upserted; the remaining
// tables are append-only, so a retried batch may leave harmless
// duplicate rows there but never in the keyed tables.
func (s *Store) WriteBatch(ctx context.Context, batch Batch) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if batch.Size() == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Candles) > 0 {
			models := make([]model.MarketDataModel, 0, len(batch.Candles))
			for _, c := range batch.Candles {
				models = append(models, candleModel(c))
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
				DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "vwap", "source"}),
			}).Create(&models).Error
			if err != nil {
				return err
			}
		}
		if len(batch.Books) > 0 {
			models := make([]model.OrderBookModel, 0, len(batch.Books))
			for _, b := range batch.Books {
				models = append(models, bookModel(b))
			}
			if err := tx.Create(&models).Error; err != nil {
				return err
			}
		}
		if len(batch.Trades) > 0 {
			models := make([]model.MarketTradeModel, 0, len(batch.Trades))
			for _, t := range batch.Trades {
				models = append(models, model.MarketTradeModel{
					Symbol:    t.Symbol,
					Timestamp: t.Timestamp,
					Price:     t.Price,
					Size:      t.Size,
					Side:      t.Side,
				})
			}
			if err := tx.Create(&models).Error; err != nil {
				return err
			}
		}
		if len(batch.Funding) > 0 {
			models := make([]model.FundingRateModel, 0, len(batch.Funding))
			for _, f := range batch.Funding {
				models = append(models, model.FundingRateModel{
					Symbol:      f.Symbol,
					Timestamp:   f.Timestamp,
					Rate:        f.Rate,
					NextFunding: f.NextFunding,
				})
			}
			if err := tx.Create(&models).Error; err != nil {
				return err
			}
		}
		if len(batch.Traces) > 0 {
			models := make([]model.IngestionTraceModel, 0, len(batch.Traces))
			for _, tr := range batch.Traces {
				models = append(models, traceModel(tr))
			}
			if err := tx.Create(&models).Error; err != nil {
				return err
			}
		}
		if len(batch.Health) > 0 {
			models := make([]model.SymbolHealthModel, 0, len(batch.Health))
			for _, h := range batch.Health {
				models = append(models, model.SymbolHealthModel(h))
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}},
				UpdateAll: true,
			}).Create(&models).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertTrackedSymbols refreshes catalog rows, preserving first_seen
// for symbols that already exist.
func (s *Store) UpsertTrackedSymbols(ctx context.Context, symbols []market.TrackedSymbol) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(symbols) == 0 {
		return nil
	}
	models := make([]model.TrackedSymbolModel, 0, len(symbols))
	for _, ts := range symbols {
		models = append(models, model.TrackedSymbolModel(ts))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "day_volume", "max_leverage", "sz_decimals", "active", "last_updated"}),
		}).
		Create(&models).Error
}

func candleModel(c market.Candle) model.MarketDataModel {
	return model.MarketDataModel{
		Symbol:    c.Symbol,
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		VWAP:      c.VWAP,
		Source:    string(c.Source),
	}
}

func bookModel(b market.OrderBookSnapshot) model.OrderBookModel {
	bids, _ := json.Marshal(b.Bids)
	asks, _ := json.Marshal(b.Asks)
	return model.OrderBookModel{
		Symbol:    b.Symbol,
		Timestamp: b.Timestamp,
		Bids:      datatypes.JSON(bids),
		Asks:      datatypes.JSON(asks),
		Mid:       b.Mid,
		Spread:    b.Spread,
	}
}

func traceModel(tr market.IngestionTrace) model.IngestionTraceModel {
	id := tr.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := tr.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	var metrics datatypes.JSON
	if len(tr.Metrics) > 0 {
		if raw, err := json.Marshal(tr.Metrics); err == nil {
			metrics = datatypes.JSON(raw)
		}
	}
	return model.IngestionTraceModel{
		ID:        id,
		Timestamp: ts,
		Severity:  tr.Severity,
		Event:     tr.Event,
		Symbol:    tr.Symbol,
		Source:    tr.Source,
		Details:   tr.Details,
		Metrics:   metrics,
	}
}
