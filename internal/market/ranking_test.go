package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func metas(pairs ...any) []AssetMeta {
	out := make([]AssetMeta, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, AssetMeta{Symbol: pairs[i].(string), DayVolume: pairs[i+1].(float64)})
	}
	return out
}

func TestRankSymbolsForStreaming(t *testing.T) {
	universe := metas("ETH", 500.0, "BTC", 900.0, "DOGE", 50.0, "SOL", 500.0, "PEPE", 0.5)

	ranked := RankSymbolsForStreaming(universe, 3, 1.0)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, ranked)

	all := RankSymbolsForStreaming(universe, 100, 1.0)
	assert.Equal(t, []string{"BTC", "ETH", "SOL", "DOGE"}, all, "below-minimum volume excluded")

	assert.Nil(t, RankSymbolsForStreaming(universe, 0, 0))
	assert.Empty(t, RankSymbolsForStreaming(nil, 10, 0))
}

func TestSelectBackfillSymbols_CooldownFilter(t *testing.T) {
	now := int64(1_000_000)
	cooldown := int64(120_000)
	stale := []string{"BTC", "ETH", "SOL", "DOGE"}
	volumes := map[string]float64{"BTC": 900, "ETH": 500, "SOL": 500, "DOGE": 50}
	attempts := map[string]int64{
		"BTC": now - 10_000,  // too recent, filtered
		"ETH": now - 130_000, // past cooldown
		// SOL, DOGE never attempted
	}

	selected := SelectBackfillSymbols(stale, volumes, attempts, now, cooldown, 10)
	assert.Equal(t, []string{"ETH", "SOL", "DOGE"}, selected)
	for _, sym := range selected {
		if last, ok := attempts[sym]; ok {
			assert.GreaterOrEqual(t, now-last, cooldown)
		}
	}
}

func TestSelectBackfillSymbols_RankingAndCap(t *testing.T) {
	now := int64(1_000_000)
	stale := []string{"C", "A", "B", "D"}
	volumes := map[string]float64{"A": 100, "B": 100, "C": 100, "D": 900}
	attempts := map[string]int64{"A": 500, "B": 200}

	// D first on volume; equal-volume group ordered by oldest attempt
	// (never attempted sorts first), then lexicographic.
	selected := SelectBackfillSymbols(stale, volumes, attempts, now, 100, 10)
	assert.Equal(t, []string{"D", "C", "B", "A"}, selected)

	capped := SelectBackfillSymbols(stale, volumes, attempts, now, 100, 2)
	assert.Equal(t, []string{"D", "C"}, capped)
}

func TestComputeCoverage(t *testing.T) {
	now := int64(1_000_000)
	freshness := int64(120_000)
	lastSeen := map[string]int64{
		"BTC":  now - 1_000,   // fresh
		"ETH":  now - 120_000, // exactly at threshold: fresh
		"SOL":  now - 300_000, // stale
		"DOGE": 0,             // never seen: stale
	}

	report := ComputeCoverage(lastSeen, now, freshness)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Fresh)
	assert.InDelta(t, 0.5, report.Ratio, 1e-9)
	assert.Equal(t, []string{"DOGE", "SOL"}, report.Stale)

	empty := ComputeCoverage(nil, now, freshness)
	assert.Equal(t, 1.0, empty.Ratio)
	assert.Empty(t, empty.Stale)
}
