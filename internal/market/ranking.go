package market

import "sort"

// RankSymbolsForStreaming picks up to max symbols for the WebSocket
// subscription set: volume descending, ties broken lexicographically,
// symbols below minVolume excluded.
func RankSymbolsForStreaming(metas []AssetMeta, max int, minVolume float64) []string {
	if max <= 0 {
		return nil
	}
	eligible := make([]AssetMeta, 0, len(metas))
	for _, m := range metas {
		if m.Symbol == "" || m.DayVolume < minVolume {
			continue
		}
		eligible = append(eligible, m)
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].DayVolume != eligible[j].DayVolume {
			return eligible[i].DayVolume > eligible[j].DayVolume
		}
		return eligible[i].Symbol < eligible[j].Symbol
	})
	if len(eligible) > max {
		eligible = eligible[:max]
	}
	out := make([]string, 0, len(eligible))
	for _, m := range eligible {
		out = append(out, m.Symbol)
	}
	return out
}

// SelectBackfillSymbols filters the stale list down to symbols whose
// last backfill attempt is older than cooldownMs, ranks them by 24h
// volume descending (ties: oldest attempt first, then lexicographic)
// and caps the result at max. A symbol with no recorded attempt is
// always eligible.
func SelectBackfillSymbols(stale []string, volumes map[string]float64, attempts map[string]int64, nowMs, cooldownMs int64, max int) []string {
	if max <= 0 || len(stale) == 0 {
		return nil
	}
	eligible := make([]string, 0, len(stale))
	for _, sym := range stale {
		if sym == "" {
			continue
		}
		if last, ok := attempts[sym]; ok && nowMs-last < cooldownMs {
			continue
		}
		eligible = append(eligible, sym)
	}
	sort.Slice(eligible, func(i, j int) bool {
		vi, vj := volumes[eligible[i]], volumes[eligible[j]]
		if vi != vj {
			return vi > vj
		}
		ai, aj := attempts[eligible[i]], attempts[eligible[j]]
		if ai != aj {
			return ai < aj
		}
		return eligible[i] < eligible[j]
	})
	if len(eligible) > max {
		eligible = eligible[:max]
	}
	return eligible
}

// CoverageReport is one freshness audit over all tracked symbols.
type CoverageReport struct {
	Total int
	Fresh int
	Ratio float64
	Stale []string
}

// ComputeCoverage classifies every tracked symbol as fresh or stale.
// A symbol with lastSeen == 0 is always stale; one seen within
// freshnessMs of now is fresh. Ratio is fresh/total (1.0 when there
// are no symbols at all).
func ComputeCoverage(lastSeen map[string]int64, nowMs, freshnessMs int64) CoverageReport {
	report := CoverageReport{Total: len(lastSeen), Ratio: 1}
	if report.Total == 0 {
		return report
	}
	for sym, ts := range lastSeen {
		if ts > 0 && nowMs-ts <= freshnessMs {
			report.Fresh++
		} else {
			report.Stale = append(report.Stale, sym)
		}
	}
	sort.Strings(report.Stale)
	report.Ratio = float64(report.Fresh) / float64(report.Total)
	return report
}
