package scheduler

import (
	"time"

	"hyperfeed/internal/market"
)

const DefaultBucketGrace = 2 * time.Second

// DropUnclosedBuckets removes candles whose bucket could still be
// receiving live ticks. REST snapshots include the in-progress bucket;
// persisting it would let a partial backfill candle clobber a live
// trade-sourced one under upsert semantics.
//
// Candle timestamps are bucket starts in milliseconds since epoch.
func DropUnclosedBuckets(candles []market.Candle, bucket time.Duration) []market.Candle {
	return dropUnclosedBucketsAt(candles, bucket, time.Now().UTC(), DefaultBucketGrace)
}

func dropUnclosedBucketsAt(candles []market.Candle, bucket time.Duration, now time.Time, grace time.Duration) []market.Candle {
	if len(candles) == 0 || bucket <= 0 {
		return candles
	}
	if grace < 0 {
		grace = 0
	}
	cutoff := now.UnixMilli() - bucket.Milliseconds() - grace.Milliseconds()
	out := candles[:0]
	for _, c := range candles {
		if c.Timestamp <= 0 || c.Timestamp <= cutoff {
			out = append(out, c)
		}
	}
	return out
}
