package market

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Wire candles arrive either as positional arrays [t,o,h,l,c,v] or as
// objects with short/long key aliases. Exchanges are not consistent
// about string-vs-number encoding either, so every field goes through
// the same tolerant extraction.

// ParseSnapshotCandle normalizes one wire candle into a validated
// Candle. It returns nil for malformed entries: missing timestamp,
// non-positive prices, high < low, or open/close outside [low, high].
// Symbol and Source are left for the caller to assign.
func ParseSnapshotCandle(raw []byte) *Candle {
	return parseSnapshotCandle(gjson.ParseBytes(raw))
}

// ParseSnapshotCandles parses a REST candleSnapshot response body.
// Malformed entries are skipped, not fatal.
func ParseSnapshotCandles(raw []byte) []Candle {
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil
	}
	items := root.Array()
	out := make([]Candle, 0, len(items))
	for _, item := range items {
		if c := parseSnapshotCandle(item); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func parseSnapshotCandle(res gjson.Result) *Candle {
	var c Candle
	switch {
	case res.IsArray():
		arr := res.Array()
		if len(arr) < 5 {
			return nil
		}
		ts, ok := toTimestampMs(arr[0])
		if !ok {
			return nil
		}
		c.Timestamp = ts
		c.Open, _ = toNumber(arr[1])
		c.High, _ = toNumber(arr[2])
		c.Low, _ = toNumber(arr[3])
		c.Close, _ = toNumber(arr[4])
		if len(arr) > 5 {
			c.Volume, _ = toNumber(arr[5])
		}
	case res.IsObject():
		ts, ok := toTimestampMs(firstField(res, "t", "time", "timestamp"))
		if !ok {
			return nil
		}
		c.Timestamp = ts
		c.Open, _ = toNumber(firstField(res, "o", "open"))
		c.High, _ = toNumber(firstField(res, "h", "high"))
		c.Low, _ = toNumber(firstField(res, "l", "low"))
		c.Close, _ = toNumber(firstField(res, "c", "close"))
		c.Volume, _ = toNumber(firstField(res, "v", "n", "volume"))
	default:
		return nil
	}
	if !c.Valid() {
		return nil
	}
	return &c
}

func firstField(res gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := res.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// toNumber extracts a float from a string or numeric JSON value.
// String values go through decimal to avoid locale/precision surprises
// on exchange-formatted prices.
func toNumber(res gjson.Result) (float64, bool) {
	switch res.Type {
	case gjson.Number:
		return res.Float(), true
	case gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(res.String()))
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}

// toTimestampMs accepts second or millisecond timestamps and
// normalizes to milliseconds. Anything below the millisecond epoch
// range (~2001 in ms) is treated as seconds.
func toTimestampMs(res gjson.Result) (int64, bool) {
	f, ok := toNumber(res)
	if !ok || f <= 0 {
		return 0, false
	}
	ts := int64(f)
	if ts < 1_000_000_000_000 {
		ts *= 1000
	}
	return ts, true
}
