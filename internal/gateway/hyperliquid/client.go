package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hyperfeed/internal/market"

	"github.com/tidwall/gjson"
)

const (
	defaultRESTBase    = "https://api.hyperliquid.xyz"
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 1 << 24
)

// Client is the REST side of the exchange: candle snapshots for
// backfill/enrichment and the asset catalog.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultRESTBase
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

type candleSnapshotReq struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

type infoRequest struct {
	Type string `json:"type"`
	Req  any    `json:"req,omitempty"`
}

// CandleSnapshot fetches candles for one symbol over [startMs, endMs].
// Malformed entries in the response are dropped, not fatal.
func (c *Client) CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]market.Candle, error) {
	body, err := c.post(ctx, infoRequest{
		Type: "candleSnapshot",
		Req:  candleSnapshotReq{Coin: coin, Interval: interval, StartTime: startMs, EndTime: endMs},
	})
	if err != nil {
		return nil, fmt.Errorf("candle snapshot %s: %w", coin, err)
	}
	candles := market.ParseSnapshotCandles(body)
	for i := range candles {
		candles[i].Symbol = coin
	}
	return candles, nil
}

// AssetMetas fetches the full tradable universe with per-symbol volume
// and leverage metadata.
func (c *Client) AssetMetas(ctx context.Context) ([]market.AssetMeta, error) {
	body, err := c.post(ctx, infoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return nil, fmt.Errorf("asset metas: %w", err)
	}
	return parseAssetMetas(body)
}

// Response shape: [{universe: [{name, szDecimals, maxLeverage}, ...]},
// [{dayNtlVlm, ...}, ...]] with the context array parallel to the
// universe array.
func parseAssetMetas(body []byte) ([]market.AssetMeta, error) {
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("metaAndAssetCtxs: unexpected response shape")
	}
	parts := root.Array()
	if len(parts) < 2 {
		return nil, fmt.Errorf("metaAndAssetCtxs: missing asset contexts")
	}
	universe := parts[0].Get("universe").Array()
	ctxs := parts[1].Array()
	out := make([]market.AssetMeta, 0, len(universe))
	for i, asset := range universe {
		name := strings.TrimSpace(asset.Get("name").String())
		if name == "" {
			continue
		}
		meta := market.AssetMeta{
			Symbol:      name,
			Category:    "perp",
			MaxLeverage: int(asset.Get("maxLeverage").Int()),
			SzDecimals:  int(asset.Get("szDecimals").Int()),
		}
		if i < len(ctxs) {
			meta.DayVolume = num(ctxs[i].Get("dayNtlVlm"))
		}
		out = append(out, meta)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("metaAndAssetCtxs: empty universe")
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload infoRequest) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/info", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}
