package hyperliquid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hyperfeed/internal/market"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Subscription channel types.
const (
	ChannelAllMids = "allMids"
	ChannelL2Book  = "l2Book"
	ChannelTrades  = "trades"
	ChannelFunding = "funding"
)

// Subscription identifies one stream on the socket.
type Subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
}

// Request is an outbound control frame.
type Request struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

func SubscribeRequest(sub Subscription) Request {
	return Request{Method: "subscribe", Subscription: sub}
}

func UnsubscribeRequest(sub Subscription) Request {
	return Request{Method: "unsubscribe", Subscription: sub}
}

// Event is one parsed inbound frame. Exactly one kind per channel, so
// business logic never sees untyped maps.
type Event interface {
	EventChannel() string
}

// AllMidsEvent carries the latest mid price per symbol.
type AllMidsEvent struct {
	Time int64
	Mids map[string]float64
}

func (AllMidsEvent) EventChannel() string { return ChannelAllMids }

// BookEvent is a full top-of-book snapshot for one symbol.
type BookEvent struct {
	Snapshot market.OrderBookSnapshot
}

func (BookEvent) EventChannel() string { return ChannelL2Book }

// TradesEvent carries one or more trades for one symbol.
type TradesEvent struct {
	Trades []market.Trade
}

func (TradesEvent) EventChannel() string { return ChannelTrades }

// FundingEvent is a funding-rate observation.
type FundingEvent struct {
	Funding market.FundingRate
}

func (FundingEvent) EventChannel() string { return ChannelFunding }

var (
	// ErrIgnoreFrame marks control frames (acks, pongs) that carry no
	// market data.
	ErrIgnoreFrame = errors.New("frame carries no market data")
	// ErrUnknownChannel marks frames on a channel we never subscribed to.
	ErrUnknownChannel = errors.New("unknown channel")
)

// ParseFrame converts one raw inbound frame into a typed event.
// Malformed frames return an error; they are logged and skipped by the
// caller, never fatal.
func ParseFrame(raw []byte, nowMs int64) (Event, error) {
	root := gjson.ParseBytes(raw)
	channel := root.Get("channel").String()
	if channel == "" {
		return nil, fmt.Errorf("frame missing channel: %s", truncate(raw))
	}
	data := root.Get("data")
	if !data.Exists() {
		data = root
	}
	switch channel {
	case ChannelAllMids:
		return parseAllMids(data, nowMs)
	case ChannelL2Book:
		return parseL2Book(data, nowMs)
	case ChannelTrades:
		return parseTrades(data, nowMs)
	case ChannelFunding:
		return parseFunding(data, nowMs)
	case "subscriptionResponse", "pong", "error":
		return nil, ErrIgnoreFrame
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
}

func parseAllMids(data gjson.Result, nowMs int64) (Event, error) {
	mids := data.Get("mids")
	if !mids.IsObject() {
		return nil, fmt.Errorf("allMids frame missing mids object")
	}
	evt := AllMidsEvent{Time: nowMs, Mids: make(map[string]float64)}
	mids.ForEach(func(key, value gjson.Result) bool {
		if px := num(value); px > 0 {
			evt.Mids[key.String()] = px
		}
		return true
	})
	if len(evt.Mids) == 0 {
		return nil, fmt.Errorf("allMids frame with no valid mids")
	}
	return evt, nil
}

func parseL2Book(data gjson.Result, nowMs int64) (Event, error) {
	coin := strings.TrimSpace(data.Get("coin").String())
	if coin == "" {
		return nil, fmt.Errorf("l2Book frame missing coin")
	}
	levels := data.Get("levels").Array()
	if len(levels) < 2 {
		return nil, fmt.Errorf("l2Book frame for %s missing levels", coin)
	}
	snap := market.OrderBookSnapshot{
		Symbol:    coin,
		Timestamp: frameTime(data, nowMs),
		Bids:      parseLevels(levels[0]),
		Asks:      parseLevels(levels[1]),
	}
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		bestBid := snap.Bids[0].Price
		bestAsk := snap.Asks[0].Price
		snap.Mid = (bestBid + bestAsk) / 2
		snap.Spread = bestAsk - bestBid
	}
	return BookEvent{Snapshot: snap}, nil
}

func parseLevels(side gjson.Result) []market.BookLevel {
	raw := side.Array()
	out := make([]market.BookLevel, 0, len(raw))
	for _, lvl := range raw {
		px := num(lvl.Get("px"))
		if px <= 0 {
			continue
		}
		out = append(out, market.BookLevel{
			Price:  px,
			Size:   num(lvl.Get("sz")),
			Orders: int(lvl.Get("n").Int()),
		})
	}
	return out
}

func parseTrades(data gjson.Result, nowMs int64) (Event, error) {
	items := data
	if !items.IsArray() {
		items = data.Get("trades")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("trades frame is not an array")
	}
	var trades []market.Trade
	for _, item := range items.Array() {
		coin := strings.TrimSpace(item.Get("coin").String())
		px := num(item.Get("px"))
		if coin == "" || px <= 0 {
			continue
		}
		ts := item.Get("time").Int()
		if ts == 0 {
			ts = item.Get("t").Int()
		}
		if ts == 0 {
			ts = nowMs
		}
		trades = append(trades, market.Trade{
			Symbol:    coin,
			Timestamp: ts,
			Price:     px,
			Size:      num(item.Get("sz")),
			Side:      item.Get("side").String(),
		})
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("trades frame with no valid trades")
	}
	return TradesEvent{Trades: trades}, nil
}

func parseFunding(data gjson.Result, nowMs int64) (Event, error) {
	coin := strings.TrimSpace(data.Get("coin").String())
	if coin == "" {
		return nil, fmt.Errorf("funding frame missing coin")
	}
	rate := data.Get("fundingRate")
	if !rate.Exists() {
		rate = data.Get("funding")
	}
	if !rate.Exists() {
		return nil, fmt.Errorf("funding frame for %s missing rate", coin)
	}
	return FundingEvent{Funding: market.FundingRate{
		Symbol:      coin,
		Timestamp:   frameTime(data, nowMs),
		Rate:        num(rate),
		NextFunding: data.Get("nextFundingTime").Int(),
	}}, nil
}

func frameTime(data gjson.Result, nowMs int64) int64 {
	if ts := data.Get("time").Int(); ts > 0 {
		return ts
	}
	return nowMs
}

// num parses a string or numeric JSON value. Exchange prices arrive as
// decimal strings; parse them exactly before converting to float.
func num(res gjson.Result) float64 {
	switch res.Type {
	case gjson.Number:
		return res.Float()
	case gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(res.String()))
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	default:
		return 0
	}
}

func truncate(raw []byte) string {
	const max = 160
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}

// marshalRequest is used by the socket writer; kept here so frame
// encoding and decoding live in one file.
func marshalRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}
