package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow = int64(1700000000500)

func TestParseFrame_AllMids(t *testing.T) {
	raw := []byte(`{"channel":"allMids","data":{"mids":{"BTC":"50000.5","ETH":"3000","BAD":"-1"}}}`)
	evt, err := ParseFrame(raw, testNow)
	require.NoError(t, err)
	mids, ok := evt.(AllMidsEvent)
	require.True(t, ok)
	assert.Equal(t, testNow, mids.Time)
	assert.Equal(t, map[string]float64{"BTC": 50000.5, "ETH": 3000}, mids.Mids)
}

func TestParseFrame_L2Book(t *testing.T) {
	raw := []byte(`{"channel":"l2Book","data":{"coin":"BTC","time":1700000000123,"levels":[
		[{"px":"49999.5","sz":"2","n":3},{"px":"49999","sz":"1","n":1}],
		[{"px":"50000.5","sz":"1.5","n":2}]
	]}}`)
	evt, err := ParseFrame(raw, testNow)
	require.NoError(t, err)
	book, ok := evt.(BookEvent)
	require.True(t, ok)
	snap := book.Snapshot
	assert.Equal(t, "BTC", snap.Symbol)
	assert.Equal(t, int64(1700000000123), snap.Timestamp)
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, 49999.5, snap.Bids[0].Price)
	assert.Equal(t, 3, snap.Bids[0].Orders)
	assert.InDelta(t, 50000.0, snap.Mid, 1e-9)
	assert.InDelta(t, 1.0, snap.Spread, 1e-9)
}

func TestParseFrame_Trades(t *testing.T) {
	bare := []byte(`{"channel":"trades","data":[
		{"coin":"ETH","px":"3000.25","sz":"0.5","side":"B","time":1700000000100},
		{"coin":"ETH","px":"3000.5","sz":"1","side":"A","t":1700000000200},
		{"coin":"","px":"1","sz":"1","side":"B"}
	]}`)
	evt, err := ParseFrame(bare, testNow)
	require.NoError(t, err)
	trades, ok := evt.(TradesEvent)
	require.True(t, ok)
	require.Len(t, trades.Trades, 2)
	assert.Equal(t, 3000.25, trades.Trades[0].Price)
	assert.Equal(t, int64(1700000000200), trades.Trades[1].Timestamp)

	// wrapped form {trades: [...]}
	wrapped := []byte(`{"channel":"trades","data":{"trades":[{"coin":"BTC","px":"50000","sz":"0.1","side":"B"}]}}`)
	evt, err = ParseFrame(wrapped, testNow)
	require.NoError(t, err)
	trades = evt.(TradesEvent)
	require.Len(t, trades.Trades, 1)
	assert.Equal(t, testNow, trades.Trades[0].Timestamp, "missing time falls back to receive time")
}

func TestParseFrame_Funding(t *testing.T) {
	raw := []byte(`{"channel":"funding","data":{"coin":"BTC","fundingRate":"0.0000125","nextFundingTime":1700003600000}}`)
	evt, err := ParseFrame(raw, testNow)
	require.NoError(t, err)
	funding, ok := evt.(FundingEvent)
	require.True(t, ok)
	assert.Equal(t, "BTC", funding.Funding.Symbol)
	assert.InDelta(t, 0.0000125, funding.Funding.Rate, 1e-12)
	assert.Equal(t, int64(1700003600000), funding.Funding.NextFunding)
}

func TestParseFrame_ControlAndErrors(t *testing.T) {
	_, err := ParseFrame([]byte(`{"channel":"subscriptionResponse","data":{}}`), testNow)
	assert.ErrorIs(t, err, ErrIgnoreFrame)

	_, err = ParseFrame([]byte(`{"channel":"pong"}`), testNow)
	assert.ErrorIs(t, err, ErrIgnoreFrame)

	_, err = ParseFrame([]byte(`{"channel":"orders","data":{}}`), testNow)
	assert.ErrorIs(t, err, ErrUnknownChannel)

	_, err = ParseFrame([]byte(`{"data":{}}`), testNow)
	assert.Error(t, err)

	_, err = ParseFrame([]byte(`{"channel":"allMids","data":{"mids":{}}}`), testNow)
	assert.Error(t, err)

	_, err = ParseFrame([]byte(`{"channel":"l2Book","data":{"coin":"BTC","levels":[[]]}}`), testNow)
	assert.Error(t, err)

	_, err = ParseFrame([]byte(`not json at all`), testNow)
	assert.Error(t, err)
}

func TestSubscribeRequestEncoding(t *testing.T) {
	raw, err := marshalRequest(SubscribeRequest(Subscription{Type: ChannelL2Book, Coin: "BTC"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"subscribe","subscription":{"type":"l2Book","coin":"BTC"}}`, string(raw))

	raw, err = marshalRequest(UnsubscribeRequest(Subscription{Type: ChannelAllMids}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"unsubscribe","subscription":{"type":"allMids"}}`, string(raw))
}
