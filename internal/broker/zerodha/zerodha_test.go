package zerodha

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"session-trader/internal/calendar"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

type fakeKite struct {
	profile   string
	positions string
	holdings  string
	quote     string
	orders    string
	err       error

	placed    []kiteconnect.OrderParams
	cancelled []string
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if raw != "" {
		require.NoError(t, json.Unmarshal([]byte(raw), &v))
	}
	return v
}

type kiteHarness struct {
	t *testing.T
	f *fakeKite
}

func (h kiteHarness) GetUserProfile() (kiteconnect.UserProfile, error) {
	return decode[kiteconnect.UserProfile](h.t, h.f.profile), h.f.err
}

func (h kiteHarness) GetPositions() (kiteconnect.Positions, error) {
	return decode[kiteconnect.Positions](h.t, h.f.positions), h.f.err
}

func (h kiteHarness) GetHoldings() (kiteconnect.Holdings, error) {
	return decode[kiteconnect.Holdings](h.t, h.f.holdings), h.f.err
}

func (h kiteHarness) GetQuote(instruments ...string) (kiteconnect.Quote, error) {
	return decode[kiteconnect.Quote](h.t, h.f.quote), h.f.err
}

func (h kiteHarness) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	if h.f.err != nil {
		return kiteconnect.OrderResponse{}, h.f.err
	}
	h.f.placed = append(h.f.placed, p)
	return kiteconnect.OrderResponse{OrderID: "kite-1"}, nil
}

func (h kiteHarness) GetOrders() (kiteconnect.Orders, error) {
	return decode[kiteconnect.Orders](h.t, h.f.orders), h.f.err
}

func (h kiteHarness) CancelOrder(variety, orderID string, parent *string) (kiteconnect.OrderResponse, error) {
	h.f.cancelled = append(h.f.cancelled, orderID)
	return kiteconnect.OrderResponse{OrderID: orderID}, h.f.err
}

func newTestZerodha(t *testing.T, paper bool, f *fakeKite) *Zerodha {
	t.Helper()
	cal, err := calendar.New("Asia/Kolkata", "09:15", "15:30", nil)
	require.NoError(t, err)
	z, err := newWithClient(Params{Paper: paper, Calendar: cal}, kiteHarness{t: t, f: f})
	require.NoError(t, err)
	return z
}

func buyOrder(qty int64) types.TrailingStopOrder {
	return types.TrailingStopOrder{
		Symbol:        "infy",
		Qty:           decimal.NewFromInt(qty),
		TrailPercent:  decimal.NewFromInt(2),
		TimeInForce:   "DAY",
		ClientOrderID: "0123456789abcdef0123456789abcdef",
	}
}

func TestNewZerodhaRequiresCredentials(t *testing.T) {
	_, err := NewZerodha(Params{})
	require.Error(t, err)
}

func TestNewRequiresCalendar(t *testing.T) {
	_, err := newWithClient(Params{}, kiteHarness{t: t, f: &fakeKite{}})
	require.Error(t, err)
}

func TestAccountStatusFromProfile(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{profile: `{"user_id":"AB1234"}`})
	acct, err := z.AccountStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AB1234", acct.ID)
	assert.False(t, acct.TradingBlocked)
}

func TestClockUsesCalendar(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{})
	ist, _ := time.LoadLocation("Asia/Kolkata")
	z.now = func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, ist) }

	c, err := z.Clock(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsOpen)
	assert.Equal(t, time.Date(2024, 3, 5, 15, 30, 0, 0, ist), c.NextClose.In(ist))
	assert.Equal(t, time.Date(2024, 3, 5, 9, 15, 0, 0, ist), c.SessionOpen.In(ist))
}

func TestPositionsKeepsConfiguredExchange(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{positions: `{"net":[
		{"tradingsymbol":"INFY","exchange":"NSE","quantity":5},
		{"tradingsymbol":"INFY","exchange":"BSE","quantity":7}
	]}`})
	ps, err := z.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "INFY", ps[0].Symbol)
	assert.True(t, ps[0].Qty.Equal(decimal.NewFromInt(5)))
}

func TestPositionsIncludeHoldings(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{
		positions: `{"net":[]}`,
		holdings: `[
			{"tradingsymbol":"INFY","exchange":"NSE","quantity":3,"t1_quantity":2},
			{"tradingsymbol":"INFY","exchange":"BSE","quantity":9}
		]`,
	})
	ps, err := z.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "INFY", ps[0].Symbol)
	assert.True(t, ps[0].Qty.Equal(decimal.NewFromInt(5)))
}

func TestPositionsHoldingSoldToday(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{
		positions: `{"net":[{"tradingsymbol":"INFY","exchange":"NSE","quantity":-5}]}`,
		holdings:  `[{"tradingsymbol":"INFY","exchange":"NSE","quantity":5}]`,
	})
	ps, err := z.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Qty.IsZero())
}

func TestPositionsIntradayProductIgnoresHoldings(t *testing.T) {
	cal, err := calendar.New("Asia/Kolkata", "09:15", "15:30", nil)
	require.NoError(t, err)
	f := &fakeKite{
		positions: `{"net":[{"tradingsymbol":"INFY","exchange":"NSE","quantity":2}]}`,
		holdings:  `[{"tradingsymbol":"INFY","exchange":"NSE","quantity":5}]`,
	}
	z, err := newWithClient(Params{Product: "MIS", Calendar: cal}, kiteHarness{t: t, f: f})
	require.NoError(t, err)

	ps, err := z.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Qty.Equal(decimal.NewFromInt(2)))
}

func TestLatestAskReadsSellDepth(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{quote: `{"NSE:INFY":{"depth":{"sell":[{"price":1500.5,"quantity":10,"orders":1}]}}}`})
	ask, err := z.LatestAsk(context.Background(), "infy")
	require.NoError(t, err)
	assert.Equal(t, "1500.5", ask.String())
}

func TestLatestAskEmptyDepth(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{quote: `{"NSE:INFY":{"last_price":1500}}`})
	_, err := z.LatestAsk(context.Background(), "INFY")
	require.Error(t, err)
}

func TestTriggerRoundsUpToTick(t *testing.T) {
	got := triggerFor(decimal.RequireFromString("100.01"), decimal.NewFromInt(2))
	// 100.01 * 1.02 = 102.0102
	assert.Equal(t, "102.05", got.StringFixed(2))

	got = triggerFor(decimal.NewFromInt(100), decimal.NewFromInt(2))
	assert.Equal(t, "102.00", got.StringFixed(2))
}

func TestSubmitPaperIsSimulated(t *testing.T) {
	f := &fakeKite{}
	z := newTestZerodha(t, true, f)
	h, err := z.SubmitTrailingStopBuy(context.Background(), buyOrder(1))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.OrderID, "SIM-"))
	assert.Equal(t, "SIMULATED", h.Status)
	assert.Empty(t, f.placed)
}

func TestSubmitLivePlacesStopMarket(t *testing.T) {
	f := &fakeKite{quote: `{"NSE:INFY":{"depth":{"sell":[{"price":100,"quantity":10,"orders":1}]}}}`}
	z := newTestZerodha(t, false, f)

	h, err := z.SubmitTrailingStopBuy(context.Background(), buyOrder(3))
	require.NoError(t, err)
	assert.Equal(t, "kite-1", h.OrderID)

	require.Len(t, f.placed, 1)
	p := f.placed[0]
	assert.Equal(t, "INFY", p.Tradingsymbol)
	assert.Equal(t, "NSE", p.Exchange)
	assert.Equal(t, kiteconnect.OrderTypeSLM, p.OrderType)
	assert.Equal(t, kiteconnect.TransactionTypeBuy, p.TransactionType)
	assert.Equal(t, 3, p.Quantity)
	assert.InDelta(t, 102.0, p.TriggerPrice, 1e-9)
	assert.Len(t, p.Tag, maxTagLen)
}

func TestSubmitPricesTriggerFromReferenceAsk(t *testing.T) {
	// no quote configured: a second fetch would fail
	f := &fakeKite{}
	z := newTestZerodha(t, false, f)
	req := buyOrder(1)
	req.ReferenceAsk = decimal.RequireFromString("100.01")

	_, err := z.SubmitTrailingStopBuy(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.placed, 1)
	assert.InDelta(t, 102.05, f.placed[0].TriggerPrice, 1e-9)
}

func TestPaperTracksSimulatedFills(t *testing.T) {
	f := &fakeKite{positions: `{"net":[]}`}
	z := newTestZerodha(t, true, f)
	ctx := context.Background()

	_, err := z.SubmitTrailingStopBuy(ctx, buyOrder(2))
	require.NoError(t, err)
	ps, err := z.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "INFY", ps[0].Symbol)
	assert.True(t, ps[0].Qty.Equal(decimal.NewFromInt(2)))

	h, err := z.ClosePosition(ctx, "INFY")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.OrderID, "SIM-"))
	ps, err = z.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Qty.IsZero())
	assert.Empty(t, f.placed)
}

func TestSubmitRejectsFractionalQuantity(t *testing.T) {
	z := newTestZerodha(t, true, &fakeKite{})
	req := buyOrder(1)
	req.Qty = decimal.RequireFromString("0.5")
	_, err := z.SubmitTrailingStopBuy(context.Background(), req)
	require.Error(t, err)
}

func TestOpenOrdersFiltersStatus(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{orders: `[
		{"order_id":"1","status":"TRIGGER PENDING","tradingsymbol":"INFY","exchange":"NSE"},
		{"order_id":"2","status":"COMPLETE","tradingsymbol":"INFY","exchange":"NSE"},
		{"order_id":"3","status":"OPEN","tradingsymbol":"TCS","exchange":"NSE"}
	]`})
	os, err := z.OpenOrders(context.Background(), "INFY")
	require.NoError(t, err)
	require.Len(t, os, 1)
	assert.Equal(t, "1", os[0].ID)
}

func TestClosePositionSellsNetQuantity(t *testing.T) {
	f := &fakeKite{positions: `{"net":[{"tradingsymbol":"INFY","exchange":"NSE","quantity":4}]}`}
	z := newTestZerodha(t, false, f)

	h, err := z.ClosePosition(context.Background(), "INFY")
	require.NoError(t, err)
	assert.Equal(t, "kite-1", h.OrderID)
	require.Len(t, f.placed, 1)
	assert.Equal(t, kiteconnect.TransactionTypeSell, f.placed[0].TransactionType)
	assert.Equal(t, kiteconnect.OrderTypeMarket, f.placed[0].OrderType)
	assert.Equal(t, 4, f.placed[0].Quantity)
}

func TestClosePositionSellsHoldings(t *testing.T) {
	f := &fakeKite{
		positions: `{"net":[]}`,
		holdings:  `[{"tradingsymbol":"INFY","exchange":"NSE","quantity":4,"t1_quantity":1}]`,
	}
	z := newTestZerodha(t, false, f)

	_, err := z.ClosePosition(context.Background(), "INFY")
	require.NoError(t, err)
	require.Len(t, f.placed, 1)
	assert.Equal(t, kiteconnect.TransactionTypeSell, f.placed[0].TransactionType)
	assert.Equal(t, "CNC", f.placed[0].Product)
	assert.Equal(t, 5, f.placed[0].Quantity)
}

func TestClosePositionFlat(t *testing.T) {
	z := newTestZerodha(t, false, &fakeKite{positions: `{"net":[]}`})
	_, err := z.ClosePosition(context.Background(), "INFY")
	require.Error(t, err)
}
