package zerodha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"session-trader/internal/broker"
	"session-trader/internal/calendar"
	"session-trader/internal/interfaces"
	"session-trader/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// Kite tags are limited to 20 characters.
const maxTagLen = 20

const productCNC = "CNC"

var tickSize = decimal.RequireFromString("0.05")

type Params struct {
	Paper       bool
	APIKey      string
	AccessToken string
	Exchange    string
	Product     string
	Calendar    *calendar.Exchange
}

// kiteAPI is the part of the Kite Connect client the bot uses.
type kiteAPI interface {
	GetUserProfile() (kiteconnect.UserProfile, error)
	GetPositions() (kiteconnect.Positions, error)
	GetHoldings() (kiteconnect.Holdings, error)
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetOrders() (kiteconnect.Orders, error)
	CancelOrder(variety string, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error)
}

type Zerodha struct {
	p   Params
	kc  kiteAPI
	now func() time.Time

	// paper holds simulated fills per symbol in PAPER mode, on top of what
	// the account really holds.
	mu    sync.Mutex
	paper map[string]int64
}

var _ interfaces.Brokerage = (*Zerodha)(nil)

func NewZerodha(p Params) (*Zerodha, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(p, kc)
}

func newWithClient(p Params, kc kiteAPI) (*Zerodha, error) {
	if p.Calendar == nil {
		return nil, errors.New("kite backend needs an exchange calendar")
	}
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	if p.Product == "" {
		p.Product = productCNC
	}
	return &Zerodha{p: p, kc: kc, now: time.Now, paper: map[string]int64{}}, nil
}

func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := broker.Call(ctx, fn)
	return v, describe(err)
}

func describe(err error) error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		return fmt.Errorf("kite %s (%d): %s: %w", kerr.ErrorType, kerr.Code, kerr.Message, err)
	}
	return err
}

func (z *Zerodha) instrument(symbol string) string {
	return z.p.Exchange + ":" + strings.ToUpper(symbol)
}

func (z *Zerodha) simulated(status string) types.OrderHandle {
	return types.OrderHandle{OrderID: broker.SimulatedOrderID(), Status: status}
}

func (z *Zerodha) AccountStatus(ctx context.Context) (types.Account, error) {
	profile, err := call(ctx, z.kc.GetUserProfile)
	if err != nil {
		return types.Account{}, err
	}
	// A profile that loads means the session token is valid.
	return types.Account{ID: profile.UserID, Status: "ACTIVE"}, nil
}

func (z *Zerodha) Clock(ctx context.Context) (types.Clock, error) {
	if err := ctx.Err(); err != nil {
		return types.Clock{}, err
	}
	return z.p.Calendar.Clock(z.now()), nil
}

func (z *Zerodha) SessionOpen(ctx context.Context, day time.Time) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	return z.p.Calendar.SessionOpen(day)
}

// Positions merges the day's net positions with demat holdings. CNC buys
// leave the net book for holdings at the next settlement, so both are needed
// to see what the account owns.
func (z *Zerodha) Positions(ctx context.Context) ([]types.Position, error) {
	ps, err := call(ctx, z.kc.GetPositions)
	if err != nil {
		return nil, err
	}
	qty := map[string]int64{}
	var order []string
	add := func(symbol string, q int64) {
		symbol = strings.ToUpper(symbol)
		if _, ok := qty[symbol]; !ok {
			order = append(order, symbol)
		}
		qty[symbol] += q
	}

	for _, p := range ps.Net {
		if p.Exchange != z.p.Exchange {
			continue
		}
		add(p.Tradingsymbol, int64(p.Quantity))
	}

	if z.p.Product == productCNC {
		hs, err := call(ctx, z.kc.GetHoldings)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			if h.Exchange != z.p.Exchange {
				continue
			}
			add(h.Tradingsymbol, int64(h.Quantity+h.T1Quantity))
		}
	}

	if z.p.Paper {
		z.mu.Lock()
		for sym, q := range z.paper {
			add(sym, q)
		}
		z.mu.Unlock()
	}

	out := make([]types.Position, 0, len(order))
	for _, sym := range order {
		out = append(out, types.Position{Symbol: sym, Qty: decimal.NewFromInt(qty[sym])})
	}
	return out, nil
}

func (z *Zerodha) LatestAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	inst := z.instrument(symbol)
	q, err := call(ctx, func() (kiteconnect.Quote, error) {
		return z.kc.GetQuote(inst)
	})
	if err != nil {
		return decimal.Zero, err
	}
	data, ok := q[inst]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", inst)
	}
	ask := data.Depth.Sell[0].Price
	if ask <= 0 {
		return decimal.Zero, fmt.Errorf("empty sell depth for %s", inst)
	}
	return decimal.NewFromFloat(ask), nil
}

// triggerFor approximates a trailing stop buy with a stop-market trigger
// trailPct above the current ask, rounded up to the exchange tick.
func triggerFor(ask, trailPct decimal.Decimal) decimal.Decimal {
	raw := ask.Mul(decimal.NewFromInt(1).Add(trailPct.Div(decimal.NewFromInt(100))))
	return raw.Div(tickSize).Ceil().Mul(tickSize)
}

func tag(clientOrderID string) string {
	if len(clientOrderID) > maxTagLen {
		return clientOrderID[:maxTagLen]
	}
	return clientOrderID
}

func (z *Zerodha) SubmitTrailingStopBuy(ctx context.Context, req types.TrailingStopOrder) (types.OrderHandle, error) {
	if !req.Qty.IsInteger() || !req.Qty.IsPositive() {
		return types.OrderHandle{}, fmt.Errorf("kite needs a whole positive quantity, got %s", req.Qty)
	}
	if z.p.Paper {
		// the simulated stop is treated as filled
		z.mu.Lock()
		z.paper[strings.ToUpper(req.Symbol)] += req.Qty.IntPart()
		z.mu.Unlock()
		h := z.simulated("SIMULATED")
		h.ClientOrderID = req.ClientOrderID
		return h, nil
	}

	ask := req.ReferenceAsk
	if !ask.IsPositive() {
		var err error
		ask, err = z.LatestAsk(ctx, req.Symbol)
		if err != nil {
			return types.OrderHandle{}, fmt.Errorf("price trigger: %w", err)
		}
	}
	trigger, _ := triggerFor(ask, req.TrailPercent).Float64()

	params := kiteconnect.OrderParams{
		Exchange:        z.p.Exchange,
		Tradingsymbol:   strings.ToUpper(req.Symbol),
		Validity:        kiteconnect.ValidityDay,
		Product:         z.p.Product,
		OrderType:       kiteconnect.OrderTypeSLM,
		TransactionType: kiteconnect.TransactionTypeBuy,
		Quantity:        int(req.Qty.IntPart()),
		TriggerPrice:    trigger,
		Tag:             tag(req.ClientOrderID),
	}
	resp, err := call(ctx, func() (kiteconnect.OrderResponse, error) {
		return z.kc.PlaceOrder(kiteconnect.VarietyRegular, params)
	})
	if err != nil {
		return types.OrderHandle{}, err
	}
	return types.OrderHandle{OrderID: resp.OrderID, ClientOrderID: req.ClientOrderID, Status: "PLACED"}, nil
}

var openStatuses = map[string]bool{
	"OPEN":                      true,
	"TRIGGER PENDING":           true,
	"OPEN PENDING":              true,
	"VALIDATION PENDING":        true,
	"PUT ORDER REQ RECEIVED":    true,
	"MODIFY PENDING":            true,
	"MODIFY VALIDATION PENDING": true,
	"AMO REQ RECEIVED":          true,
}

func (z *Zerodha) OpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	if z.p.Paper {
		return nil, nil
	}
	orders, err := call(ctx, z.kc.GetOrders)
	if err != nil {
		return nil, err
	}
	out := []types.OpenOrder{}
	for _, o := range orders {
		if !strings.EqualFold(o.TradingSymbol, symbol) || o.Exchange != z.p.Exchange {
			continue
		}
		if !openStatuses[o.Status] {
			continue
		}
		out = append(out, types.OpenOrder{ID: o.OrderID, Symbol: o.TradingSymbol, Status: o.Status})
	}
	return out, nil
}

func (z *Zerodha) CancelOrder(ctx context.Context, orderID string) error {
	if z.p.Paper {
		return nil
	}
	_, err := call(ctx, func() (kiteconnect.OrderResponse, error) {
		return z.kc.CancelOrder(kiteconnect.VarietyRegular, orderID, nil)
	})
	return err
}

func (z *Zerodha) ClosePosition(ctx context.Context, symbol string) (types.OrderHandle, error) {
	positions, err := z.Positions(ctx)
	if err != nil {
		return types.OrderHandle{}, err
	}
	var qty int64
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) {
			qty += p.Qty.IntPart()
		}
	}
	if qty == 0 {
		return types.OrderHandle{}, fmt.Errorf("no open position in %s", symbol)
	}
	if z.p.Paper {
		z.mu.Lock()
		z.paper[strings.ToUpper(symbol)] -= qty
		z.mu.Unlock()
		return z.simulated("SIMULATED"), nil
	}

	side := kiteconnect.TransactionTypeSell
	if qty < 0 {
		side = kiteconnect.TransactionTypeBuy
		qty = -qty
	}
	params := kiteconnect.OrderParams{
		Exchange:        z.p.Exchange,
		Tradingsymbol:   strings.ToUpper(symbol),
		Validity:        kiteconnect.ValidityDay,
		Product:         z.p.Product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: side,
		Quantity:        int(qty),
	}
	resp, err := call(ctx, func() (kiteconnect.OrderResponse, error) {
		return z.kc.PlaceOrder(kiteconnect.VarietyRegular, params)
	})
	if err != nil {
		return types.OrderHandle{}, err
	}
	return types.OrderHandle{OrderID: resp.OrderID, Status: "PLACED"}, nil
}
