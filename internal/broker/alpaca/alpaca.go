package alpaca

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"session-trader/internal/broker"
	"session-trader/internal/interfaces"
	"session-trader/internal/types"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

const (
	PaperURL = "https://paper-api.alpaca.markets"
	LiveURL  = "https://api.alpaca.markets"
)

// tradingAPI is the part of the Alpaca trading client the bot uses.
type tradingAPI interface {
	GetAccount() (*alpacaapi.Account, error)
	GetClock() (*alpacaapi.Clock, error)
	GetCalendar(req alpacaapi.GetCalendarRequest) ([]alpacaapi.CalendarDay, error)
	GetPositions() ([]alpacaapi.Position, error)
	PlaceOrder(req alpacaapi.PlaceOrderRequest) (*alpacaapi.Order, error)
	GetOrders(req alpacaapi.GetOrdersRequest) ([]alpacaapi.Order, error)
	CancelOrder(orderID string) error
	ClosePosition(symbol string, req alpacaapi.ClosePositionRequest) (*alpacaapi.Order, error)
}

type dataAPI interface {
	GetLatestQuote(symbol string, req marketdata.GetLatestQuoteRequest) (*marketdata.Quote, error)
}

type Params struct {
	Paper     bool
	APIKey    string
	APISecret string
	BaseURL   string
	DataFeed  string
}

type Alpaca struct {
	trading tradingAPI
	data    dataAPI
	feed    string
	market  *time.Location
}

var _ interfaces.Brokerage = (*Alpaca)(nil)

func NewAlpaca(p Params) (*Alpaca, error) {
	if p.APIKey == "" || p.APISecret == "" {
		return nil, errors.New("missing Alpaca API key/secret")
	}
	base := p.BaseURL
	if base == "" {
		base = LiveURL
		if p.Paper {
			base = PaperURL
		}
	}
	trading := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    p.APIKey,
		APISecret: p.APISecret,
		BaseURL:   base,
	})
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    p.APIKey,
		APISecret: p.APISecret,
	})
	return newWithClients(trading, data, p.DataFeed)
}

func newWithClients(trading tradingAPI, data dataAPI, feed string) (*Alpaca, error) {
	// Alpaca reports calendar days in exchange time.
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}
	return &Alpaca{trading: trading, data: data, feed: strings.ToLower(feed), market: ny}, nil
}

func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := broker.Call(ctx, fn)
	return v, describe(err)
}

// describe flattens Alpaca API errors into "status/code: message".
func describe(err error) error {
	var apiErr *alpacaapi.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("alpaca %d/%d: %s: %w", apiErr.StatusCode, apiErr.Code, apiErr.Message, err)
	}
	return err
}

func (a *Alpaca) AccountStatus(ctx context.Context) (types.Account, error) {
	acct, err := call(ctx, a.trading.GetAccount)
	if err != nil {
		return types.Account{}, err
	}
	return types.Account{
		ID:             acct.ID,
		Status:         string(acct.Status),
		TradingBlocked: acct.TradingBlocked || acct.AccountBlocked,
	}, nil
}

func (a *Alpaca) Clock(ctx context.Context) (types.Clock, error) {
	c, err := call(ctx, a.trading.GetClock)
	if err != nil {
		return types.Clock{}, err
	}
	return types.Clock{
		Timestamp: c.Timestamp,
		IsOpen:    c.IsOpen,
		NextOpen:  c.NextOpen,
		NextClose: c.NextClose,
	}, nil
}

func (a *Alpaca) SessionOpen(ctx context.Context, day time.Time) (time.Time, error) {
	d := day.In(a.market)
	days, err := call(ctx, func() ([]alpacaapi.CalendarDay, error) {
		return a.trading.GetCalendar(alpacaapi.GetCalendarRequest{Start: d, End: d})
	})
	if err != nil {
		return time.Time{}, err
	}
	want := d.Format("2006-01-02")
	for _, cd := range days {
		if cd.Date != want {
			continue
		}
		open, err := time.ParseInLocation("2006-01-02 15:04", cd.Date+" "+cd.Open, a.market)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse calendar open %q: %w", cd.Open, err)
		}
		return open, nil
	}
	return time.Time{}, fmt.Errorf("no session on %s", want)
}

func (a *Alpaca) Positions(ctx context.Context) ([]types.Position, error) {
	ps, err := call(ctx, a.trading.GetPositions)
	if err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, types.Position{Symbol: p.Symbol, Qty: p.Qty})
	}
	return out, nil
}

func (a *Alpaca) LatestAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := call(ctx, func() (*marketdata.Quote, error) {
		return a.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{Feed: marketdata.Feed(a.feed)})
	})
	if err != nil {
		return decimal.Zero, err
	}
	if q == nil {
		return decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	return decimal.NewFromFloat(q.AskPrice), nil
}

func (a *Alpaca) SubmitTrailingStopBuy(ctx context.Context, req types.TrailingStopOrder) (types.OrderHandle, error) {
	qty := req.Qty
	trail := req.TrailPercent
	o, err := call(ctx, func() (*alpacaapi.Order, error) {
		return a.trading.PlaceOrder(alpacaapi.PlaceOrderRequest{
			Symbol:        req.Symbol,
			Qty:           &qty,
			Side:          alpacaapi.Buy,
			Type:          alpacaapi.TrailingStop,
			TimeInForce:   alpacaapi.TimeInForce(strings.ToLower(req.TimeInForce)),
			TrailPercent:  &trail,
			ExtendedHours: req.ExtendedHours,
			ClientOrderID: req.ClientOrderID,
		})
	})
	if err != nil {
		return types.OrderHandle{}, err
	}
	return types.OrderHandle{OrderID: o.ID, ClientOrderID: o.ClientOrderID, Status: string(o.Status)}, nil
}

func (a *Alpaca) OpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	os, err := call(ctx, func() ([]alpacaapi.Order, error) {
		return a.trading.GetOrders(alpacaapi.GetOrdersRequest{Status: "open", Symbols: []string{symbol}})
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.OpenOrder, 0, len(os))
	for _, o := range os {
		if !strings.EqualFold(o.Symbol, symbol) {
			continue
		}
		out = append(out, types.OpenOrder{ID: o.ID, Symbol: o.Symbol, Status: string(o.Status)})
	}
	return out, nil
}

func (a *Alpaca) CancelOrder(ctx context.Context, orderID string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, a.trading.CancelOrder(orderID)
	})
	return err
}

func (a *Alpaca) ClosePosition(ctx context.Context, symbol string) (types.OrderHandle, error) {
	o, err := call(ctx, func() (*alpacaapi.Order, error) {
		return a.trading.ClosePosition(symbol, alpacaapi.ClosePositionRequest{})
	})
	if err != nil {
		return types.OrderHandle{}, err
	}
	if o == nil {
		return types.OrderHandle{}, nil
	}
	return types.OrderHandle{OrderID: o.ID, ClientOrderID: o.ClientOrderID, Status: string(o.Status)}, nil
}
