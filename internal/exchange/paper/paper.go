// Package paper implements a forward-testing exchange. Orders fill instantly
// at the latest candle close and the ledger persists across runs as JSON.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/types"
)

func stateDir() string {
	if d := os.Getenv("TRADER_STATE_DIR"); d != "" {
		return d
	}
	return "forward_tests"
}

type Params struct {
	RunName        string
	InitialCapital float64
	Fees           float64 // taker fee rate, e.g. 0.0006
	Interval       string
	Feed           interfaces.CandleSource
}

// Trade is one closed round trip in the ledger.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	Fees       float64   `json:"fees"`
	ClosedAt   time.Time `json:"closed_at"`
}

type state struct {
	Capital  float64         `json:"capital"`
	Position *types.Position `json:"position,omitempty"`
	Trades   []Trade         `json:"trades"`
}

type ForwardTester struct {
	mu       sync.Mutex
	params   Params
	st       state
	entryFee float64 // fee reserved when the open position was placed
	nextID   int
}

func New(p Params) (*ForwardTester, error) {
	if p.RunName == "" {
		return nil, errors.New("paper: run name required")
	}
	if p.Feed == nil {
		return nil, errors.New("paper: candle source required")
	}
	ft := &ForwardTester{params: p, st: state{Capital: p.InitialCapital}}
	if err := ft.load(); err != nil {
		return nil, err
	}
	return ft, nil
}

func (f *ForwardTester) statePath() string {
	return filepath.Join(stateDir(), f.params.RunName+".json")
}

func (f *ForwardTester) load() error {
	b, err := os.ReadFile(f.statePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read forward test state: %w", err)
	}
	if err := json.Unmarshal(b, &f.st); err != nil {
		return fmt.Errorf("parse forward test state: %w", err)
	}
	return nil
}

// save is called with the mutex held.
func (f *ForwardTester) save() error {
	if err := os.MkdirAll(stateDir(), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f.st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.statePath(), b, 0o644)
}

func (f *ForwardTester) AccountBalance(ctx context.Context, asset string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.Capital, nil
}

func (f *ForwardTester) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := f.params.Feed.RecentCandles(ctx, symbol, f.params.Interval, 1)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

func (f *ForwardTester) PendingPosition(ctx context.Context, symbol string) (*types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Position == nil || f.st.Position.Symbol != symbol {
		return nil, nil
	}
	cp := *f.st.Position
	return &cp, nil
}

func (f *ForwardTester) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	price, err := f.CurrentPrice(ctx, req.Symbol)
	if err != nil {
		return types.OrderResp{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if req.TradeSide != "OPEN" {
		return types.OrderResp{}, fmt.Errorf("unsupported trade side %q", req.TradeSide)
	}
	if f.st.Position != nil {
		return types.OrderResp{}, errors.New("position already open")
	}

	notional := req.Qty * price
	fee := notional * f.params.Fees
	if notional+fee > f.st.Capital {
		return types.OrderResp{}, fmt.Errorf("insufficient capital: need %.2f, have %.2f", notional+fee, f.st.Capital)
	}

	f.nextID++
	f.st.Capital -= notional + fee
	f.entryFee = fee
	f.st.Position = &types.Position{
		ID:      fmt.Sprintf("paper-%d-%d", time.Now().Unix(), f.nextID),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Qty:     req.Qty,
		AvgOpen: price,
	}
	if err := f.save(); err != nil {
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, req.Symbol, req.Side, req.Qty, price, f.st.Position.ID,
		"fee", fee, "capital", f.st.Capital)
	return types.OrderResp{OrderID: f.st.Position.ID, Status: "FILLED"}, nil
}

func (f *ForwardTester) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (f *ForwardTester) SetMarginMode(ctx context.Context, symbol, mode string) error {
	return nil
}

func (f *ForwardTester) FlashClosePosition(ctx context.Context, positionID string) error {
	f.mu.Lock()
	pos := f.st.Position
	f.mu.Unlock()
	if pos == nil || pos.ID != positionID {
		return fmt.Errorf("no open position %s", positionID)
	}

	price, err := f.CurrentPrice(context.WithoutCancel(ctx), pos.Symbol)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Position == nil || f.st.Position.ID != positionID {
		return fmt.Errorf("no open position %s", positionID)
	}

	var pnl float64
	side, _ := types.NormalizeSide(pos.Side)
	if side == types.SideShort {
		pnl = (pos.AvgOpen - price) * pos.Qty
	} else {
		pnl = (price - pos.AvgOpen) * pos.Qty
	}
	exitFee := price * pos.Qty * f.params.Fees
	notional := pos.AvgOpen * pos.Qty

	f.st.Capital += notional + pnl - exitFee
	f.st.Trades = append(f.st.Trades, Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Qty:        pos.Qty,
		EntryPrice: pos.AvgOpen,
		ExitPrice:  price,
		PnL:        pnl,
		Fees:       f.entryFee + exitFee,
		ClosedAt:   time.Now().UTC(),
	})
	f.st.Position = nil
	f.entryFee = 0
	if err := f.save(); err != nil {
		return err
	}

	logger.Trade(ctx, pos.Symbol, pos.Side, pos.Qty, price, pos.ID,
		"pnl", pnl, "capital", f.st.Capital)
	return nil
}
