package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-futures-trader/internal/store"
	"llm-futures-trader/internal/types"
)

// uptrend yields a Bullish guardrail at high confidence, downtrend Bearish.
func trendCandles(up bool) []types.Candle {
	candles := make([]types.Candle, 200)
	for i := range candles {
		var close float64
		if up {
			close = 100 + float64(i)
		} else {
			close = 300 - float64(i)
		}
		candles[i] = types.Candle{
			OpenTime:  int64(i) * 900_000,
			CloseTime: int64(i)*900_000 + 899_999,
			Open:      close - 0.5,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Vol:       10,
		}
	}
	return candles
}

type fakeFeed struct {
	candles []types.Candle
	err     error
}

func (f *fakeFeed) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return f.candles, f.err
}

type fakeAdvisor struct {
	signal string
	err    error
}

func (f *fakeAdvisor) Advise(ctx context.Context, prompt, topic string) (types.Outlook, error) {
	if f.err != nil {
		return types.Outlook{}, f.err
	}
	return types.Outlook{Signal: f.signal, Interpretation: "test"}, nil
}

type fakeExchange struct {
	balance float64
	price   float64
	pos     *types.Position

	placeErr     error
	closeErr     error
	closeErrOnce bool
	levErr       error
	marginErr    error

	placed      []types.OrderReq
	flashCloses int
	stops       []float64
	stopErr     error
}

func (f *fakeExchange) AccountBalance(ctx context.Context, asset string) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakeExchange) PendingPosition(ctx context.Context, symbol string) (*types.Position, error) {
	if f.pos == nil {
		return nil, nil
	}
	cp := *f.pos
	return &cp, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if f.placeErr != nil {
		return types.OrderResp{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	f.pos = &types.Position{
		ID:      "pos-1",
		Symbol:  req.Symbol,
		Side:    req.Side,
		Qty:     req.Qty,
		AvgOpen: f.price,
	}
	return types.OrderResp{OrderID: "ord-1", Status: "SUBMITTED"}, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return f.levErr
}

func (f *fakeExchange) SetMarginMode(ctx context.Context, symbol, mode string) error {
	return f.marginErr
}

func (f *fakeExchange) FlashClosePosition(ctx context.Context, positionID string) error {
	f.flashCloses++
	if f.closeErr != nil {
		err := f.closeErr
		if f.closeErrOnce {
			f.closeErr = nil
		}
		return err
	}
	f.pos = nil
	return nil
}

func (f *fakeExchange) PlacePositionTPSL(ctx context.Context, symbol, positionID string, slPrice float64) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops = append(f.stops, slPrice)
	return nil
}

func testConfig(t *testing.T, withStop bool) *store.Config {
	t.Helper()
	yaml := `run_name: test
symbol: BTCUSDT
interval: 15m
candle_limit: 200
leverage: 2
margin_mode: ISOLATION
position_size: "10%"
`
	if withStop {
		yaml += "stop_loss_percent: 10\n"
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := store.LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func newEngine(cfg *store.Config, ex *fakeExchange, adv *fakeAdvisor, up bool, withStops bool) *Engine {
	p := Params{
		Config:   cfg,
		Feed:     &fakeFeed{candles: trendCandles(up)},
		Exchange: ex,
		Advisor:  adv,
	}
	if withStops {
		p.StopEx = ex
	}
	return New(p)
}

func TestRunCycleOpensLongWhenFlat(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := newEngine(testConfig(t, true), ex, &fakeAdvisor{signal: "Bullish"}, true, true)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.OpenLong, res.Action)
	assert.Equal(t, types.Completed, res.Status)
	assert.Equal(t, types.Bullish, res.Signal)
	require.Len(t, ex.placed, 1)
	assert.Equal(t, "BUY", ex.placed[0].Side)
	assert.Equal(t, "OPEN", ex.placed[0].TradeSide)
	// quiet tape scales 10% up to 11%: 1000 * 0.11 / 50
	assert.InDelta(t, 2.2, ex.placed[0].Qty, 1e-9)

	// stop at entry * 0.9
	require.Len(t, ex.stops, 1)
	assert.InDelta(t, 45.0, ex.stops[0], 1e-9)
}

func TestRunCycleAdvisorFailureFallsBackToGuardrail(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{err: errors.New("llm down")}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CompletedWithFallback, res.Status)
	assert.Equal(t, types.Bullish, res.Signal)
	assert.Equal(t, types.OpenLong, res.Action)
	require.Len(t, ex.placed, 1)
}

func TestRunCycleFlipToShort(t *testing.T) {
	ex := &fakeExchange{
		balance: 1000,
		price:   100,
		pos:     &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "BUY", Qty: 1, AvgOpen: 120},
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bearish"}, false, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FlipToShort, res.Action)
	assert.Equal(t, types.Completed, res.Status)
	assert.Equal(t, 1, ex.flashCloses)
	require.Len(t, ex.placed, 1)
	assert.Equal(t, "SELL", ex.placed[0].Side)
}

func TestRunCycleConflictSuppressionClosesPosition(t *testing.T) {
	// Guardrail is Bullish at 0.95, advisor says Bearish: suppressed to
	// Neutral, which flattens the open long.
	ex := &fakeExchange{
		balance: 1000,
		price:   100,
		pos:     &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "BUY", Qty: 1, AvgOpen: 90},
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bearish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Neutral, res.Signal)
	assert.Equal(t, types.Close, res.Action)
	assert.Equal(t, 1, ex.flashCloses)
	assert.Empty(t, ex.placed)
}

func TestRunCycleHoldPlacesNothing(t *testing.T) {
	ex := &fakeExchange{
		balance: 1000,
		price:   100,
		pos:     &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "LONG", Qty: 1, AvgOpen: 90},
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Hold, res.Action)
	assert.Equal(t, 0, ex.flashCloses)
	assert.Empty(t, ex.placed)
}

func TestFailsafeWhenOpenFailsWhileFlat(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50, placeErr: errors.New("venue rejected")}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	// Nothing was opened, so the failsafe finds no position to flatten.
	assert.Equal(t, types.FailedFlattened, res.Status)
	assert.Equal(t, 0, ex.flashCloses)
	assert.NotEqual(t, types.EmergencyClose, res.Action)
	assert.Contains(t, res.Reason, "venue rejected")
}

func TestFailsafeFlattensOpenPosition(t *testing.T) {
	// The close fails once (triggering the failsafe) then succeeds, so the
	// emergency path flattens on its retry.
	ex := &fakeExchange{
		balance:      1000,
		price:        100,
		pos:          &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "BUY", Qty: 1, AvgOpen: 90},
		closeErr:     errors.New("close rejected"),
		closeErrOnce: true,
	}
	// Conflict suppression yields Neutral, which tries to close the long.
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bearish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FailedFlattened, res.Status)
	assert.Equal(t, types.EmergencyClose, res.Action)
	assert.Equal(t, 2, ex.flashCloses)
	assert.Nil(t, ex.pos)
}

func TestFailsafeReportsUnflattened(t *testing.T) {
	ex := &fakeExchange{
		balance:  1000,
		price:    100,
		pos:      &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "BUY", Qty: 1, AvgOpen: 90},
		closeErr: errors.New("venue down"),
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bearish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FailedUnflattened, res.Status)
	assert.NotNil(t, ex.pos)
}

func TestUnrecognizedSideTriggersFailsafe(t *testing.T) {
	ex := &fakeExchange{
		balance: 1000,
		price:   100,
		pos:     &types.Position{ID: "odd", Symbol: "BTCUSDT", Side: "HEDGE", Qty: 1, AvgOpen: 90},
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FailedFlattened, res.Status)
	assert.Equal(t, types.EmergencyClose, res.Action)
	assert.Equal(t, 1, ex.flashCloses)
	assert.Nil(t, ex.pos)
}

func TestStopAttachFailureDoesNotUnwind(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50, stopErr: errors.New("tpsl unsupported")}
	eng := newEngine(testConfig(t, true), ex, &fakeAdvisor{signal: "Bullish"}, true, true)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Completed, res.Status)
	require.Len(t, ex.placed, 1)
	assert.NotNil(t, ex.pos)
	assert.Empty(t, ex.stops)
}

func TestStopSkippedWithoutCapability(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := newEngine(testConfig(t, true), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Completed, res.Status)
	assert.Empty(t, ex.stops)
}

func TestFeedFailureContinuesOnPrimarySignal(t *testing.T) {
	// No guardrail means the advisor's opinion passes through fusion
	// unchecked, in a degraded cycle with unscaled sizing.
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := New(Params{
		Config:   testConfig(t, false),
		Feed:     &fakeFeed{err: errors.New("feed down")},
		Exchange: ex,
		Advisor:  &fakeAdvisor{signal: "Bullish"},
	})

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CompletedWithFallback, res.Status)
	assert.Equal(t, types.Bullish, res.Signal)
	assert.Equal(t, types.OpenLong, res.Action)
	require.Len(t, ex.placed, 1)
	// no volatility rescale without a snapshot: 1000 * 0.10 / 50
	assert.InDelta(t, 2.0, ex.placed[0].Qty, 1e-9)
}

func TestSnapshotFailureContinuesOnPrimarySignal(t *testing.T) {
	// An empty candle series fails snapshot construction; the cycle
	// degrades the same way a fetch failure does.
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := New(Params{
		Config:   testConfig(t, false),
		Feed:     &fakeFeed{candles: nil},
		Exchange: ex,
		Advisor:  &fakeAdvisor{signal: "Bearish"},
	})

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CompletedWithFallback, res.Status)
	assert.Equal(t, types.Bearish, res.Signal)
	assert.Equal(t, types.OpenShort, res.Action)
	require.Len(t, ex.placed, 1)
	assert.Equal(t, "SELL", ex.placed[0].Side)
}

func TestFeedAndAdvisorFailureHoldsStill(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50}
	eng := New(Params{
		Config:   testConfig(t, false),
		Feed:     &fakeFeed{err: errors.New("feed down")},
		Exchange: ex,
		Advisor:  &fakeAdvisor{err: errors.New("llm down")},
	})

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CompletedWithFallback, res.Status)
	assert.Equal(t, types.Neutral, res.Signal)
	assert.Equal(t, types.NoOp, res.Action)
	assert.Empty(t, ex.placed)
	assert.Equal(t, 0, ex.flashCloses)
}

func TestLeverageFailureTriggersFailsafe(t *testing.T) {
	ex := &fakeExchange{balance: 1000, price: 50, levErr: errors.New("leverage rejected")}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FailedFlattened, res.Status)
	assert.Empty(t, ex.placed)
	assert.Equal(t, 0, ex.flashCloses)
	assert.Contains(t, res.Reason, "leverage rejected")
}

func TestMarginModeFailureFlattensOpenPosition(t *testing.T) {
	ex := &fakeExchange{
		balance:   1000,
		price:     100,
		pos:       &types.Position{ID: "old", Symbol: "BTCUSDT", Side: "BUY", Qty: 1, AvgOpen: 90},
		marginErr: errors.New("margin mode rejected"),
	}
	eng := newEngine(testConfig(t, false), ex, &fakeAdvisor{signal: "Bullish"}, true, false)

	res, err := eng.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.FailedFlattened, res.Status)
	assert.Equal(t, types.EmergencyClose, res.Action)
	assert.Equal(t, 1, ex.flashCloses)
	assert.Nil(t, ex.pos)
	assert.Empty(t, ex.placed)
}
