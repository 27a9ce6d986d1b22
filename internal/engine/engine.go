// Package engine runs the evaluation cycle: build a market snapshot, derive
// the deterministic guardrail signal, ask the advisor for its outlook, fuse
// the two, and reconcile the venue position with the final signal. Any
// failure while touching the exchange triggers an emergency flatten.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"llm-futures-trader/internal/fuse"
	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/journal"
	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/market"
	"llm-futures-trader/internal/risk"
	"llm-futures-trader/internal/sizing"
	"llm-futures-trader/internal/store"
	"llm-futures-trader/internal/types"
)

type Engine struct {
	cfg     *store.Config
	feed    interfaces.CandleSource
	ex      interfaces.Exchange
	stopEx  interfaces.StopLossExchange // nil when the venue cannot attach stops
	advisor interfaces.Advisor
	news    interfaces.HeadlineSource // nil when headlines are disabled
	jrnl    *journal.Journal
	events  EventSink
}

type Params struct {
	Config   *store.Config
	Feed     interfaces.CandleSource
	Exchange interfaces.Exchange
	// StopEx is set when the exchange supports position-level stops.
	StopEx  interfaces.StopLossExchange
	Advisor interfaces.Advisor
	News    interfaces.HeadlineSource
	Journal *journal.Journal
	Events  EventSink
}

func New(p Params) *Engine {
	events := p.Events
	if events == nil {
		events = journalSink{jrnl: p.Journal}
	}
	return &Engine{
		cfg:     p.Config,
		feed:    p.Feed,
		ex:      p.Exchange,
		stopEx:  p.StopEx,
		advisor: p.Advisor,
		news:    p.News,
		jrnl:    p.Journal,
		events:  events,
	}
}

var _ interfaces.Engine = (*Engine)(nil)

// RunCycle executes one full evaluation cycle. It always returns a
// CycleResult: indicator and advisor failures degrade the cycle rather than
// abort it, and execution failures end in a failsafe status.
func (e *Engine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	symbol := e.cfg.Symbol

	guardrail, snap := e.guardrailSignal(ctx)
	degraded := guardrail == nil

	spec := e.cfg.Spec()
	if guardrail != nil {
		// Volatile markets shrink the position, quiet ones grow it slightly.
		spec = sizing.Rescale(spec, sizing.VolatilityScale(snap.ATRPct))
	}

	primary, advisorDown := e.primarySignal(ctx, snap, guardrail)
	degraded = degraded || advisorDown

	final, rule := fuse.Combine(primary, guardrail, e.cfg.FusionThresholds())
	logger.Info(ctx, "Signals fused",
		"symbol", symbol,
		"primary", primary,
		"final", final,
		"rule", rule.String(),
	)

	res, err := e.execute(ctx, final, spec)
	if err != nil {
		res = e.failsafe(ctx, err)
	}
	res.Symbol = symbol
	res.Signal = final
	res.Time = time.Now().Unix()
	if res.Status == "" {
		res.Status = types.Completed
		if degraded {
			res.Status = types.CompletedWithFallback
		}
	}
	if res.Reason == "" {
		if guardrail != nil {
			res.Reason = fmt.Sprintf("%s (%s)", guardrail.Rationale, rule)
		} else {
			res.Reason = rule.String()
		}
	}

	e.jrnl.Cycle(res)
	return res, nil
}

// guardrailSignal fetches candles and derives the deterministic signal. A
// failed fetch or snapshot is not fatal: the cycle continues without a
// guardrail and the primary signal passes through fusion unchecked.
func (e *Engine) guardrailSignal(ctx context.Context) (*types.TechnicalSignal, types.MarketSnapshot) {
	var snap types.MarketSnapshot
	candles, err := e.feed.RecentCandles(ctx, e.cfg.Symbol, e.cfg.Interval, e.cfg.CandleLimit)
	if err == nil {
		snap, err = market.BuildSnapshot(e.cfg.Symbol, e.cfg.Interval, candles)
	}
	if err != nil {
		logger.Warn(ctx, "Indicator pipeline failed, continuing without guardrail",
			"symbol", e.cfg.Symbol, "error", err)
		return nil, types.MarketSnapshot{}
	}

	guardrail := market.DeriveSignal(snap)
	e.events.Event(ctx, "guardrail signal derived",
		"symbol", e.cfg.Symbol,
		"signal", guardrail.Signal,
		"confidence", guardrail.Confidence,
		"rationale", guardrail.Rationale,
	)
	return &guardrail, snap
}

// primarySignal queries the advisor and normalizes its answer. Advisor
// failure is not fatal: the primary defaults to Neutral so the guardrail
// decides, and the cycle is marked as degraded.
func (e *Engine) primarySignal(ctx context.Context, snap types.MarketSnapshot, guardrail *types.TechnicalSignal) (types.Direction, bool) {
	prompt := e.buildPrompt(ctx, snap, guardrail)

	outlook, err := e.advisor.Advise(ctx, prompt, e.cfg.Asset)
	if err != nil {
		logger.ErrorWithErr(ctx, "Advisor failed, defaulting primary to Neutral", err, "symbol", e.cfg.Symbol)
		return types.Neutral, true
	}
	if err := e.jrnl.SaveResponse(outlook); err != nil {
		logger.Warn(ctx, "Failed to persist advisor response", "error", err)
	}

	primary, ok := fuse.Normalize(outlook.Signal)
	if !ok {
		logger.Warn(ctx, "Unrecognized advisor signal, treating as Neutral", "raw", outlook.Signal)
	}
	return primary, false
}

func (e *Engine) buildPrompt(ctx context.Context, snap types.MarketSnapshot, guardrail *types.TechnicalSignal) string {
	marketCtx := "Live market data is unavailable this cycle and no deterministic guardrail was computed. Rely on your broader knowledge of current conditions."
	if guardrail != nil {
		marketCtx = market.FormatContext(snap, *guardrail)
	}

	if e.news != nil && e.cfg.News.Enabled {
		headlines, err := e.news.Headlines(ctx, e.cfg.Asset, e.cfg.News.MaxHeadlines)
		if err != nil {
			logger.Warn(ctx, "Headline fetch failed, continuing without news", "error", err)
		} else if len(headlines) > 0 {
			marketCtx += "\nRecent headlines:\n- " + strings.Join(headlines, "\n- ")
		}
	}

	prompt := strings.ReplaceAll(e.cfg.Prompt(), "{crypto}", e.cfg.Asset)
	return strings.ReplaceAll(prompt, "{market_context}", marketCtx)
}

// execute reconciles the venue position with the final signal. Every error
// returned from here is treated as an execution failure by the caller and
// routed to the failsafe.
func (e *Engine) execute(ctx context.Context, final types.Direction, spec sizing.Spec) (*types.CycleResult, error) {
	symbol := e.cfg.Symbol

	pos, err := e.ex.PendingPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}

	side := types.SideNone
	if pos != nil {
		var ok bool
		side, ok = types.NormalizeSide(pos.Side)
		if !ok {
			return nil, fmt.Errorf("unrecognized position side %q", pos.Side)
		}
	}

	if err := e.ex.SetMarginMode(ctx, symbol, e.cfg.MarginMode); err != nil {
		return nil, fmt.Errorf("set margin mode: %w", err)
	}
	if err := e.ex.SetLeverage(ctx, symbol, e.cfg.Leverage); err != nil {
		return nil, fmt.Errorf("set leverage: %w", err)
	}

	action := ActionFor(side, final)
	logger.Decision(ctx, symbol, string(final), string(action), "position reconciliation",
		"current_side", string(side),
	)

	res := &types.CycleResult{Action: action}

	switch action {
	case types.Hold, types.NoOp:
		return res, nil

	case types.Close:
		if err := e.ex.FlashClosePosition(ctx, pos.ID); err != nil {
			return res, fmt.Errorf("close position: %w", err)
		}
		e.events.Event(ctx, "position closed", "symbol", symbol, "position_id", pos.ID)
		return res, nil

	case types.FlipToLong, types.FlipToShort:
		if err := e.ex.FlashClosePosition(ctx, pos.ID); err != nil {
			return res, fmt.Errorf("flip close: %w", err)
		}
		e.events.Event(ctx, "position closed for flip", "symbol", symbol, "position_id", pos.ID)
		target := types.SideLong
		if action == types.FlipToShort {
			target = types.SideShort
		}
		order, err := e.open(ctx, target, spec)
		if err != nil {
			// Close succeeded, open failed: flat is acceptable.
			return res, fmt.Errorf("flip open: %w", err)
		}
		res.Orders = append(res.Orders, order)
		return res, nil

	case types.OpenLong, types.OpenShort:
		target := types.SideLong
		if action == types.OpenShort {
			target = types.SideShort
		}
		order, err := e.open(ctx, target, spec)
		if err != nil {
			return res, fmt.Errorf("open position: %w", err)
		}
		res.Orders = append(res.Orders, order)
		return res, nil
	}

	return res, nil
}

// open sizes and submits a market order, then best-effort attaches a stop.
func (e *Engine) open(ctx context.Context, side types.PositionSide, spec sizing.Spec) (types.OrderResp, error) {
	symbol := e.cfg.Symbol

	capital, err := e.ex.AccountBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("query balance: %w", err)
	}
	price, err := e.ex.CurrentPrice(ctx, symbol)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("query price: %w", err)
	}

	qty, err := sizing.Quantity(spec, capital, price)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("size position: %w", err)
	}

	orderSide := "BUY"
	if side == types.SideShort {
		orderSide = "SELL"
	}
	resp, err := e.ex.PlaceOrder(ctx, types.OrderReq{
		Symbol:    symbol,
		Side:      orderSide,
		TradeSide: "OPEN",
		OrderType: "MARKET",
		Qty:       qty,
	})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place order: %w", err)
	}
	logger.Trade(ctx, symbol, orderSide, qty, price, resp.OrderID, "capital", capital, "size", spec.String())

	e.attachStop(ctx, side)
	return resp, nil
}

// attachStop places a position stop-loss when configured and supported.
// Failures here never unwind the opened position.
func (e *Engine) attachStop(ctx context.Context, side types.PositionSide) {
	if e.cfg.StopLossPercent == nil {
		return
	}
	if e.stopEx == nil {
		logger.Warn(ctx, "Stop-loss configured but venue cannot attach stops, skipping",
			"symbol", e.cfg.Symbol)
		return
	}

	pos, err := e.ex.PendingPosition(ctx, e.cfg.Symbol)
	if err != nil || pos == nil {
		logger.Warn(ctx, "Could not re-query position for stop attach", "error", err)
		return
	}

	stop := risk.StopPrice(pos.AvgOpen, side, *e.cfg.StopLossPercent)
	if err := e.stopEx.PlacePositionTPSL(ctx, e.cfg.Symbol, pos.ID, stop); err != nil {
		logger.Risk(ctx, e.cfg.Symbol, "STOP_ATTACH_FAILED", "stop_price", stop, "error", err)
		return
	}
	logger.Risk(ctx, e.cfg.Symbol, "STOP_ATTACHED", "stop_price", stop, "entry", pos.AvgOpen)
}

// failsafe runs after any execution failure. It re-queries the position and
// unconditionally flash-closes whatever is open, regardless of what the
// original action was.
func (e *Engine) failsafe(ctx context.Context, cause error) *types.CycleResult {
	symbol := e.cfg.Symbol
	logger.Risk(ctx, symbol, "EMERGENCY_FLATTEN", "cause", cause)

	res := &types.CycleResult{Reason: cause.Error()}

	pos, err := e.ex.PendingPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Emergency position query failed", err, "symbol", symbol)
		res.Status = types.FailedUnflattened
		return res
	}
	if pos == nil {
		res.Status = types.FailedFlattened
		return res
	}

	res.Action = types.EmergencyClose
	if err := e.ex.FlashClosePosition(ctx, pos.ID); err != nil {
		logger.ErrorWithErr(ctx, "Emergency close failed", err,
			"symbol", symbol, "position_id", pos.ID)
		res.Status = types.FailedUnflattened
		return res
	}

	e.events.Event(ctx, "emergency close executed", "symbol", symbol, "position_id", pos.ID)
	res.Status = types.FailedFlattened
	return res
}
