package types

import "strings"

// Candle is one OHLCV bar. Timestamps are unix milliseconds.
type Candle struct {
	OpenTime, CloseTime         int64
	Open, High, Low, Close, Vol float64
}

// Direction is a three-valued market outlook.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// PositionSide is the current exposure state for an instrument.
type PositionSide string

const (
	SideNone  PositionSide = "none"
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// TradeAction is the decision engine output consumed by the exchange client.
type TradeAction string

const (
	OpenLong       TradeAction = "OPEN_LONG"
	OpenShort      TradeAction = "OPEN_SHORT"
	FlipToLong     TradeAction = "FLIP_TO_LONG"
	FlipToShort    TradeAction = "FLIP_TO_SHORT"
	Hold           TradeAction = "HOLD"
	Close          TradeAction = "CLOSE"
	NoOp           TradeAction = "NOOP"
	EmergencyClose TradeAction = "EMERGENCY_CLOSE"
)

// MarketSnapshot is a fixed-shape summary of one candle series at one point
// in time. Every field is a finite number; indicators that lacked enough
// history carry their documented fallback instead.
type MarketSnapshot struct {
	Symbol        string
	Interval      string
	LatestClose   float64
	Change24h     float64
	Change4h      float64
	Momentum1h    float64
	RSI           float64
	SMAFast       float64
	SMASlow       float64
	ATRPct        float64
	Volume24h     float64
	Volatility24h float64
}

// TechnicalSignal is the deterministic guardrail derived from a snapshot.
type TechnicalSignal struct {
	Signal     Direction
	Confidence float64
	Rationale  string
}

// Position is an open venue position as reported by the exchange client.
// Side carries the raw venue label (BUY/SELL/LONG/...).
type Position struct {
	ID      string
	Symbol  string
	Side    string
	Qty     float64
	AvgOpen float64
}

type OrderReq struct {
	Symbol    string
	Side      string // BUY or SELL
	TradeSide string // OPEN or CLOSE
	OrderType string // MARKET
	Qty       float64
}

type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outlook is the opinion source's answer: a directional signal plus the
// free-text reasoning behind it. Raw holds the unparsed provider response
// for journaling.
type Outlook struct {
	Signal         string `json:"signal"`
	Interpretation string `json:"interpretation"`
	Raw            []byte `json:"-"`
}

// NormalizeSide maps a raw venue side label to a PositionSide by prefix.
// Venues disagree on labels (BUY vs LONG vs BID), so matching is prefix
// based and case insensitive. Unrecognized labels return (SideNone, false).
func NormalizeSide(raw string) (PositionSide, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "BUY"), strings.HasPrefix(s, "BID"), strings.HasPrefix(s, "LONG"):
		return SideLong, true
	case strings.HasPrefix(s, "SELL"), strings.HasPrefix(s, "ASK"), strings.HasPrefix(s, "SHORT"):
		return SideShort, true
	default:
		return SideNone, false
	}
}

// CycleStatus describes how an evaluation cycle ended.
type CycleStatus string

const (
	Completed             CycleStatus = "COMPLETED"
	CompletedWithFallback CycleStatus = "COMPLETED_WITH_FALLBACK"
	FailedFlattened       CycleStatus = "FAILED_FLATTENED"
	FailedUnflattened     CycleStatus = "FAILED_UNFLATTENED"
)

// CycleResult summarizes one evaluation cycle end to end.
type CycleResult struct {
	Symbol string      `json:"symbol"`
	Signal Direction   `json:"signal"`
	Action TradeAction `json:"action"`
	Status CycleStatus `json:"status"`
	Orders []OrderResp `json:"orders,omitempty"`
	Reason string      `json:"reason,omitempty"`
	Time   int64       `json:"time"`
}
