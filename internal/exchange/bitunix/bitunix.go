// Package bitunix implements the live futures exchange client. All signed
// endpoints use Bitunix's double-SHA256 scheme over
// nonce+timestamp+apiKey+queryParams+body.
package bitunix

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/types"
)

const defaultBaseURL = "https://fapi.bitunix.com"

// Error is a non-zero business code returned by the Bitunix API.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bitunix error %d: %s", e.Code, e.Msg)
}

type Params struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional override, used in tests
}

type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
}

func New(p Params) *Client {
	base := p.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:    p.APIKey,
		apiSecret: p.APISecret,
		baseURL:   base,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) AccountBalance(ctx context.Context, asset string) (float64, error) {
	var data struct {
		Available string `json:"available"`
	}
	q := map[string]string{"marginCoin": asset}
	if err := c.call(ctx, http.MethodGet, "/api/v1/futures/account", q, nil, &data); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(data.Available, 64)
}

func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var data []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	}
	q := map[string]string{"symbols": symbol}
	if err := c.call(ctx, http.MethodGet, "/api/v1/futures/market/tickers", q, nil, &data); err != nil {
		return 0, err
	}
	for _, t := range data {
		if t.Symbol == symbol {
			return strconv.ParseFloat(t.LastPrice, 64)
		}
	}
	return 0, fmt.Errorf("no ticker returned for %s", symbol)
}

func (c *Client) PendingPosition(ctx context.Context, symbol string) (*types.Position, error) {
	var data []struct {
		PositionID   string `json:"positionId"`
		Symbol       string `json:"symbol"`
		Side         string `json:"side"`
		Qty          string `json:"qty"`
		AvgOpenPrice string `json:"avgOpenPrice"`
	}
	q := map[string]string{"symbol": symbol}
	if err := c.call(ctx, http.MethodGet, "/api/v1/futures/position/get_pending_positions", q, nil, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	p := data[0]
	qty, err := strconv.ParseFloat(p.Qty, 64)
	if err != nil {
		return nil, fmt.Errorf("parse position qty: %w", err)
	}
	avg, err := strconv.ParseFloat(p.AvgOpenPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parse position avg price: %w", err)
	}
	return &types.Position{
		ID:      p.PositionID,
		Symbol:  p.Symbol,
		Side:    p.Side,
		Qty:     qty,
		AvgOpen: avg,
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	body := map[string]any{
		"symbol":    req.Symbol,
		"qty":       strconv.FormatFloat(req.Qty, 'f', -1, 64),
		"side":      req.Side,
		"tradeSide": req.TradeSide,
		"orderType": req.OrderType,
	}
	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/futures/trade/place_order", nil, body, &data); err != nil {
		return types.OrderResp{}, err
	}
	return types.OrderResp{OrderID: data.OrderID, Status: "SUBMITTED"}, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]any{
		"symbol":     symbol,
		"marginCoin": "USDT",
		"leverage":   leverage,
	}
	return c.call(ctx, http.MethodPost, "/api/v1/futures/account/change_leverage", nil, body, nil)
}

func (c *Client) SetMarginMode(ctx context.Context, symbol, mode string) error {
	body := map[string]any{
		"symbol":     symbol,
		"marginCoin": "USDT",
		"marginMode": mode,
	}
	return c.call(ctx, http.MethodPost, "/api/v1/futures/account/change_margin_mode", nil, body, nil)
}

func (c *Client) FlashClosePosition(ctx context.Context, positionID string) error {
	body := map[string]any{"positionId": positionID}
	return c.call(ctx, http.MethodPost, "/api/v1/futures/trade/flash_close_position", nil, body, nil)
}

// PlacePositionTPSL attaches a position-level stop-loss. Satisfies the
// StopLossExchange capability.
func (c *Client) PlacePositionTPSL(ctx context.Context, symbol, positionID string, slPrice float64) error {
	body := map[string]any{
		"symbol":     symbol,
		"positionId": positionID,
		"slPrice":    strconv.FormatFloat(slPrice, 'f', -1, 64),
	}
	return c.call(ctx, http.MethodPost, "/api/v1/futures/tpsl/position/place_order", nil, body, nil)
}

// call performs one signed request and decodes the data envelope into out,
// timing the round trip.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body map[string]any, out any) error {
	op := logger.StartOperation(ctx, "bitunix"+strings.ReplaceAll(path, "/", "-"), "method", method)
	if err := c.do(op.GetContext(), method, path, query, body, out); err != nil {
		op.EndWithError(err)
		return err
	}
	op.End()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body map[string]any, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		pairs := make([]string, 0, len(query))
		for k, v := range query {
			pairs = append(pairs, k+"="+v)
		}
		sort.Strings(pairs)
		u += "?" + strings.Join(pairs, "&")
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}

	nonce := newNonce()
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("nonce", nonce)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("sign", sign(nonce, timestamp, c.apiKey, c.apiSecret, query, bodyBytes))
	req.Header.Set("language", "en-US")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bitunix http %d: %s", resp.StatusCode, string(b))
	}

	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode bitunix response: %w", err)
	}
	if envelope.Code != 0 {
		return &Error{Code: envelope.Code, Msg: envelope.Msg}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode bitunix data: %w", err)
		}
	}
	return nil
}

// sign computes SHA256(SHA256(nonce+timestamp+apiKey+queryParams+body)+secret)
// where queryParams is the sorted key-value concatenation.
func sign(nonce, timestamp, apiKey, secret string, query map[string]string, body []byte) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var qp strings.Builder
	for _, k := range keys {
		qp.WriteString(k)
		qp.WriteString(query[k])
	}

	digest := sha256Hex(nonce + timestamp + apiKey + qp.String() + string(body))
	return sha256Hex(digest + secret)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(b)
}
