package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"llm-futures-trader/internal/fuse"
	"llm-futures-trader/internal/market"
	"llm-futures-trader/internal/sizing"
)

const defaultPromptTemplate = `You are a cryptocurrency market analyst AI.

You are helping a systematic trader that executes {crypto} futures trades once per evaluation cycle.

Use both the structured market context below (which contains live indicators) and your wider knowledge of macro/crypto flows to recommend an outlook for the next 24 hours (Bullish, Bearish, Neutral).

Explain only the highest-signal factors in 2 short paragraphs (~120 words total). Avoid repeating the provided stats verbatim - interpret them.

Market context:
{market_context}

Always return your answer as compact JSON with "signal" and "interpretation" fields.`

type Config struct {
	RunName     string `yaml:"run_name"`
	Asset       string `yaml:"asset"`
	Symbol      string `yaml:"symbol"`
	QuoteAsset  string `yaml:"quote_asset"`
	Interval    string `yaml:"interval"`
	CandleLimit int    `yaml:"candle_limit"`
	Leverage    int    `yaml:"leverage"`
	MarginMode  string `yaml:"margin_mode"`
	PollSeconds int    `yaml:"poll_seconds"` // 0 runs a single cycle and exits

	// PositionSize is "N%" of capital or a fixed notional number.
	PositionSize any `yaml:"position_size"`
	// StopLossPercent is nil when stop-loss placement is disabled.
	StopLossPercent *float64 `yaml:"stop_loss_percent"`

	Fusion struct {
		NeutralTiebreak  float64 `yaml:"neutral_tiebreak"`
		ConflictSuppress float64 `yaml:"conflict_suppress"`
	} `yaml:"fusion"`

	LLM struct {
		Provider       string  `yaml:"provider"` // OPENAI, CLAUDE, or empty for noop
		Model          string  `yaml:"model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		PromptTemplate string  `yaml:"prompt_template"`
	} `yaml:"llm"`

	ForwardTesting struct {
		Enabled        bool    `yaml:"enabled"`
		InitialCapital float64 `yaml:"initial_capital"`
		Fees           float64 `yaml:"fees"` // taker fee fraction, e.g. 0.0006
	} `yaml:"forward_testing"`

	News struct {
		Enabled      bool `yaml:"enabled"`
		MaxHeadlines int  `yaml:"max_headlines"`
	} `yaml:"news"`

	spec sizing.Spec
}

// Spec returns the sizing spec parsed from position_size at load time.
func (c *Config) Spec() sizing.Spec { return c.spec }

// FusionThresholds returns the guardrail confidence cutoffs.
func (c *Config) FusionThresholds() fuse.Thresholds {
	return fuse.Thresholds{
		NeutralTiebreak:  c.Fusion.NeutralTiebreak,
		ConflictSuppress: c.Fusion.ConflictSuppress,
	}
}

// Prompt returns the advisor prompt template, configured or default.
func (c *Config) Prompt() string {
	if strings.TrimSpace(c.LLM.PromptTemplate) != "" {
		return c.LLM.PromptTemplate
	}
	return defaultPromptTemplate
}

func (c *Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	if _, err := market.IntervalMinutes(c.Interval); err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if c.CandleLimit < 1 {
		return fmt.Errorf("candle_limit must be positive, got %d", c.CandleLimit)
	}
	if c.Leverage < 1 {
		return fmt.Errorf("leverage must be at least 1, got %d", c.Leverage)
	}
	if c.MarginMode != "ISOLATION" && c.MarginMode != "CROSS" {
		return fmt.Errorf("margin_mode must be 'ISOLATION' or 'CROSS', got %q", c.MarginMode)
	}
	if c.StopLossPercent != nil && *c.StopLossPercent <= 0 {
		return fmt.Errorf("stop_loss_percent must be positive when set, got %v", *c.StopLossPercent)
	}
	if c.Fusion.NeutralTiebreak < 0 || c.Fusion.NeutralTiebreak > 1 {
		return fmt.Errorf("fusion.neutral_tiebreak must be within 0-1, got %v", c.Fusion.NeutralTiebreak)
	}
	if c.Fusion.ConflictSuppress < 0 || c.Fusion.ConflictSuppress > 1 {
		return fmt.Errorf("fusion.conflict_suppress must be within 0-1, got %v", c.Fusion.ConflictSuppress)
	}
	if c.ForwardTesting.Enabled && c.ForwardTesting.InitialCapital <= 0 {
		return fmt.Errorf("forward_testing.initial_capital must be positive, got %v", c.ForwardTesting.InitialCapital)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	spec, err := sizing.ParseSpec(c.PositionSize)
	if err != nil {
		return nil, fmt.Errorf("position_size: %w", err)
	}
	c.spec = spec

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.RunName == "" {
		c.RunName = "run"
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.Interval == "" {
		c.Interval = "15m"
	}
	if c.CandleLimit == 0 {
		c.CandleLimit = 200
	}
	if c.Leverage == 0 {
		c.Leverage = 1
	}
	if c.MarginMode == "" {
		c.MarginMode = "ISOLATION"
	}
	if c.Fusion.NeutralTiebreak == 0 {
		c.Fusion.NeutralTiebreak = fuse.DefaultThresholds().NeutralTiebreak
	}
	if c.Fusion.ConflictSuppress == 0 {
		c.Fusion.ConflictSuppress = fuse.DefaultThresholds().ConflictSuppress
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 5
	}
	if c.Asset == "" {
		c.Asset = strings.TrimSuffix(c.Symbol, c.QuoteAsset)
	}
}
