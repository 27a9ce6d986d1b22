package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"llm-futures-trader/internal/engine"
	"llm-futures-trader/internal/engine/engineobs"
	"llm-futures-trader/internal/exchange/bitunix"
	"llm-futures-trader/internal/exchange/paper"
	"llm-futures-trader/internal/feed"
	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/journal"
	"llm-futures-trader/internal/llm/claude"
	"llm-futures-trader/internal/llm/llmobs"
	"llm-futures-trader/internal/llm/noop"
	"llm-futures-trader/internal/llm/openai"
	"llm-futures-trader/internal/news"
	"llm-futures-trader/internal/store"
)

func bootstrap(cfg *store.Config) (interfaces.Engine, *journal.Journal, error) {
	jrnl, err := journal.New(cfg.RunName)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}

	candles := feed.NewBinance()

	ex, stopEx, err := initializeExchange(cfg, candles)
	if err != nil {
		return nil, nil, err
	}

	var headlines interfaces.HeadlineSource
	if cfg.News.Enabled {
		headlines = news.NewFetcher()
	}

	eng := engine.New(engine.Params{
		Config:   cfg,
		Feed:     candles,
		Exchange: ex,
		StopEx:   stopEx,
		Advisor:  llmobs.Wrap(initializeAdvisor(cfg)),
		News:     headlines,
		Journal:  jrnl,
	})
	return engineobs.Wrap(eng), jrnl, nil
}

// initializeExchange returns the live or forward-testing exchange. The second
// return value is non-nil only when the venue can attach position stops.
func initializeExchange(cfg *store.Config, candles interfaces.CandleSource) (interfaces.Exchange, interfaces.StopLossExchange, error) {
	if cfg.ForwardTesting.Enabled {
		ft, err := paper.New(paper.Params{
			RunName:        cfg.RunName,
			InitialCapital: cfg.ForwardTesting.InitialCapital,
			Fees:           cfg.ForwardTesting.Fees,
			Interval:       cfg.Interval,
			Feed:           candles,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Println(">> forward testing mode, no live orders")
		return ft, nil, nil
	}

	apiKey := os.Getenv("BITUNIX_API_KEY")
	apiSecret := os.Getenv("BITUNIX_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil, nil, errors.New("BITUNIX_API_KEY and BITUNIX_API_SECRET are required for live trading")
	}

	client := bitunix.New(bitunix.Params{APIKey: apiKey, APISecret: apiSecret})
	return client, client, nil
}

func initializeAdvisor(cfg *store.Config) interfaces.Advisor {
	switch cfg.LLM.Provider {
	case "OPENAI":
		return openai.New(cfg)
	case "CLAUDE":
		return claude.New(cfg)
	default:
		log.Println(">> no LLM provider configured, guardrail signal decides alone")
		return noop.New()
	}
}
