package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"llm-futures-trader/internal/llm"
	"llm-futures-trader/internal/store"
	"llm-futures-trader/internal/trace"
	"llm-futures-trader/internal/types"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

type Advisor struct {
	cfg      *store.Config
	endpoint string
}

func New(cfg *store.Config) *Advisor {
	endpoint := defaultEndpoint
	if ep := os.Getenv("OPENAI_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Advisor{cfg: cfg, endpoint: endpoint}
}

func (a *Advisor) Advise(ctx context.Context, prompt, topic string) (types.Outlook, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return types.Outlook{}, errors.New("OPENAI_API_KEY missing")
	}

	body := map[string]any{
		"model": a.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": a.cfg.LLM.Temperature,
		"max_tokens":  a.cfg.LLM.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(bb))
	if err != nil {
		return types.Outlook{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Outlook{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return types.Outlook{}, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return types.Outlook{}, err
	}
	if len(r.Choices) == 0 {
		return types.Outlook{}, errors.New("no choices returned")
	}

	content := strings.TrimSpace(r.Choices[0].Message.Content)
	out := llm.ParseOutlook(content)
	out.Raw = []byte(content)
	return out, nil
}
