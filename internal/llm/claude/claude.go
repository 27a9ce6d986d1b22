package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"llm-futures-trader/internal/llm"
	"llm-futures-trader/internal/store"
	"llm-futures-trader/internal/trace"
	"llm-futures-trader/internal/types"
)

// Advisor queries the Anthropic messages API for a market outlook.
type Advisor struct {
	cfg      *store.Config
	endpoint string
}

func New(cfg *store.Config) *Advisor {
	endpoint := "https://api.anthropic.com/v1/messages"
	// Proxy, bedrock and vertex deployments override via CLAUDE_API_ENDPOINT.
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Advisor{cfg: cfg, endpoint: endpoint}
}

func (a *Advisor) Advise(ctx context.Context, prompt, topic string) (types.Outlook, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		return types.Outlook{}, errors.New("CLAUDE_API_KEY missing")
	}

	reqBody := map[string]any{
		"model": a.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  a.cfg.LLM.MaxTokens,
		"temperature": a.cfg.LLM.Temperature,
	}
	bb, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(bb))
	if err != nil {
		return types.Outlook{}, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Outlook{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return types.Outlook{}, fmt.Errorf("claude http %d: %s", resp.StatusCode, string(body))
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Outlook{}, err
	}

	content := extractText(respBytes)
	out := llm.ParseOutlook(content)
	out.Raw = []byte(content)
	return out, nil
}

// extractText pulls the assistant text out of a messages API response,
// falling back through older response shapes.
func extractText(respBytes []byte) string {
	var m map[string]any
	if err := json.Unmarshal(respBytes, &m); err != nil {
		return string(respBytes)
	}

	// Current messages API: content is a list of typed blocks.
	if blocks, ok := m["content"].([]any); ok {
		var sb strings.Builder
		for _, b := range blocks {
			if block, ok := b.(map[string]any); ok {
				if s, ok := block["text"].(string); ok {
					sb.WriteString(s)
				}
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}

	// Legacy completion-style fields.
	for _, k := range []string{"completion", "output", "output_text", "result"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	return string(respBytes)
}
