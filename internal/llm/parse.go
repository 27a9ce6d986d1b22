// Package llm holds shared helpers for the advisor implementations.
package llm

import (
	"encoding/json"
	"strings"

	"llm-futures-trader/internal/types"
)

// ParseOutlook extracts the JSON answer from model output. Models wrap the
// object in prose or markdown fences often enough that we search for the
// outermost braces instead of decoding the text directly.
func ParseOutlook(text string) types.Outlook {
	t := strings.TrimSpace(text)

	if out, ok := tryDecode(t); ok {
		return out
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		if out, ok := tryDecode(t[start : end+1]); ok {
			return out
		}
	}

	// Unparsable output reads as no opinion.
	return types.Outlook{Signal: "Neutral", Interpretation: "unable to parse model output"}
}

func tryDecode(s string) (types.Outlook, bool) {
	if !strings.HasPrefix(s, "{") {
		return types.Outlook{}, false
	}
	var out types.Outlook
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return types.Outlook{}, false
	}
	if strings.TrimSpace(out.Signal) == "" {
		out.Signal = "Neutral"
	}
	return out, true
}
