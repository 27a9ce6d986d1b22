package llm

import "testing"

func TestParseOutlookPlainJSON(t *testing.T) {
	out := ParseOutlook(`{"signal": "Bullish", "interpretation": "momentum building"}`)
	if out.Signal != "Bullish" {
		t.Fatalf("signal = %q", out.Signal)
	}
	if out.Interpretation != "momentum building" {
		t.Fatalf("interpretation = %q", out.Interpretation)
	}
}

func TestParseOutlookFencedJSON(t *testing.T) {
	text := "Here is my answer:\n```json\n{\"signal\": \"Bearish\", \"interpretation\": \"weak\"}\n```\nhope that helps"
	out := ParseOutlook(text)
	if out.Signal != "Bearish" {
		t.Fatalf("signal = %q", out.Signal)
	}
}

func TestParseOutlookGarbage(t *testing.T) {
	out := ParseOutlook("the market will probably go up")
	if out.Signal != "Neutral" {
		t.Fatalf("unparsable text should read Neutral, got %q", out.Signal)
	}
}

func TestParseOutlookEmptySignal(t *testing.T) {
	out := ParseOutlook(`{"interpretation": "no idea"}`)
	if out.Signal != "Neutral" {
		t.Fatalf("missing signal should default Neutral, got %q", out.Signal)
	}
}
