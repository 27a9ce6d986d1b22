package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testFetcher(t *testing.T, html string) (*Fetcher, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher()
	f.sources = []Source{{
		Name:       "test",
		BaseURL:    srv.URL,
		SearchPath: "/search?q={topic}",
		Container:  "div.item",
		Title:      "h2",
	}}
	f.ttl = time.Hour
	return f, &hits
}

const page = `<html><body>
<div class="item"><h2>Bitcoin climbs past resistance</h2></div>
<div class="item"><h2>  Bitcoin   climbs past resistance </h2></div>
<div class="item"><h2>ETF inflows accelerate</h2></div>
<div class="item"><h2></h2></div>
</body></html>`

func TestHeadlinesDedupAndCollapse(t *testing.T) {
	f, _ := testFetcher(t, page)

	hs, err := f.Headlines(context.Background(), "BTC", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 {
		t.Fatalf("expected 2 unique headlines, got %d: %v", len(hs), hs)
	}
	if hs[0] != "Bitcoin climbs past resistance" {
		t.Fatalf("headline = %q", hs[0])
	}
}

func TestHeadlinesMaxCap(t *testing.T) {
	f, _ := testFetcher(t, page)

	hs, err := f.Headlines(context.Background(), "BTC", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 1 {
		t.Fatalf("expected 1 headline, got %d", len(hs))
	}
}

func TestHeadlinesCached(t *testing.T) {
	f, hits := testFetcher(t, page)
	ctx := context.Background()

	if _, err := f.Headlines(ctx, "BTC", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Headlines(ctx, "BTC", 5); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("expected 1 fetch, server saw %d", got)
	}
}

func TestHeadlinesEmptyPage(t *testing.T) {
	f, _ := testFetcher(t, "<html><body></body></html>")

	_, err := f.Headlines(context.Background(), "BTC", 5)
	if err == nil {
		t.Fatal("expected error for page with no headlines")
	}
}
