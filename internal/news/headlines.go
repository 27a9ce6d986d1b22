// Package news scrapes recent crypto headlines so they can be folded into
// the advisor prompt as extra context.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"llm-futures-trader/internal/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source is one scrapeable headline site.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // {topic} is replaced with the url-escaped topic
	Container  string // CSS selector for one headline node
	Title      string // selector inside the container, empty means container text
}

func defaultSources() []Source {
	return []Source{
		{
			Name:       "CoinDesk",
			BaseURL:    "https://www.coindesk.com",
			SearchPath: "/search?s={topic}",
			Container:  "div.article-card",
			Title:      "h2, h3, a.card-title",
		},
		{
			Name:       "GoogleNews",
			BaseURL:    "https://news.google.com",
			SearchPath: "/search?q={topic}%20crypto&hl=en-US&gl=US&ceid=US:en",
			Container:  "article",
			Title:      "h3, h4",
		},
	}
}

// Fetcher collects headlines from the configured sources, caching results
// so repeated cycles within the TTL do not re-scrape.
type Fetcher struct {
	sources []Source
	timeout time.Duration

	mu     sync.Mutex
	cached map[string]cacheEntry
	ttl    time.Duration
}

type cacheEntry struct {
	headlines []string
	at        time.Time
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		sources: defaultSources(),
		timeout: 20 * time.Second,
		cached:  make(map[string]cacheEntry),
		ttl:     30 * time.Minute,
	}
}

func (f *Fetcher) Headlines(ctx context.Context, topic string, max int) ([]string, error) {
	if max < 1 {
		max = 1
	}

	f.mu.Lock()
	if e, ok := f.cached[topic]; ok && time.Since(e.at) < f.ttl {
		f.mu.Unlock()
		return capped(e.headlines, max), nil
	}
	f.mu.Unlock()

	var all []string
	seen := make(map[string]bool)
	for _, src := range f.sources {
		hs, err := f.scrape(ctx, src, topic, max)
		if err != nil {
			logger.Warn(ctx, "Headline source failed", "source", src.Name, "error", err)
			continue
		}
		for _, h := range hs {
			key := strings.ToLower(h)
			if !seen[key] {
				seen[key] = true
				all = append(all, h)
			}
		}
		if len(all) >= max {
			break
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no headlines found for %s", topic)
	}

	f.mu.Lock()
	f.cached[topic] = cacheEntry{headlines: all, at: time.Now()}
	f.mu.Unlock()

	return capped(all, max), nil
}

func (f *Fetcher) scrape(ctx context.Context, src Source, topic string, max int) ([]string, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(src.BaseURL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	var headlines []string
	c.OnHTML(src.Container, func(e *colly.HTMLElement) {
		if len(headlines) >= max {
			return
		}
		title := headlineText(e.DOM, src.Title)
		if title == "" {
			return
		}
		headlines = append(headlines, title)
	})

	searchURL := src.BaseURL + strings.ReplaceAll(src.SearchPath, "{topic}", url.QueryEscape(topic))
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", searchURL, err)
	}
	c.Wait()

	return headlines, nil
}

// headlineText pulls the first non-empty title match out of a headline node.
func headlineText(sel *goquery.Selection, titleSel string) string {
	if titleSel == "" {
		return collapse(sel.Text())
	}
	var out string
	sel.Find(titleSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := collapse(s.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}

// collapse trims and squeezes internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capped(hs []string, max int) []string {
	if len(hs) > max {
		return hs[:max]
	}
	return hs
}

func hostOf(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
