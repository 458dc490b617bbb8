// Package bcv scrapes USD and EUR reference rates from the Banco Central de
// Venezuela home page. The page structure is brittle by nature, so extraction
// is best effort: a miss yields an empty result and logs, never a failure of
// the surrounding numeric logic.
package bcv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/alm-erp/alm-erp/internal/platform/fetch"
)

// DefaultURL is the public BCV home page.
const DefaultURL = "https://www.bcv.org.ve/"

// Result carries the scraped reference rates, quoted as VES per unit.
type Result struct {
	USD  float64
	EUR  float64
	Date time.Time
}

// Empty reports whether the scrape extracted no usable rate.
func (r Result) Empty() bool { return r.USD == 0 && r.EUR == 0 }

// Scraper fetches and parses the BCV page through the retrying client.
type Scraper struct {
	client *fetch.Client
	url    string
	logger *slog.Logger
}

// NewScraper constructs a scraper. An empty url falls back to DefaultURL.
func NewScraper(client *fetch.Client, url string, logger *slog.Logger) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{client: client, url: url, logger: logger}
}

// Fetch downloads the page and extracts rates. A reachable page that exposes
// neither USD nor EUR is an error for this run.
func (s *Scraper) Fetch(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("bcv: build request: %w", err)
	}
	// The page answers differently to non-browser agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.8,en;q=0.5")

	started := time.Now()
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("bcv: fetch: %w", err)
	}
	defer resp.Body.Close()
	s.logger.Info("bcv page fetched",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("attempts", resp.Attempts))

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("bcv: parse html: %w", err)
	}

	result := s.extract(doc)
	if result.Empty() {
		return Result{}, fmt.Errorf("bcv: no rates found on page")
	}
	return result, nil
}

func (s *Scraper) extract(doc *html.Node) Result {
	var result Result

	if span := findNode(doc, func(n *html.Node) bool {
		return n.Data == "span" && hasClass(n, "date-display-single") && attr(n, "content") != ""
	}); span != nil {
		raw := strings.SplitN(attr(span, "content"), "T", 2)[0]
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			result.Date = d
		} else {
			s.logger.Warn("bcv date parse failed", slog.String("raw", raw))
		}
	}

	result.USD = s.extractRate(doc, "dolar")
	result.EUR = s.extractRate(doc, "euro")
	return result
}

// extractRate walks #<id> > div.centrado > strong.
func (s *Scraper) extractRate(doc *html.Node, id string) float64 {
	container := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	})
	if container == nil {
		s.logger.Warn("bcv rate container missing", slog.String("id", id))
		return 0
	}
	cell := findNode(container, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "centrado")
	})
	if cell == nil {
		s.logger.Warn("bcv rate cell missing", slog.String("id", id))
		return 0
	}
	strong := findNode(cell, func(n *html.Node) bool { return n.Data == "strong" })
	if strong == nil {
		s.logger.Warn("bcv rate value missing", slog.String("id", id))
		return 0
	}
	value, ok := cleanRateValue(textContent(strong))
	if !ok {
		s.logger.Warn("bcv rate not numeric", slog.String("id", id), slog.String("text", textContent(strong)))
		return 0
	}
	return value
}

// cleanRateValue keeps digits, commas and dots, then treats the comma as the
// decimal separator (the page renders es-VE locale numbers).
func cleanRateValue(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textContent(child))
	}
	return strings.TrimSpace(b.String())
}
