package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/scanner"
)

// Search-result selectors. The listing markup uses generated class names
// that are stable only in their prefix, hence the substring matches.
const (
	resultItemSelector  = "li[class*='sc-1u4589e-0']"
	resultTitleSelector = "div[class*='sc-3ls169-0']"
	searchCategories    = "domestic,world,business,it,science,life,local"
)

var listingDateExpr = regexp.MustCompile(`^\d{1,2}/\d{1,2}\([月火水木金土日]\)`)

// YahooScanner discovers article candidates from the news search page for
// one keyword at a time.
type YahooScanner struct {
	client        *http.Client
	searchURL     string
	articlePrefix string
	logger        *slog.Logger
}

// NewYahooScanner wires an HTTP client; nil gets a 20s-timeout default.
func NewYahooScanner(client *http.Client, searchURL, articlePrefix string, logger *slog.Logger) *YahooScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &YahooScanner{
		client:        client,
		searchURL:     searchURL,
		articlePrefix: articlePrefix,
		logger:        logger,
	}
}

// Name identifies the strategy inside the registry.
func (y *YahooScanner) Name() string {
	return "yahoo"
}

// Search fetches the result listing for the keyword and extracts candidates.
// Only URLs under the article path prefix are accepted.
func (y *YahooScanner) Search(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	doc, err := y.fetchDocument(ctx, y.buildSearchURL(req.Keyword))
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", req.Keyword, err)
	}

	var candidates []domain.Candidate
	doc.Find(resultItemSelector).Each(func(i int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(resultTitleSelector).First().Text())
		href, _ := item.Find("a[href]").First().Attr("href")
		if title == "" || !strings.HasPrefix(href, y.articlePrefix) {
			return
		}

		candidates = append(candidates, domain.Candidate{
			URL:         href,
			Title:       title,
			RawPostedAt: strings.TrimSpace(item.Find("time").First().Text()),
			Source:      pickSource(item),
		})
	})

	y.debug("search done", "keyword", req.Keyword, "candidates", len(candidates))
	return candidates, nil
}

func (y *YahooScanner) buildSearchURL(keyword string) string {
	q := url.Values{}
	q.Set("p", keyword)
	q.Set("ei", "utf-8")
	q.Set("categories", searchCategories)
	return y.searchURL + "?" + q.Encode()
}

func (y *YahooScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// pickSource takes the longest span text in the item that is neither the
// listing timestamp nor an icon wrapper. The publisher name is the longest
// plain text the metadata block carries.
func pickSource(item *goquery.Selection) string {
	var source string
	item.Find("span").Each(func(i int, span *goquery.Selection) {
		if span.Find("svg").Length() > 0 {
			return
		}
		text := strings.TrimSpace(span.Text())
		if text == "" || listingDateExpr.MatchString(text) {
			return
		}
		if len(text) > len(source) {
			source = text
		}
	})
	return source
}

func (y *YahooScanner) debug(msg string, args ...any) {
	if y.logger != nil {
		y.logger.Debug(msg, args...)
	}
}
