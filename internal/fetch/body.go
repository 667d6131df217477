package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/ports"
)

// ArticleExtractor isolates the selector knowledge for article pages. The
// fetchers only see extracted text.
type ArticleExtractor interface {
	// BodyText returns the page's article text, empty when nothing
	// extractable is present.
	BodyText(page []byte) string
	// CommentCount returns the total comment count advertised on the page,
	// or domain.UnknownCommentCount.
	CommentCount(page []byte) int
	// EmbeddedDate returns the raw publish timestamp embedded near the top
	// of the body text, or empty.
	EmbeddedDate(bodyText string) string
}

// BodyFetcher walks an article's body pages. Page 1 is the bare URL; pages
// 2..10 append a page query parameter. A fixed politeness delay separates
// successive page requests.
type BodyFetcher struct {
	getter    *Getter
	extractor ArticleExtractor
	pageDelay time.Duration
	sleep     func(time.Duration)
	logger    *slog.Logger
}

var _ ports.BodyFetcher = (*BodyFetcher)(nil)

// NewBodyFetcher builds the body pagination engine.
func NewBodyFetcher(getter *Getter, extractor ArticleExtractor, pageDelay time.Duration, logger *slog.Logger) *BodyFetcher {
	return &BodyFetcher{
		getter:    getter,
		extractor: extractor,
		pageDelay: pageDelay,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// FetchBody retrieves up to domain.MaxBodyPages pages of body text.
// Termination rules, in priority order:
//  1. page 1 fetch fails: slot 1 is the unavailable sentinel, stop;
//  2. a later page fails: earlier pages kept, stop;
//  3. a later page yields no text: page dropped, stop;
//  4. page 1 yields no text: slot 1 is the unavailable sentinel, stop.
//
// Unused slots are padded. Comment count and the embedded publish date come
// from page 1 only.
func (f *BodyFetcher) FetchBody(ctx context.Context, url string) ports.BodyResult {
	result := ports.BodyResult{CommentCount: domain.UnknownCommentCount}

	base := stripQuery(url)
	filled := 0
	for page := 1; page <= domain.MaxBodyPages; page++ {
		if page > 1 {
			f.sleep(f.pageDelay)
		}

		raw, err := f.getter.Get(ctx, pageURL(base, page))
		if err != nil {
			if page == 1 {
				f.warn("body page 1 unavailable", "url", base, "error", err)
				result.Pages[0] = domain.BodyUnavailable
				filled = 1
			} else {
				f.debug("body pagination ended", "url", base, "page", page)
			}
			break
		}

		text := f.extractor.BodyText(raw)

		if page == 1 {
			result.CommentCount = f.extractor.CommentCount(raw)
			result.EmbeddedDate = f.extractor.EmbeddedDate(text)
		}

		if text == "" {
			if page == 1 {
				result.Pages[0] = domain.BodyUnavailable
				filled = 1
			}
			break
		}

		result.Pages[page-1] = text
		filled = page
	}

	for i := filled; i < domain.MaxBodyPages; i++ {
		result.Pages[i] = domain.PadCell
	}
	return result
}

// FetchCommentCount retrieves page 1 only and extracts the advertised total.
// Used by light updates, which need nothing from the body.
func (f *BodyFetcher) FetchCommentCount(ctx context.Context, url string) int {
	raw, err := f.getter.Get(ctx, stripQuery(url))
	if err != nil {
		f.debug("comment count refresh failed", "url", url, "error", err)
		return domain.UnknownCommentCount
	}
	return f.extractor.CommentCount(raw)
}

func pageURL(base string, page int) string {
	if page == 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}

func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

func (f *BodyFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *BodyFetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
