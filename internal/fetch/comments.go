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

const (
	articlePathSegment = "/articles/"
	commentPathSegment = "/comments/"
)

// CommentExtractor isolates the selector knowledge for comment pages.
type CommentExtractor interface {
	// Comments returns the comment texts present on the page, in order.
	Comments(page []byte) []string
}

// CommentFetcher walks an article's comment pages, one ledger slot per page
// plus the overflow slot.
type CommentFetcher struct {
	getter    *Getter
	extractor CommentExtractor
	pageDelay time.Duration
	sleep     func(time.Duration)
	logger    *slog.Logger
}

var _ ports.CommentFetcher = (*CommentFetcher)(nil)

// NewCommentFetcher builds the comment pagination engine.
func NewCommentFetcher(getter *Getter, extractor CommentExtractor, pageDelay time.Duration, logger *slog.Logger) *CommentFetcher {
	return &CommentFetcher{
		getter:    getter,
		extractor: extractor,
		pageDelay: pageDelay,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// FetchComments retrieves up to domain.MaxCommentPages pages of comment
// text. Before fetching page n>1, the loop stops when knownTotal proves no
// further page exists (each page carries domain.CommentPageSize comments).
// A fetch failure or an empty page records its sentinel and stops. The last
// slot signals overflow when knownTotal exceeds the captured window.
func (f *CommentFetcher) FetchComments(ctx context.Context, url string, knownTotal int) [domain.MaxCommentPages + 1]string {
	var slots [domain.MaxCommentPages + 1]string

	base, ok := commentURL(url)
	if !ok {
		f.warn("cannot derive comment url", "url", url)
		for i := range slots {
			slots[i] = domain.CommentUnavailable
		}
		return slots
	}

	filled := 0
	for page := 1; page <= domain.MaxCommentPages; page++ {
		if page > 1 {
			if knownTotal <= (page-1)*domain.CommentPageSize {
				f.debug("known total exhausted, stopping",
					"url", base, "page", page, "known_total", knownTotal)
				break
			}
			f.sleep(f.pageDelay)
		}

		raw, err := f.getter.Get(ctx, fmt.Sprintf("%s?page=%d", base, page))
		if err != nil {
			f.debug("comment page unavailable", "url", base, "page", page, "error", err)
			slots[page-1] = domain.CommentUnavailable
			filled = page
			break
		}

		comments := f.extractor.Comments(raw)
		if len(comments) == 0 {
			slots[page-1] = domain.CommentsEmpty
			filled = page
			break
		}

		slots[page-1] = strings.Join(comments, "\n")
		filled = page
	}

	for i := filled; i < domain.MaxCommentPages; i++ {
		slots[i] = domain.PadCell
	}

	if knownTotal > domain.MaxCommentPages*domain.CommentPageSize {
		slots[domain.MaxCommentPages] = domain.OverflowMarker
	} else {
		slots[domain.MaxCommentPages] = domain.PadCell
	}
	return slots
}

// commentURL swaps the article path segment for the comment one, dropping
// any query string first.
func commentURL(articleURL string) (string, bool) {
	base := stripQuery(articleURL)
	if !strings.Contains(base, articlePathSegment) {
		return "", false
	}
	return strings.Replace(base, articlePathSegment, commentPathSegment, 1), true
}

func (f *CommentFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *CommentFetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
