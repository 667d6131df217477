package ports

import (
	"context"
	"time"

	"NewsLedger/internal/domain"
)

// DiscoverySource pulls article candidates from the configured upstream
// searches.
type DiscoverySource interface {
	Discover(ctx context.Context) ([]domain.Candidate, error)
}

// Ledger is the column-addressed tabular store the run reconciles against.
// Rows are 1-indexed over data rows; the header is not addressable. Each
// update method writes exactly one contiguous column block, so a crash
// between calls leaves the row in a legal intermediate state.
type Ledger interface {
	EnsureHeader(ctx context.Context) error
	ReadAll(ctx context.Context) ([]domain.Record, error)
	Append(ctx context.Context, recs []domain.Record) error
	UpdatePostedAt(ctx context.Context, row int, postedAt, source string) error
	UpdateBody(ctx context.Context, row int, pages [domain.MaxBodyPages]string) error
	UpdateCommentCount(ctx context.Context, row int, count int) error
	UpdateComments(ctx context.Context, row int, pages [domain.MaxCommentPages + 1]string) error
	UpdateAnalysis(ctx context.Context, row int, a domain.Analysis) error
	SortByPostedAt(ctx context.Context) error
}

// BodyResult is one paginated body fetch. CommentCount is
// domain.UnknownCommentCount and EmbeddedDate empty when page 1 carried
// neither; callers must not overwrite good stored values with those.
type BodyResult struct {
	Pages        [domain.MaxBodyPages]string
	CommentCount int
	EmbeddedDate string
}

// BodyFetcher retrieves the paginated article body plus the page-1 extras
// (comment count, embedded publish date). FetchCommentCount touches page 1
// only, for rows that need nothing but a comment refresh.
type BodyFetcher interface {
	FetchBody(ctx context.Context, url string) BodyResult
	FetchCommentCount(ctx context.Context, url string) int
}

// CommentFetcher retrieves the paginated comment text for an article,
// short-circuiting on a known total count.
type CommentFetcher interface {
	FetchComments(ctx context.Context, url string, knownTotal int) [domain.MaxCommentPages + 1]string
}

// Analyzer submits article text for classification. A capacity refusal is
// reported as domain.ErrQuotaExhausted; any other failure is generic and
// retryable by the caller.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (domain.Analysis, error)
}

// Notifier publishes a run summary to an outbound channel.
type Notifier interface {
	PublishRunSummary(ctx context.Context, s domain.RunSummary) error
}

// Scheduler controls when reconciliation runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(trigger time.Time)) error
	Stop(ctx context.Context) error
}
