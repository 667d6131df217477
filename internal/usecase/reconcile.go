package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/jptime"
	"NewsLedger/internal/ports"
)

// ReconcilerDeps wires all driven adapters into the reconciliation driver.
type ReconcilerDeps struct {
	Source        ports.DiscoverySource
	Ledger        ports.Ledger
	Bodies        ports.BodyFetcher
	Comments      ports.CommentFetcher
	Enricher      *Enricher
	Notifier      ports.Notifier
	ArticlePrefix string
	RecencyDays   int
	RowDelay      time.Duration
	Logger        *slog.Logger
}

// Reconciler drives one run: discover, dedup-append, classify and fetch
// every row, sort by recency, then the budgeted analysis pass. Every write
// is scoped to one record and one column block, so a crash mid-run leaves
// the ledger legal and the next run re-derives outstanding work from
// persisted state.
type Reconciler struct {
	source        ports.DiscoverySource
	ledger        ports.Ledger
	bodies        ports.BodyFetcher
	comments      ports.CommentFetcher
	enricher      *Enricher
	notifier      ports.Notifier
	articlePrefix string
	recencyDays   int
	rowDelay      time.Duration
	sleep         func(time.Duration)
	logger        *slog.Logger
}

// NewReconciler constructs the driver.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	return &Reconciler{
		source:        deps.Source,
		ledger:        deps.Ledger,
		bodies:        deps.Bodies,
		comments:      deps.Comments,
		enricher:      deps.Enricher,
		notifier:      deps.Notifier,
		articlePrefix: deps.ArticlePrefix,
		recencyDays:   deps.RecencyDays,
		rowDelay:      deps.RowDelay,
		sleep:         time.Sleep,
		logger:        deps.Logger,
	}
}

// Run executes one reconciliation pass. The returned summary is valid even
// on error; quota exhaustion surfaces as domain.ErrQuotaExhausted.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (domain.RunSummary, error) {
	var sum domain.RunSummary

	if err := r.ledger.EnsureHeader(ctx); err != nil {
		return sum, fmt.Errorf("ensure header: %w", err)
	}

	if err := r.appendDiscoveries(ctx, now, &sum); err != nil {
		return sum, err
	}

	if err := r.fetchOutstanding(ctx, now, &sum); err != nil {
		return sum, err
	}

	if err := r.ledger.SortByPostedAt(ctx); err != nil {
		r.warn("sort by posted-at failed", "error", err)
	}

	if r.enricher != nil {
		analyzed, err := r.enricher.RunPass(ctx)
		sum.Analyzed = analyzed
		if err != nil {
			r.notify(ctx, sum)
			return sum, fmt.Errorf("enrichment pass: %w", err)
		}
	}

	r.notify(ctx, sum)
	r.info("run complete",
		"discovered", sum.Discovered, "appended", sum.Appended,
		"fetched", sum.Fetched, "analyzed", sum.Analyzed)
	return sum, nil
}

// appendDiscoveries collects candidates and appends the ones whose URL is
// not yet present. A discovery failure is logged and skipped: existing rows
// still deserve reconciliation.
func (r *Reconciler) appendDiscoveries(ctx context.Context, now time.Time, sum *domain.RunSummary) error {
	var cands []domain.Candidate
	if r.source != nil {
		var err error
		cands, err = r.source.Discover(ctx)
		if err != nil {
			r.warn("discovery failed, continuing with existing rows", "error", err)
			cands = nil
		}
	}
	sum.Discovered = len(cands)
	if len(cands) == 0 {
		return nil
	}

	existing, err := r.ledger.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read ledger for dedup: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[rec.URL] = true
	}

	var fresh []domain.Record
	for _, cand := range cands {
		if cand.URL == "" || !strings.HasPrefix(cand.URL, r.articlePrefix) {
			continue
		}
		if seen[cand.URL] {
			continue
		}
		seen[cand.URL] = true

		posted, _ := jptime.Normalize(cand.RawPostedAt, now)
		fresh = append(fresh, domain.Record{
			URL:          cand.URL,
			Title:        cand.Title,
			PostedAt:     posted,
			Source:       cand.Source,
			CommentCount: domain.UnknownCommentCount,
		})
	}

	if len(fresh) == 0 {
		r.info("no new candidates to append")
		return nil
	}
	if err := r.ledger.Append(ctx, fresh); err != nil {
		return fmt.Errorf("append discoveries: %w", err)
	}
	sum.Appended = len(fresh)
	r.info("appended new rows", "count", len(fresh))
	return nil
}

// fetchOutstanding classifies every row and dispatches exactly the fetch
// work the classification names. Row-scoped failures are logged and the
// loop continues; a schema mismatch aborts the phase.
func (r *Reconciler) fetchOutstanding(ctx context.Context, now time.Time, sum *domain.RunSummary) error {
	recs, err := r.ledger.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read ledger for fetch: %w", err)
	}

	for i, rec := range recs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		row := i + 1
		if !strings.HasPrefix(rec.URL, "http") {
			r.debug("skipping row with invalid url", "row", row)
			continue
		}

		action := Classify(rec, now, r.recencyDays)
		if action == ActionSkip {
			continue
		}
		r.info("reconciling row", "row", row, "action", action.String(), "url", rec.URL)

		var rowErr error
		switch action {
		case ActionFullFetch:
			rowErr = r.fullFetch(ctx, row, rec, now)
		case ActionLightUpdate:
			rowErr = r.lightUpdate(ctx, row, rec)
		}
		if rowErr != nil {
			if errors.Is(rowErr, domain.ErrSchemaMismatch) {
				return fmt.Errorf("fetch phase aborted: %w", rowErr)
			}
			r.warn("row reconciliation failed", "row", row, "error", rowErr)
			continue
		}

		sum.Fetched++
		r.sleep(r.rowDelay)
	}
	return nil
}

// fullFetch retrieves body pages, comment count, comment text and, when the
// stored date is blank or unparseable, the page-1 embedded date.
func (r *Reconciler) fullFetch(ctx context.Context, row int, rec domain.Record, now time.Time) error {
	body := r.bodies.FetchBody(ctx, rec.URL)

	if body.Pages != rec.BodyPages {
		if err := r.ledger.UpdateBody(ctx, row, body.Pages); err != nil {
			return err
		}
	}

	if body.EmbeddedDate != "" {
		if _, ok := jptime.Parse(rec.PostedAt, now); !ok {
			posted, _ := jptime.Normalize(body.EmbeddedDate, now)
			if posted != rec.PostedAt {
				if err := r.ledger.UpdatePostedAt(ctx, row, posted, rec.Source); err != nil {
					return err
				}
			}
		}
	}

	known := rec.CommentCount
	if body.CommentCount != domain.UnknownCommentCount {
		known = body.CommentCount
		if body.CommentCount != rec.CommentCount {
			if err := r.ledger.UpdateCommentCount(ctx, row, body.CommentCount); err != nil {
				return err
			}
		}
	}

	pages := r.comments.FetchComments(ctx, rec.URL, known)
	if pages != rec.CommentPages {
		if err := r.ledger.UpdateComments(ctx, row, pages); err != nil {
			return err
		}
	}
	return nil
}

// lightUpdate refreshes only the comment side of a fresh, already-fetched
// record: page 1 for the count, then the comment pages.
func (r *Reconciler) lightUpdate(ctx context.Context, row int, rec domain.Record) error {
	known := rec.CommentCount
	if count := r.bodies.FetchCommentCount(ctx, rec.URL); count != domain.UnknownCommentCount {
		known = count
		if count != rec.CommentCount {
			if err := r.ledger.UpdateCommentCount(ctx, row, count); err != nil {
				return err
			}
		}
	}

	pages := r.comments.FetchComments(ctx, rec.URL, known)
	if pages != rec.CommentPages {
		if err := r.ledger.UpdateComments(ctx, row, pages); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) notify(ctx context.Context, sum domain.RunSummary) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishRunSummary(ctx, sum); err != nil {
		r.warn("run summary notification failed", "error", err)
	}
}

func (r *Reconciler) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Reconciler) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Reconciler) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
