package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/ports"
)

const analyzeAttempts = 3

// Enricher runs the capped analysis pass over the ledger. Rows are taken in
// store order, which the reconciler has sorted newest-first before the pass
// runs, so fresh articles are analyzed before the budget runs out.
type Enricher struct {
	ledger   ports.Ledger
	analyzer ports.Analyzer
	budget   int
	maxChars int
	rowDelay time.Duration
	sleep    func(time.Duration)
	logger   *slog.Logger
}

// NewEnricher constructs the pass. budget caps processed rows per pass, not
// API calls: rows settled with the no-body sentinel consume budget too, so
// un-fetchable rows stop being reconsidered run after run.
func NewEnricher(ledger ports.Ledger, analyzer ports.Analyzer, budget, maxChars int, rowDelay time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{
		ledger:   ledger,
		analyzer: analyzer,
		budget:   budget,
		maxChars: maxChars,
		rowDelay: rowDelay,
		sleep:    time.Sleep,
		logger:   logger,
	}
}

// RunPass analyzes up to budget rows needing analysis and writes results
// back per row. A quota refusal from the provider aborts immediately with
// domain.ErrQuotaExhausted; everything already written stays written.
func (e *Enricher) RunPass(ctx context.Context) (int, error) {
	recs, err := e.ledger.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}

	processed := 0
	for i, rec := range recs {
		if processed >= e.budget {
			e.info("analysis budget reached", "budget", e.budget)
			break
		}
		if rec.URL == "" || !rec.NeedsAnalysis() {
			continue
		}
		row := i + 1

		body := rec.JoinedBody()
		if body == "" {
			e.info("no body to analyze, settling row", "row", row, "url", rec.URL)
			if err := e.ledger.UpdateAnalysis(ctx, row, domain.NoBody()); err != nil {
				return processed, fmt.Errorf("settle row %d: %w", row, err)
			}
			processed++
			e.sleep(e.rowDelay)
			continue
		}

		// maxChars caps characters, not bytes; bodies are mostly multibyte.
		if r := []rune(body); len(r) > e.maxChars {
			body = string(r[:e.maxChars])
		}

		analysis, err := e.analyzeWithRetry(ctx, body)
		if errors.Is(err, domain.ErrQuotaExhausted) {
			return processed, fmt.Errorf("analysis pass aborted: %w", err)
		}
		if err != nil {
			e.warn("analysis failed, marking row", "row", row, "url", rec.URL, "error", err)
			analysis = domain.Errored()
		}

		if err := e.ledger.UpdateAnalysis(ctx, row, analysis); err != nil {
			return processed, fmt.Errorf("write analysis row %d: %w", row, err)
		}
		processed++
		e.sleep(e.rowDelay)
	}

	return processed, nil
}

// analyzeWithRetry retries generic provider failures with exponential
// backoff. Quota exhaustion is never retried: the provider will refuse
// every subsequent call as well.
func (e *Enricher) analyzeWithRetry(ctx context.Context, body string) (domain.Analysis, error) {
	var lastErr error
	for attempt := 0; attempt < analyzeAttempts; attempt++ {
		analysis, err := e.analyzer.Analyze(ctx, body)
		if err == nil {
			return analysis, nil
		}
		if errors.Is(err, domain.ErrQuotaExhausted) || ctx.Err() != nil {
			return domain.Analysis{}, err
		}

		lastErr = err
		if attempt < analyzeAttempts-1 {
			wait := time.Duration((float64(int(1)<<attempt) + rand.Float64()) * float64(time.Second))
			e.warn("analysis attempt failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
			e.sleep(wait)
		}
	}
	return domain.Analysis{}, fmt.Errorf("after %d attempts: %w", analyzeAttempts, lastErr)
}

func (e *Enricher) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Enricher) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
