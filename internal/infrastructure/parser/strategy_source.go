package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsLedger/internal/config"
	"NewsLedger/internal/domain"
	"NewsLedger/internal/ports"
	"NewsLedger/internal/scanner"
)

// StrategySource implements DiscoverySource via registered scanner
// strategies, fanning each configured source over its keywords.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	keywords []string
	logger   *slog.Logger
}

var _ ports.DiscoverySource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
// The fallback keywords apply to any source that declares none of its own.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, fallbackKeywords []string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		keywords: fallbackKeywords,
		logger:   log,
	}
}

// Discover iterates over configured sources and executes their scanners,
// one keyword at a time.
func (s *StrategySource) Discover(ctx context.Context) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	var aggregated []domain.Candidate
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Scanner)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		keywords := src.Keywords
		if len(keywords) == 0 {
			keywords = s.keywords
		}
		s.debug("process source", "source", src.Name, "scanner", src.Scanner, "keywords", len(keywords))

		for _, keyword := range keywords {
			results, err := strategy.Search(ctx, scanner.Request{
				Keyword:    keyword,
				SourceName: src.Name,
				Options:    src.Options,
			})
			if err != nil {
				return nil, fmt.Errorf("search %s keyword %q: %w", src.Name, keyword, err)
			}

			for i := range results {
				if results[i].Source == "" {
					results[i].Source = src.Name
				}
			}
			aggregated = append(aggregated, results...)
		}
	}

	s.debug("discovery done", "total_candidates", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
