package domain

import (
	"errors"
	"strings"
)

const (
	// MaxBodyPages is the number of body page slots a record carries.
	MaxBodyPages = 10
	// MaxCommentPages is the number of comment page slots, excluding the
	// overflow slot.
	MaxCommentPages = 10
	// CommentPageSize is how many comments the source serves per page.
	CommentPageSize = 10
)

// Cell sentinels. A slot is either untouched (empty string), padded,
// permanently failed, or carries real content.
const (
	PadCell            = "-"
	BodyUnavailable    = "unavailable"
	CommentUnavailable = "unavailable"
	CommentsEmpty      = "none"
	OverflowMarker     = "100+ comments exist"
	NoBodyAnalysis     = "N/A (no body)"
	AnalysisError      = "ERROR"
	AnalysisNA         = "N/A"
	// UnknownCommentCount marks a comment count that was never extracted.
	UnknownCommentCount = -1
)

// ErrQuotaExhausted signals that the analysis provider refused the call on
// capacity grounds. It aborts the whole run: every subsequent call would be
// rejected too.
var ErrQuotaExhausted = errors.New("analysis quota exhausted")

// ErrSchemaMismatch signals that the ledger's physical layout does not carry
// the expected columns. Fatal for the phase that hits it.
var ErrSchemaMismatch = errors.New("ledger schema mismatch")

// Candidate is what discovery yields before a record exists: the identity
// columns only.
type Candidate struct {
	URL         string
	Title       string
	RawPostedAt string
	Source      string
}

// Analysis holds the structured fields returned by the analysis provider.
type Analysis struct {
	Company            string
	Category           string
	Sentiment          string
	SecondaryMention   string
	SecondarySentiment string
}

// NoBody returns the sentinel analysis written for rows whose body could not
// be fetched, so they stop being reconsidered on later runs.
func NoBody() Analysis {
	return Analysis{
		Company:            NoBodyAnalysis,
		Category:           AnalysisNA,
		Sentiment:          AnalysisNA,
		SecondaryMention:   NoBodyAnalysis,
		SecondarySentiment: AnalysisNA,
	}
}

// Errored returns the sentinel analysis written when retries against the
// provider are exhausted.
func Errored() Analysis {
	return Analysis{
		Company:            AnalysisError,
		Category:           AnalysisError,
		Sentiment:          AnalysisError,
		SecondaryMention:   AnalysisError,
		SecondarySentiment: AnalysisError,
	}
}

// Record is one tracked article and its accumulated enrichment state.
// PostedAt holds the canonical "yyyy/mm/dd hh:mm:ss" form when the raw date
// parsed; otherwise whatever cleaned raw text discovery produced.
type Record struct {
	URL          string
	Title        string
	PostedAt     string
	Source       string
	BodyPages    [MaxBodyPages]string
	CommentCount int
	CommentPages [MaxCommentPages + 1]string
	Analysis     Analysis
}

// BodyFetched reports whether the first body slot holds real content.
// Empty means never attempted; BodyUnavailable means attempted and failed.
func (r *Record) BodyFetched() bool {
	p1 := strings.TrimSpace(r.BodyPages[0])
	return p1 != "" && p1 != BodyUnavailable
}

// BodyAttempted reports whether any body fetch has been recorded, successful
// or not.
func (r *Record) BodyAttempted() bool {
	return strings.TrimSpace(r.BodyPages[0]) != ""
}

// NeedsAnalysis reports whether any analysis field is still blank.
func (r *Record) NeedsAnalysis() bool {
	a := r.Analysis
	for _, v := range []string{a.Company, a.Category, a.Sentiment, a.SecondaryMention, a.SecondarySentiment} {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// Complete reports whether the record needs no further body or analysis work.
func (r *Record) Complete() bool {
	return r.BodyFetched() && !r.NeedsAnalysis()
}

// JoinedBody concatenates the fetched body pages, skipping pad and failure
// sentinels. Empty when no usable body text exists.
func (r *Record) JoinedBody() string {
	var parts []string
	for _, p := range r.BodyPages {
		p = strings.TrimSpace(p)
		if p == "" || p == PadCell || p == BodyUnavailable {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "\n")
}

// RunSummary carries the counters a single reconciliation run produced.
type RunSummary struct {
	Discovered int
	Appended   int
	Fetched    int
	Analyzed   int
}
