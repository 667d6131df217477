package storage

import (
	"strconv"
	"strings"

	"NewsLedger/internal/domain"
)

// The ledger's positional layout, 1-indexed. This file is the only place
// that knows which column holds what; everything else works with named
// record fields. This is the 31-column layout with one body page per column;
// switching to the flag-driven single-body-column variant would be a change
// to this file only.
const (
	ColURL                = 1
	ColTitle              = 2
	ColPostedAt           = 3
	ColSource             = 4
	ColBodyFirst          = 5
	ColBodyLast           = ColBodyFirst + domain.MaxBodyPages - 1 // 14
	ColCommentCount       = 15
	ColCompany            = 16
	ColCategory           = 17
	ColSentiment          = 18
	ColCommentFirst       = 19
	ColCommentLast        = ColCommentFirst + domain.MaxCommentPages // 29, overflow included
	ColSecondaryMention   = 30
	ColSecondarySentiment = 31

	ColumnCount = 31
)

// Header returns the exact header row the schema requires.
func Header() []string {
	h := make([]string, 0, ColumnCount)
	h = append(h, "URL", "Title", "PostedAt", "Source")
	for i := 1; i <= domain.MaxBodyPages; i++ {
		h = append(h, "BodyP"+strconv.Itoa(i))
	}
	h = append(h, "CommentCount", "Company", "Category", "Sentiment")
	for i := 1; i <= domain.MaxCommentPages; i++ {
		h = append(h, "CommentP"+strconv.Itoa(i))
	}
	h = append(h, "CommentOverflow", "SecondaryMention", "SecondarySentiment")
	return h
}

// recordToRow serializes a record into its positional form.
func recordToRow(rec domain.Record) []string {
	row := make([]string, ColumnCount)
	row[ColURL-1] = rec.URL
	row[ColTitle-1] = rec.Title
	row[ColPostedAt-1] = rec.PostedAt
	row[ColSource-1] = rec.Source
	for i, p := range rec.BodyPages {
		row[ColBodyFirst-1+i] = p
	}
	row[ColCommentCount-1] = formatCommentCount(rec.CommentCount)
	row[ColCompany-1] = rec.Analysis.Company
	row[ColCategory-1] = rec.Analysis.Category
	row[ColSentiment-1] = rec.Analysis.Sentiment
	for i, p := range rec.CommentPages {
		row[ColCommentFirst-1+i] = p
	}
	row[ColSecondaryMention-1] = rec.Analysis.SecondaryMention
	row[ColSecondarySentiment-1] = rec.Analysis.SecondarySentiment
	return row
}

// rowToRecord deserializes a positional row, tolerating short rows.
func rowToRecord(row []string) domain.Record {
	if len(row) < ColumnCount {
		padded := make([]string, ColumnCount)
		copy(padded, row)
		row = padded
	}

	rec := domain.Record{
		URL:          row[ColURL-1],
		Title:        row[ColTitle-1],
		PostedAt:     row[ColPostedAt-1],
		Source:       row[ColSource-1],
		CommentCount: parseCommentCount(row[ColCommentCount-1]),
		Analysis: domain.Analysis{
			Company:            row[ColCompany-1],
			Category:           row[ColCategory-1],
			Sentiment:          row[ColSentiment-1],
			SecondaryMention:   row[ColSecondaryMention-1],
			SecondarySentiment: row[ColSecondarySentiment-1],
		},
	}
	for i := range rec.BodyPages {
		rec.BodyPages[i] = row[ColBodyFirst-1+i]
	}
	for i := range rec.CommentPages {
		rec.CommentPages[i] = row[ColCommentFirst-1+i]
	}
	return rec
}

func formatCommentCount(count int) string {
	return strconv.Itoa(count)
}

// parseCommentCount maps a blank or unparsable cell to the unknown sentinel.
func parseCommentCount(cell string) int {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return domain.UnknownCommentCount
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return domain.UnknownCommentCount
	}
	return n
}
