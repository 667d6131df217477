package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsLedger/internal/domain"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRecord(url string) domain.Record {
	rec := domain.Record{
		URL:          url,
		Title:        "sample title",
		PostedAt:     "2024/11/11 10:00:00",
		Source:       "somepaper",
		CommentCount: 12,
		Analysis: domain.Analysis{
			Company:            "Acme",
			Category:           "company",
			Sentiment:          "neutral",
			SecondaryMention:   "none",
			SecondarySentiment: "N/A",
		},
	}
	rec.BodyPages[0] = "page one text"
	rec.BodyPages[1] = "page two text"
	for i := 2; i < domain.MaxBodyPages; i++ {
		rec.BodyPages[i] = domain.PadCell
	}
	rec.CommentPages[0] = "first comment page"
	for i := 1; i < len(rec.CommentPages); i++ {
		rec.CommentPages[i] = domain.PadCell
	}
	return rec
}

func TestOpenRejectsNarrowerSchema(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE ledger (row_num INTEGER PRIMARY KEY, c01 TEXT, c02 TEXT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(dsn, nil)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestEnsureHeaderRepairsMismatch(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))

	stale := make([]string, ColumnCount)
	stale[0] = "LegacyURL"
	require.NoError(t, l.writeRow(ctx, l.db, headerRowNum, stale))

	require.NoError(t, l.EnsureHeader(ctx))
	cells, found, err := l.readRow(ctx, headerRowNum)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Header(), cells)
}

func TestEnsureHeaderLeavesDataRowsAlone(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))
	require.NoError(t, l.Append(ctx, []domain.Record{sampleRecord("https://news.yahoo.co.jp/articles/abc")}))

	require.NoError(t, l.EnsureHeader(ctx))
	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://news.yahoo.co.jp/articles/abc", recs[0].URL)
}

func TestAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))

	first := sampleRecord("https://news.yahoo.co.jp/articles/first")
	second := domain.Record{
		URL:          "https://news.yahoo.co.jp/articles/second",
		Title:        "bare discovery",
		PostedAt:     "11/12(火) 09:00配信",
		CommentCount: domain.UnknownCommentCount,
	}
	require.NoError(t, l.Append(ctx, []domain.Record{first}))
	require.NoError(t, l.Append(ctx, []domain.Record{second}))

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, first, recs[0])
	assert.Equal(t, second, recs[1])
	assert.Equal(t, domain.UnknownCommentCount, recs[1].CommentCount)
}

func TestBlockUpdatesAreIsolated(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))
	require.NoError(t, l.Append(ctx, []domain.Record{sampleRecord("https://news.yahoo.co.jp/articles/abc")}))

	var pages [domain.MaxBodyPages]string
	pages[0] = domain.BodyUnavailable
	for i := 1; i < domain.MaxBodyPages; i++ {
		pages[i] = domain.PadCell
	}
	require.NoError(t, l.UpdateBody(ctx, 1, pages))

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	want := sampleRecord("https://news.yahoo.co.jp/articles/abc")
	want.BodyPages = pages
	assert.Equal(t, want, recs[0], "only the body block may change")
}

func TestUpdateAnalysisSkipsCommentBlock(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))

	rec := sampleRecord("https://news.yahoo.co.jp/articles/abc")
	rec.Analysis = domain.Analysis{}
	require.NoError(t, l.Append(ctx, []domain.Record{rec}))

	a := domain.Analysis{
		Company:            "Globex",
		Category:           "industry",
		Sentiment:          "negative",
		SecondaryMention:   "Acme",
		SecondarySentiment: "neutral",
	}
	require.NoError(t, l.UpdateAnalysis(ctx, 1, a))

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, a, recs[0].Analysis)
	assert.Equal(t, rec.CommentPages, recs[0].CommentPages, "the comment block between the two analysis blocks stays put")
	assert.Equal(t, rec.CommentCount, recs[0].CommentCount)
}

func TestUpdateMissingRowFails(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))

	err := l.UpdateCommentCount(ctx, 5, 3)
	require.Error(t, err)

	err = l.UpdateCommentCount(ctx, 0, 3)
	require.Error(t, err, "the header row is not addressable")
}

func TestSortByPostedAtNewestFirstUnparseableLast(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.EnsureHeader(ctx))

	older := sampleRecord("https://news.yahoo.co.jp/articles/older")
	older.PostedAt = "2024/11/09 08:00:00"
	newer := sampleRecord("https://news.yahoo.co.jp/articles/newer")
	newer.PostedAt = "2024/11/11 10:00:00"
	broken := sampleRecord("https://news.yahoo.co.jp/articles/broken")
	broken.PostedAt = "date withheld"
	require.NoError(t, l.Append(ctx, []domain.Record{broken, older, newer}))

	require.NoError(t, l.SortByPostedAt(ctx))

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, newer.URL, recs[0].URL)
	assert.Equal(t, older.URL, recs[1].URL)
	assert.Equal(t, broken.URL, recs[2].URL)

	cells, found, err := l.readRow(ctx, headerRowNum)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Header(), cells, "sorting never moves the header")

	// A second sort over an already-ordered ledger changes nothing.
	require.NoError(t, l.SortByPostedAt(ctx))
	again, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs, again)
}
