package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/jptime"
	"NewsLedger/internal/ports"
)

const ledgerTable = "ledger"

// headerRowNum is the physical row holding the header; data rows are 1..n.
const headerRowNum = 0

// SQLiteLedger is a column-addressed tabular store on a single SQLite
// table: row_num plus one TEXT column per schema position. It assumes a
// single writer; writes are not isolated against concurrent external
// modification.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.Ledger = (*SQLiteLedger)(nil)

// Open opens (creating if needed) the ledger database and verifies its
// physical schema carries every expected column.
func Open(dsn string, logger *slog.Logger) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	if _, err := db.Exec(createTableSQL()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}

	if err := verifySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteLedger{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func createTableSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + ledgerTable + " (row_num INTEGER PRIMARY KEY")
	for i := 1; i <= ColumnCount; i++ {
		b.WriteString(", " + colName(i) + " TEXT NOT NULL DEFAULT ''")
	}
	b.WriteString(")")
	return b.String()
}

// verifySchema checks a pre-existing table was not created with an older,
// narrower layout.
func verifySchema(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(" + ledgerTable + ")")
	if err != nil {
		return fmt.Errorf("inspect ledger table: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table info: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table info rows: %w", err)
	}

	for i := 1; i <= ColumnCount; i++ {
		if !present[colName(i)] {
			return fmt.Errorf("ledger table lacks column %s: %w", colName(i), domain.ErrSchemaMismatch)
		}
	}
	return nil
}

func colName(i int) string {
	return fmt.Sprintf("c%02d", i)
}

func allColNames() []string {
	names := make([]string, ColumnCount)
	for i := 1; i <= ColumnCount; i++ {
		names[i-1] = colName(i)
	}
	return names
}

// EnsureHeader rewrites the header row when it does not exactly match the
// schema. Data rows are untouched.
func (l *SQLiteLedger) EnsureHeader(ctx context.Context) error {
	current, found, err := l.readRow(ctx, headerRowNum)
	if err != nil {
		return err
	}

	want := Header()
	if found && equalRows(current, want) {
		return nil
	}

	if found {
		l.warn("header row does not match schema, rewriting")
	}
	if err := l.writeRow(ctx, l.db, headerRowNum, want); err != nil {
		return fmt.Errorf("rewrite header: %w", err)
	}
	return nil
}

// ReadAll returns every data record in row order.
func (l *SQLiteLedger) ReadAll(ctx context.Context) ([]domain.Record, error) {
	query, args, err := sq.Select(allColNames()...).
		From(ledgerTable).
		Where(sq.Gt{"row_num": headerRowNum}).
		OrderBy("row_num ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var recs []domain.Record
	for rows.Next() {
		cells := make([]string, ColumnCount)
		dest := make([]any, ColumnCount)
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		recs = append(recs, rowToRecord(cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger rows: %w", err)
	}
	return recs, nil
}

// Append writes the records after the current last data row, one physical
// row each.
func (l *SQLiteLedger) Append(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var next sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(row_num) FROM "+ledgerTable).Scan(&next); err != nil {
		return fmt.Errorf("find last row: %w", err)
	}

	rowNum := int(next.Int64) + 1
	if !next.Valid {
		rowNum = 1
	}
	for _, rec := range recs {
		if err := l.writeRow(ctx, tx, rowNum, recordToRow(rec)); err != nil {
			return fmt.Errorf("append row %d: %w", rowNum, err)
		}
		rowNum++
	}
	return tx.Commit()
}

// UpdatePostedAt writes the date/source block of one data row.
func (l *SQLiteLedger) UpdatePostedAt(ctx context.Context, row int, postedAt, source string) error {
	return l.updateRange(ctx, row, ColPostedAt, []string{postedAt, source})
}

// UpdateBody writes the body page block of one data row atomically.
func (l *SQLiteLedger) UpdateBody(ctx context.Context, row int, pages [domain.MaxBodyPages]string) error {
	return l.updateRange(ctx, row, ColBodyFirst, pages[:])
}

// UpdateCommentCount writes the comment count cell of one data row.
func (l *SQLiteLedger) UpdateCommentCount(ctx context.Context, row int, count int) error {
	return l.updateRange(ctx, row, ColCommentCount, []string{formatCommentCount(count)})
}

// UpdateComments writes the comment page block, overflow slot included.
func (l *SQLiteLedger) UpdateComments(ctx context.Context, row int, pages [domain.MaxCommentPages + 1]string) error {
	return l.updateRange(ctx, row, ColCommentFirst, pages[:])
}

// UpdateAnalysis writes the two analysis blocks of one data row. Each block
// is one statement; the gap between them holds no analysis state.
func (l *SQLiteLedger) UpdateAnalysis(ctx context.Context, row int, a domain.Analysis) error {
	if err := l.updateRange(ctx, row, ColCompany, []string{a.Company, a.Category, a.Sentiment}); err != nil {
		return err
	}
	return l.updateRange(ctx, row, ColSecondaryMention, []string{a.SecondaryMention, a.SecondarySentiment})
}

// updateRange writes one contiguous column block of one data row.
func (l *SQLiteLedger) updateRange(ctx context.Context, row, startCol int, values []string) error {
	if row < 1 {
		return fmt.Errorf("data row %d out of range", row)
	}
	if startCol < 1 || startCol+len(values)-1 > ColumnCount {
		return fmt.Errorf("columns %d..%d: %w", startCol, startCol+len(values)-1, domain.ErrSchemaMismatch)
	}

	update := sq.Update(ledgerTable).Where(sq.Eq{"row_num": row})
	for i, v := range values {
		update = update.Set(colName(startCol+i), v)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("data row %d does not exist", row)
	}
	return nil
}

// SortByPostedAt reorders data rows newest-first on the posted-at column;
// rows whose timestamp does not parse sort last, keeping their relative
// order. Already-sorted ledgers are left untouched.
func (l *SQLiteLedger) SortByPostedAt(ctx context.Context) error {
	recs, err := l.ReadAll(ctx)
	if err != nil {
		return err
	}
	if len(recs) < 2 {
		return nil
	}

	now := time.Now()
	sorted := make([]domain.Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iok := jptime.Parse(sorted[i].PostedAt, now)
		tj, jok := jptime.Parse(sorted[j].PostedAt, now)
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return ti.After(tj)
	})

	same := true
	for i := range recs {
		if recs[i].URL != sorted[i].URL {
			same = false
			break
		}
	}
	if same {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sort: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+ledgerTable+" WHERE row_num > ?", headerRowNum); err != nil {
		return fmt.Errorf("clear data rows: %w", err)
	}
	for i, rec := range sorted {
		if err := l.writeRow(ctx, tx, i+1, recordToRow(rec)); err != nil {
			return fmt.Errorf("write sorted row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *SQLiteLedger) writeRow(ctx context.Context, db execer, rowNum int, cells []string) error {
	columns := append([]string{"row_num"}, allColNames()...)
	values := make([]any, 0, len(columns))
	values = append(values, rowNum)
	for _, c := range cells {
		values = append(values, c)
	}

	query, args, err := sq.Insert(ledgerTable).
		Options("OR REPLACE").
		Columns(columns...).
		Values(values...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) readRow(ctx context.Context, rowNum int) ([]string, bool, error) {
	query, args, err := sq.Select(allColNames()...).
		From(ledgerTable).
		Where(sq.Eq{"row_num": rowNum}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build row query: %w", err)
	}

	cells := make([]string, ColumnCount)
	dest := make([]any, ColumnCount)
	for i := range cells {
		dest[i] = &cells[i]
	}

	switch err := l.db.QueryRowContext(ctx, query, args...).Scan(dest...); err {
	case nil:
		return cells, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("read row %d: %w", rowNum, err)
	}
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (l *SQLiteLedger) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
