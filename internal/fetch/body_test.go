package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsLedger/internal/domain"
)

// stubExtractor treats the raw page as the extracted text. Pages shaped
// "count=N|date=D|text" expose page-1 extras.
type stubExtractor struct{}

func (stubExtractor) BodyText(page []byte) string {
	text := string(page)
	if i := strings.LastIndexByte(text, '|'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

func (stubExtractor) CommentCount(page []byte) int {
	for _, field := range strings.Split(string(page), "|") {
		if v, ok := strings.CutPrefix(field, "count="); ok {
			n := 0
			for _, c := range v {
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return domain.UnknownCommentCount
}

func (stubExtractor) EmbeddedDate(bodyText string) string {
	return ""
}

func (stubExtractor) Comments(page []byte) []string {
	text := strings.TrimSpace(string(page))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func newBodyFetcher(client *http.Client) *BodyFetcher {
	g := NewGetter(client, nil)
	g.sleep = func(time.Duration) {}
	f := NewBodyFetcher(g, stubExtractor{}, 0, nil)
	f.sleep = func(time.Duration) {}
	return f
}

func TestFetchBodyStopsWhereAPageFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte("count=5|page one"))
		case "2":
			_, _ = w.Write([]byte("page two"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	result := f.FetchBody(context.Background(), server.URL+"/articles/abc")

	assert.Equal(t, "page one", result.Pages[0])
	assert.Equal(t, "page two", result.Pages[1])
	for i := 2; i < domain.MaxBodyPages; i++ {
		assert.Equal(t, domain.PadCell, result.Pages[i], "slot %d", i+1)
	}
	assert.Equal(t, 5, result.CommentCount)
}

func TestFetchBodyPageOneFailure(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	result := f.FetchBody(context.Background(), server.URL+"/articles/abc")

	assert.Equal(t, domain.BodyUnavailable, result.Pages[0])
	for i := 1; i < domain.MaxBodyPages; i++ {
		assert.Equal(t, domain.PadCell, result.Pages[i])
	}
	assert.Equal(t, domain.UnknownCommentCount, result.CommentCount)
	assert.Equal(t, 1, hits, "page 2 must not be attempted after a page-1 failure")
}

func TestFetchBodyPageOneWithoutTextAborts(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("count=7|"))
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	result := f.FetchBody(context.Background(), server.URL+"/articles/abc")

	assert.Equal(t, domain.BodyUnavailable, result.Pages[0])
	assert.Equal(t, 1, hits)
	// Page-1 extras are still reported even when the body is blank.
	assert.Equal(t, 7, result.CommentCount)
}

func TestFetchBodyEmptyLaterPageIsDropped(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Query().Get("page") == "" {
			_, _ = w.Write([]byte("page one"))
			return
		}
		_, _ = w.Write([]byte("   "))
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	result := f.FetchBody(context.Background(), server.URL+"/articles/abc")

	assert.Equal(t, "page one", result.Pages[0])
	assert.Equal(t, domain.PadCell, result.Pages[1])
	assert.Equal(t, 2, hits, "pagination must stop at the first empty page")
}

func TestFetchBodyStripsQueryFromBaseURL(t *testing.T) {
	t.Parallel()

	var sawRaw []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRaw = append(sawRaw, r.URL.RawQuery)
		if r.URL.Query().Get("page") == "" {
			_, _ = w.Write([]byte("page one"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	f.FetchBody(context.Background(), server.URL+"/articles/abc?source=search")

	require.Len(t, sawRaw, 2)
	assert.Equal(t, "", sawRaw[0], "page 1 must use the bare URL")
	assert.Equal(t, "page=2", sawRaw[1])
}

func TestFetchCommentCountTouchesPageOneOnly(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("count=42|irrelevant"))
	}))
	defer server.Close()

	f := newBodyFetcher(server.Client())
	count := f.FetchCommentCount(context.Background(), server.URL+"/articles/abc")

	assert.Equal(t, 42, count)
	assert.Equal(t, 1, hits)
}
