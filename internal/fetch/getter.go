package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// ErrNotFound marks a resource the server reports as permanently absent.
// Never retried.
var ErrNotFound = errors.New("resource not found")

const defaultUserAgent = "Mozilla/5.0"

// Getter is the retried GET primitive underlying both paginated fetchers.
// Not-found responses fail immediately; anything else is retried with
// exponential backoff plus jitter.
type Getter struct {
	client   *http.Client
	attempts int
	sleep    func(time.Duration)
	logger   *slog.Logger
}

// NewGetter wires an HTTP client; a nil client gets a 20s-timeout default.
func NewGetter(client *http.Client, logger *slog.Logger) *Getter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Getter{
		client:   client,
		attempts: 3,
		sleep:    time.Sleep,
		logger:   logger,
	}
}

// Get fetches url, retrying transient failures up to the attempt budget.
func (g *Getter) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		body, err := g.once(ctx, url)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		if attempt < g.attempts-1 {
			wait := Backoff(attempt)
			g.debug("transient fetch failure, retrying",
				"url", url, "attempt", attempt+1, "wait", wait, "error", err)
			g.sleep(wait)
		}
	}
	return nil, fmt.Errorf("get %s after %d attempts: %w", url, g.attempts, lastErr)
}

func (g *Getter) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (g *Getter) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

// Backoff returns the wait before retrying a failed attempt (0-indexed):
// 2^attempt seconds plus up to one second of jitter.
func Backoff(attempt int) time.Duration {
	secs := float64(int(1)<<attempt) + rand.Float64()
	return time.Duration(secs * float64(time.Second))
}
