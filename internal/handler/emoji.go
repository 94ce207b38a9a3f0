package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/indie-arcade/internal/metrics"
)

const (
	emojiCacheKey = "emojis"
	emojiCacheTTL = time.Hour
	maxEmojiBytes = 8 << 20
)

// EmojiHandler proxies the emoji catalogue so the API key stays server-side.
//
// The upstream body is cached in ristretto for an hour; concurrent misses
// share one upstream call.
type EmojiHandler struct {
	client   *http.Client
	endpoint string
	apiKey   string
	cache    *ristretto.Cache
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewEmojiHandler creates an EmojiHandler. An empty apiKey makes every
// request answer 503.
func NewEmojiHandler(client *http.Client, endpoint, apiKey string, logger *slog.Logger) (*EmojiHandler, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     4 * maxEmojiBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating emoji cache: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EmojiHandler{
		client:   client,
		endpoint: endpoint,
		apiKey:   apiKey,
		cache:    cache,
		logger:   logger,
	}, nil
}

// HandleEmojis returns the upstream emoji list as JSON.
//
// HTTP: GET /emojis
// 503 when no API key is configured, 502 when the upstream call fails.
func (h *EmojiHandler) HandleEmojis(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == "" {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "emoji picker is not configured",
		})
		return
	}

	if v, ok := h.cache.Get(emojiCacheKey); ok {
		metrics.EmojiCacheTotal.WithLabelValues("hit").Inc()
		writeRawJSON(w, v.([]byte))
		return
	}

	v, err, _ := h.inflight.Do(emojiCacheKey, func() (any, error) {
		// Detached so one client hanging up doesn't fail the others.
		return h.fetch(context.WithoutCancel(r.Context()))
	})
	if err != nil {
		metrics.EmojiCacheTotal.WithLabelValues("error").Inc()
		h.logger.Error("emoji fetch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "Error fetching emojis",
		})
		return
	}

	metrics.EmojiCacheTotal.WithLabelValues("miss").Inc()
	writeRawJSON(w, v.([]byte))
}

func (h *EmojiHandler) fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing emoji endpoint: %w", err)
	}
	q := u.Query()
	q.Set("access_key", h.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building emoji request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling emoji API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("emoji API returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEmojiBytes))
	if err != nil {
		return nil, fmt.Errorf("reading emoji response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("emoji API returned invalid JSON")
	}

	h.cache.SetWithTTL(emojiCacheKey, body, int64(len(body)), emojiCacheTTL)
	h.cache.Wait()
	return body, nil
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
