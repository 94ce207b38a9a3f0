// Package metrics defines every Prometheus collector the server exports.
//
// Collectors register with the default registry at package init via
// promauto; server.go exposes them on /metrics with promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcade"

// ── HTTP ──────────────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts finished requests.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern (e.g. "/like/{id}"), never the raw path
//   - status: status code class ("2xx", "4xx", ...)
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration tracks handler latency per route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RateLimitedTotal counts requests rejected by the write limiter.
var RateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected with 429.",
	},
)

// ── Avatars ───────────────────────────────────────────────────────────────────

// AvatarRequestsTotal counts avatar lookups.
// Label:
//   - result: "hit" (served from the cache dir) or "miss" (generated)
var AvatarRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "avatar_requests_total",
		Help:      "Total number of avatar requests by cache result.",
	},
	[]string{"result"},
)

// AvatarGenerationsTotal counts images actually rendered. With a healthy
// cache it grows by at most one per username.
var AvatarGenerationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "avatar_generations_total",
		Help:      "Total number of avatar images rendered.",
	},
)

// ── Posts and likes ───────────────────────────────────────────────────────────

var PostsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_created_total",
		Help:      "Total number of posts created.",
	},
)

var PostsDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_deleted_total",
		Help:      "Total number of posts deleted by their author.",
	},
)

// LikeTogglesTotal counts like toggles.
// Label:
//   - result: "liked" or "unliked"
var LikeTogglesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "like_toggles_total",
		Help:      "Total number of like toggles by resulting state.",
	},
	[]string{"result"},
)

// ── Auth ──────────────────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - outcome: "created", "conflict" or "invalid"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of username registration attempts by outcome.",
	},
	[]string{"outcome"},
)

// EmojiCacheTotal counts emoji proxy lookups.
// Label:
//   - result: "hit", "miss" or "error"
var EmojiCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emoji_cache_total",
		Help:      "Total number of emoji proxy requests by cache result.",
	},
	[]string{"result"},
)
