package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/metrics"
)

// idleTTL is how long an actor's bucket is kept after its last request.
const idleTTL = 10 * time.Minute

// RateLimiter hands out one token bucket per actor. An actor is the
// authenticated user ID when auth middleware ran first, otherwise the
// client IP (already rewritten by chi's RealIP).
//
// Thread Safety: safe for concurrent use.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu        sync.Mutex
	actors    map[string]*actorBucket
	lastSweep time.Time
	now       func() time.Time
}

type actorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per actor with the given
// burst.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:  rate.Limit(rps),
		burst:  burst,
		logger: logger,
		actors: make(map[string]*actorBucket),
		now:    time.Now,
	}
}

// Allow reports whether actor may make a request now.
func (rl *RateLimiter) Allow(actor string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.actors[actor]
	if !ok {
		b = &actorBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.actors[actor] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for longer than idleTTL, at most once per
// idleTTL. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleTTL {
		return
	}
	rl.lastSweep = now
	for actor, b := range rl.actors {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(rl.actors, actor)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorKey(r)
		if !rl.Allow(actor) {
			metrics.RateLimitedTotal.Inc()
			rl.logger.Warn("rate limited",
				slog.String("actor", actor),
				slog.String("path", r.URL.Path),
			)

			retry := 1
			if rl.limit > 0 {
				retry = int(math.Ceil(1 / float64(rl.limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorKey(r *http.Request) string {
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
