package middleware

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/sports-calendar/internal/config"
    "github.com/iliyamo/sports-calendar/internal/metrics"
)

// tokenBucket refills whole intervals since the last refill, takes one
// token if available and returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local now_ms, capacity, refill, interval_ms, ttl =
    tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens, last = tonumber(state[1]), tonumber(state[2])
if tokens == nil or last == nil then
    tokens, last = capacity, now_ms
end
local n = math.floor(math.max(0, now_ms - last) / interval_ms)
if n > 0 then
    tokens = math.min(capacity, tokens + n * refill)
    last = last + n * interval_ms
end
local allowed, retry = 0, 0
if tokens > 0 then
    allowed, tokens = 1, tokens - 1
else
    retry = math.max(0, interval_ms - (now_ms - last))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, retry}
`)

// bucketState is the outcome of one take.
type bucketState struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

var errBadBucketReply = errors.New("ratelimit: unexpected script reply")

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucketState, error) {
    vals, err := tokenBucket.Run(ctx, rdb, []string{key},
        now.UnixMilli(), cfg.Capacity, cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second),
    ).Int64Slice()
    if err != nil {
        return bucketState{}, err
    }
    return parseBucketReply(vals)
}

func parseBucketReply(vals []int64) (bucketState, error) {
    if len(vals) != 3 {
        return bucketState{}, errBadBucketReply
    }
    return bucketState{
        Allowed:    vals[0] == 1,
        Remaining:  vals[1],
        RetryAfter: time.Duration(vals[2]) * time.Millisecond,
    }, nil
}

// retryAfterSeconds rounds up to whole seconds for the Retry-After header.
func retryAfterSeconds(d time.Duration) int {
    if d <= 0 {
        return 0
    }
    return int((d + time.Second - 1) / time.Second)
}

// NewTokenBucket limits requests with a Redis-backed token bucket keyed by
// cfg.KeyStrategy.  Without Redis, or when Redis fails, requests pass.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := buildRateKey(cfg, c)

            st, err := takeToken(ctx, rdb, cfg, key, time.Now())
            if err != nil {
                slog.WarnContext(ctx, "ratelimit: bucket unavailable", "key", key, "error", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.Remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if st.Allowed {
                return next(c)
            }

            secs := retryAfterSeconds(st.RetryAfter)
            h.Set("Retry-After", strconv.Itoa(secs))
            metrics.RateLimited.WithLabelValues(c.Path()).Inc()
            if cfg.Debug {
                slog.DebugContext(ctx, "ratelimit: blocked", "key", key, "retry_after", st.RetryAfter)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey joins the prefix with the parts named by the key strategy.
// Unknown strategies use ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    parts := map[string][]string{
        "ip":    {"ip", ip},
        "user":  {"user", userID(c)},
        "route": {"route", c.Request().Method + " " + c.Path()},
    }

    var names []string
    switch strategy := strings.ToLower(cfg.KeyStrategy); strategy {
    case "ip", "user", "route":
        names = []string{strategy}
    case "ip_user", "ip_route", "user_route":
        a, b, _ := strings.Cut(strategy, "_")
        names = []string{a, b}
    default:
        names = []string{"ip", "user", "route"}
    }

    key := []string{cfg.Prefix}
    for _, n := range names {
        key = append(key, parts[n]...)
    }
    return strings.Join(key, ":")
}
