package config

import "time"

type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED"         envDefault:"true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY"        envDefault:"60"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS"   envDefault:"1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL"             envDefault:"10m"`
    KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY"    envDefault:"ip_user_route"`
    Prefix         string        `env:"RATE_LIMIT_PREFIX"          envDefault:"rl"`
    Debug          bool          `env:"RATE_LIMIT_DEBUG"           envDefault:"false"`

    // Shorthands: BURST overrides Capacity, REFILL_EVERY sets one token per interval.
    Burst       int           `env:"RATE_LIMIT_BURST"`
    RefillEvery time.Duration `env:"RATE_LIMIT_REFILL_EVERY"`
}

func (r *RateLimitConfig) normalize() {
    if r.Burst > 0 { r.Capacity = r.Burst }
    if r.RefillEvery > 0 {
        r.RefillTokens = 1
        r.RefillInterval = r.RefillEvery
    }
    if r.Capacity < 1 { r.Capacity = 1 }
    if r.RefillTokens < 1 { r.RefillTokens = 1 }
    if r.RefillInterval <= 0 { r.RefillInterval = time.Second }
    minTTL := 5 * r.RefillInterval
    if r.TTL < minTTL { r.TTL = minTTL }
}
