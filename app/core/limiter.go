package core

import (
	"math"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"
)

const (
	LIMIT_CLASS_IMAGE  = "image"
	LIMIT_CLASS_VIDEO  = "video"
	LIMIT_CLASS_AUDIO  = "audio"
	LIMIT_CLASS_SEARCH = "search"
)

var defaultLimitRules = map[string]LimitRule{
	LIMIT_CLASS_IMAGE:  {PerMinute: 20, Burst: 5},
	LIMIT_CLASS_VIDEO:  {PerMinute: 6, Burst: 2},
	LIMIT_CLASS_AUDIO:  {PerMinute: 10, Burst: 3},
	LIMIT_CLASS_SEARCH: {PerMinute: 30, Burst: 10},
}

// Limiter is a token bucket per (user, operation class). Classes without a
// rule are unlimited.
type Limiter struct {
	rules   map[string]LimitRule
	buckets cmap.ConcurrentMap[string, *rate.Limiter]
}

func NewLimiter(rules map[string]LimitRule) *Limiter {
	merged := make(map[string]LimitRule, len(defaultLimitRules))
	for k, v := range defaultLimitRules {
		merged[k] = v
	}
	for k, v := range rules {
		merged[k] = v
	}
	return &Limiter{
		rules:   merged,
		buckets: cmap.New[*rate.Limiter](),
	}
}

// Allow consumes one token. When refused it reports how many seconds the
// caller should wait.
func (l *Limiter) Allow(userID, class string) (bool, int) {
	rule, ok := l.rules[class]
	if !ok || rule.PerMinute <= 0 {
		return true, 0
	}
	burst := rule.Burst
	if burst <= 0 {
		burst = 1
	}

	bucket := l.buckets.Upsert(userID+":"+class, nil, func(exist bool, old, _ *rate.Limiter) *rate.Limiter {
		if exist {
			return old
		}
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rule.PerMinute)), burst)
	})

	now := time.Now()
	r := bucket.ReserveN(now, 1)
	if !r.OK() {
		return false, 60
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}
