package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/metrics"

	"go.uber.org/zap"
)

type Action string

const (
	ActionCheckInUser   Action = "checkin_user"
	ActionCheckInVendor Action = "checkin_vendor"
)

var (
	// ErrLimiterUnavailable is returned for fail-closed actions when the counter store cannot be reached.
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	ErrUnknownAction      = errors.New("unknown rate limit action")
)

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds up; a denied decision always asks for at least one second.
func (d *Decision) RetryAfterSeconds() int {
	if d == nil || d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts attempts in a sliding window. Hit records the attempt at now and returns the number
// of attempts within (now-window, now] and the timestamp of the oldest one.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (count int64, oldest time.Time, err error)
}

type Limiter struct {
	store Store
	rules map[Action]config.RateLimitRule
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewLimiter(store Store, cfg *config.Config, log *zap.SugaredLogger) *Limiter {
	rules := make(map[Action]config.RateLimitRule, len(cfg.RateLimit))
	for name, rule := range cfg.RateLimit {
		rules[Action(name)] = rule
	}
	return &Limiter{store: store, rules: rules, log: log, now: time.Now}
}

func Key(action Action, subjectKey string) string {
	return fmt.Sprintf("rl:%s:%s", action, subjectKey)
}

// Check records an attempt for subjectKey under action and decides whether it may proceed.
// Every attempt counts, including denied ones.
func (l *Limiter) Check(ctx context.Context, action Action, subjectKey string) (*Decision, error) {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	now := l.now()
	count, oldest, err := l.store.Hit(ctx, Key(action, subjectKey), now, rule.Window)
	if err != nil {
		if rule.FailOpen {
			logctx.FromCtx(ctx, l.log).Warnw("rate limit store unavailable, allowing", "action", action, "err", err)
			metrics.Inc(metrics.MetricsRateLimitDecision, string(action), "fail_open")
			return &Decision{Allowed: true}, nil
		}
		logctx.FromCtx(ctx, l.log).Errorw("rate limit store unavailable, denying", "action", action, "err", err)
		metrics.Inc(metrics.MetricsRateLimitDecision, string(action), "unavailable")
		return nil, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	if count <= rule.Limit {
		metrics.Inc(metrics.MetricsRateLimitDecision, string(action), "allowed")
		return &Decision{Allowed: true}, nil
	}

	retryAfter := oldest.Add(rule.Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	metrics.Inc(metrics.MetricsRateLimitDecision, string(action), "denied")
	return &Decision{Allowed: false, RetryAfter: retryAfter}, nil
}
