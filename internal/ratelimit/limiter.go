package ratelimit

import (
	"context"
	"fmt"

	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	domain "github.com/NordCoder/KUSeek/internal/domain/ratelimit"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/NordCoder/KUSeek/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_decisions_total",
		Help: "Rate limiter decisions by policy and outcome.",
	}, []string{"policy", "decision"})
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_store_errors_total",
		Help: "Counter store failures seen by the limiter (after retry).",
	}, []string{"policy"})
	bansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_bans_total",
		Help: "Subjects banned for exceeding their quota.",
	}, []string{"policy"})
)

// Limiter applies one Policy over a shared CounterStore. Subjects move from
// unbanned to banned when a window count exceeds the limit and stay banned
// until Unban.
type Limiter struct {
	store     domain.CounterStore
	policy    Policy
	retry     retry.Policy
	// INCR is not idempotent; a retry after a lost reply would count twice.
	incrRetry retry.Policy
	log       *zap.Logger
}

func New(store domain.CounterStore, p Policy, log *zap.Logger) (*Limiter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "ratelimit"), zap.String("policy", p.Name))
	return &Limiter{
		store:     store,
		policy:    p,
		retry:     retry.StorePolicy("ratelimit_"+p.Name, log),
		incrRetry: retry.StoreWritePolicy("ratelimit_incr_"+p.Name, log),
		log:       log,
	}, nil
}

func (l *Limiter) Policy() Policy { return l.policy }

// Admit counts one request for subject. The request that brings the count
// to exactly Limit is still admitted; the next one bans the subject.
func (l *Limiter) Admit(ctx context.Context, subject string) (domain.Decision, error) {
	banned, err := l.IsBanned(ctx, subject)
	if err != nil {
		return l.storeFailure(ctx, subject, err)
	}
	if banned {
		return l.decide(domain.Decision{Allowed: false, Reason: domain.ReasonBanned}), nil
	}

	var n int64
	err = l.doWith(ctx, l.incrRetry, func() error {
		var e error
		n, e = l.store.IncrWindow(ctx, l.policy.counterKey(subject), l.policy.Window)
		return e
	})
	if err != nil {
		return l.storeFailure(ctx, subject, err)
	}

	if n > l.policy.Limit {
		if err := l.Ban(ctx, subject); err != nil {
			// The quota is exceeded either way; the ban is retried on the next hit.
			obs.WithTrace(ctx, l.log).Warn("ban failed", zap.String("subject", subject), zap.Error(err))
		} else {
			bansTotal.WithLabelValues(l.policy.Name).Inc()
			obs.WithTrace(ctx, l.log).Warn("subject banned",
				zap.String("subject", subject), zap.Int64("count", n), zap.Int64("limit", l.policy.Limit))
		}
		return l.decide(domain.Decision{Allowed: false, Reason: domain.ReasonLimited, Count: n}), nil
	}
	return l.decide(domain.Decision{Allowed: true, Reason: domain.ReasonAllowed, Count: n}), nil
}

// Check answers like Admit for a banned subject but counts nothing. Store
// failures follow the policy's fail mode.
func (l *Limiter) Check(ctx context.Context, subject string) (domain.Decision, error) {
	banned, err := l.IsBanned(ctx, subject)
	if err != nil {
		return l.storeFailure(ctx, subject, err)
	}
	if banned {
		return l.decide(domain.Decision{Allowed: false, Reason: domain.ReasonBanned}), nil
	}
	return domain.Decision{Allowed: true, Reason: domain.ReasonAllowed}, nil
}

// AdmitRequest is Admit reduced to a yes/no answer; store failures follow
// the policy's fail mode.
func (l *Limiter) AdmitRequest(ctx context.Context, subject string) bool {
	d, _ := l.Admit(ctx, subject)
	return d.Allowed
}

func (l *Limiter) Ban(ctx context.Context, subject string) error {
	return l.do(ctx, func() error { return l.store.AddMember(ctx, l.policy.BanSet, subject) })
}

func (l *Limiter) Unban(ctx context.Context, subject string) error {
	return l.do(ctx, func() error { return l.store.RemoveMember(ctx, l.policy.BanSet, subject) })
}

func (l *Limiter) IsBanned(ctx context.Context, subject string) (bool, error) {
	var banned bool
	err := l.do(ctx, func() error {
		var e error
		banned, e = l.store.IsMember(ctx, l.policy.BanSet, subject)
		return e
	})
	return banned, err
}

func (l *Limiter) do(ctx context.Context, fn func() error) error {
	return l.doWith(ctx, l.retry, fn)
}

func (l *Limiter) doWith(ctx context.Context, pol retry.Policy, fn func() error) error {
	if err := retry.Do(ctx, fn, pol); err != nil {
		storeErrorsTotal.WithLabelValues(l.policy.Name).Inc()
		return fmt.Errorf("ratelimit %s: %w", l.policy.Name, err)
	}
	return nil
}

func (l *Limiter) storeFailure(ctx context.Context, subject string, err error) (domain.Decision, error) {
	if l.policy.FailMode == domain.FailOpen {
		obs.WithTrace(ctx, l.log).Warn("counter store unavailable, admitting",
			zap.String("subject", subject), zap.Error(err))
		return l.decide(domain.Decision{Allowed: true, Reason: domain.ReasonUnavailable}), nil
	}
	obs.WithTrace(ctx, l.log).Error("counter store unavailable, rejecting",
		zap.String("subject", subject), zap.Error(err))
	d := l.decide(domain.Decision{Allowed: false, Reason: domain.ReasonUnavailable})
	return d, fmt.Errorf("%w: %v", domainauth.ErrStoreUnavailable, err)
}

func (l *Limiter) decide(d domain.Decision) domain.Decision {
	decisionsTotal.WithLabelValues(l.policy.Name, string(d.Reason)).Inc()
	return d
}
