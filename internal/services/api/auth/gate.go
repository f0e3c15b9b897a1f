package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"

	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/NordCoder/KUSeek/internal/domain/ratelimit"
	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	tokens "github.com/NordCoder/KUSeek/internal/auth"
)

// AccessTokenHeader carries the raw access token, without a Bearer prefix.
const AccessTokenHeader = "access_token"

const csrfHeader = "X-CSRFToken"

type ctxKey int

const userIDKey ctxKey = 1

func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
	ResolveRole(ctx context.Context, ownerID uuid.UUID) (user.Role, error)
}

type Admitter interface {
	Admit(ctx context.Context, subject string) (ratelimit.Decision, error)
}

// FailureLimiter is a limiter that is charged only for failed attempts:
// Check refuses banned subjects up front, Admit counts a failure.
type FailureLimiter interface {
	Admitter
	Check(ctx context.Context, subject string) (ratelimit.Decision, error)
}

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws run in the order given.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type Gate struct {
	auth Authenticator
	log  *zap.Logger
}

func NewGate(a Authenticator, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{auth: a, log: log.With(zap.String("component", "gate"))}
}

// Authenticate resolves the access_token header to an owner id and stores
// it in the request context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(AccessTokenHeader)
		id, err := g.auth.Authenticate(r.Context(), raw)
		if err != nil {
			g.reject(r, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// Authorize admits owners whose stored role is in roles. No roles means any
// authenticated owner passes.
func (g *Gate) Authorize(roles ...user.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := UserIDFromCtx(r.Context())
			if !ok {
				g.reject(r, w, domainauth.ErrUnauthenticated)
				return
			}
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			role, err := g.auth.ResolveRole(r.Context(), id)
			if err != nil {
				g.reject(r, w, err)
				return
			}
			if !slices.Contains(roles, role) {
				g.reject(r, w, domainauth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a per-owner policy. It must run after Authenticate.
func (g *Gate) RateLimit(a Admitter) Middleware {
	return RateLimitBy(a, func(r *http.Request) string {
		id, _ := UserIDFromCtx(r.Context())
		return id.String()
	}, g.log)
}

// RateLimitBy admits a request under the subject key returns.
func RateLimitBy(a Admitter, key func(*http.Request) string, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := a.Admit(r.Context(), key(r))
			if refuse(w, r, d, err, log) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BanCheckBy refuses subjects l has banned without counting the request.
func BanCheckBy(l FailureLimiter, key func(*http.Request) string, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Check(r.Context(), key(r))
			if refuse(w, r, d, err, log) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// refuse writes the response for a limiter decision that does not admit the
// request and reports whether it did.
func refuse(w http.ResponseWriter, r *http.Request, d ratelimit.Decision, err error, log *zap.Logger) bool {
	if err != nil {
		gateRejectedTotal.WithLabelValues("limiter_unavailable").Inc()
		obs.WithTrace(r.Context(), log).Error("rate limiter unavailable", zap.Error(err))
		writeError(w, err)
		return true
	}
	if d.Allowed {
		return false
	}
	gateRejectedTotal.WithLabelValues(string(d.Reason)).Inc()
	if d.Reason == ratelimit.ReasonBanned {
		writeError(w, domainauth.ErrBanned)
	} else {
		writeError(w, domainauth.ErrRateLimited)
	}
	return true
}

// CSRF enforces the double-submit check on state-changing requests.
func CSRF(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			var cookie string
			if c, err := r.Cookie(csrfCookieName); err == nil {
				cookie = c.Value
			}
			if !tokens.CSRFMatch(cookie, r.Header.Get(csrfHeader)) {
				gateRejectedTotal.WithLabelValues("csrf").Inc()
				obs.WithTrace(r.Context(), log).Warn("csrf check failed",
					zap.String("path", r.URL.Path), zap.Bool("cookie", cookie != ""))
				writeError(w, domainauth.ErrCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) reject(r *http.Request, w http.ResponseWriter, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domainauth.ErrUnauthenticated):
		reason = "unauthenticated"
	case errors.Is(err, domainauth.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, domainauth.ErrTokenMalformed):
		reason = "malformed"
		obs.WithTrace(r.Context(), g.log).Warn("malformed access token", zap.Error(err))
	case errors.Is(err, domainauth.ErrUnknownIdentity):
		reason = "unknown_identity"
	case errors.Is(err, domainauth.ErrForbidden):
		reason = "forbidden"
	default:
		obs.WithTrace(r.Context(), g.log).Error("gate failure", zap.Error(err))
	}
	gateRejectedTotal.WithLabelValues(reason).Inc()
	writeError(w, err)
}
