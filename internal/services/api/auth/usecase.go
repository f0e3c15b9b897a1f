package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain"
	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/NordCoder/KUSeek/internal/domain/outbox"
	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/NordCoder/KUSeek/internal/repository/postgres"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenIssuer interface {
	IssueAccess(ownerID uuid.UUID) (string, error)
	IssueRefresh(ownerID uuid.UUID) (string, uint32, error)
	VerifyAccess(token string) (*domainauth.Claims, error)
	VerifyRefresh(token string) (*domainauth.Claims, error)
	RefreshTTL() time.Duration
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// BanClearer is the part of the API rate limiter a successful login needs.
type BanClearer interface {
	Unban(ctx context.Context, subject string) error
}

type Deps struct {
	Users    user.Repo
	Profiles user.ProfileRepo
	Sessions domainauth.SessionRepo
	Outbox   outbox.Repository
	Tx       postgres.Transactor
	Tokens   TokenIssuer
	Hasher   PasswordHasher
	Bans     BanClearer
	// BanSets maps a limiter policy name to its ban set for AdminUnban.
	BanSets  map[string]BanClearer
	Logger   *zap.Logger
	Now      func() time.Time
}

// Usecase is the authentication service: credential and external login,
// refresh rotation, logout-everywhere and registration.
type Usecase struct {
	users    user.Repo
	profiles user.ProfileRepo
	sessions domainauth.SessionRepo
	outbox   outbox.Repository
	tx       postgres.Transactor
	tokens   TokenIssuer
	hasher   PasswordHasher
	bans     BanClearer
	banSets  map[string]BanClearer
	log      *zap.Logger
	now      func() time.Time

	// verified against when the email is unknown so both failure paths
	// cost one hash verification
	dummyHash string
}

func NewUseCase(d Deps) (*Usecase, error) {
	if d.Users == nil || d.Profiles == nil || d.Sessions == nil || d.Outbox == nil ||
		d.Tx == nil || d.Tokens == nil || d.Hasher == nil || d.Bans == nil {
		return nil, errors.New("auth usecase: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	dummy, err := d.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Usecase{
		users:     d.Users,
		profiles:  d.Profiles,
		sessions:  d.Sessions,
		outbox:    d.Outbox,
		tx:        d.Tx,
		tokens:    d.Tokens,
		hasher:    d.Hasher,
		bans:      d.Bans,
		banSets:   d.BanSets,
		log:       d.Logger.With(zap.String("component", "auth")),
		now:       d.Now,
		dummyHash: dummy,
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoginWithCredentials never tells an unknown email apart from a wrong
// password: both cost one hash verification and return ErrInvalidCredentials.
func (u *Usecase) LoginWithCredentials(ctx context.Context, email, password string) (*domainauth.Tokens, error) {
	log := obs.WithTrace(ctx, u.log)
	email = normalizeEmail(email)

	rec, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			loginTotal.WithLabelValues("credentials", "error").Inc()
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		_, _ = u.hasher.Verify(password, u.dummyHash)
		return nil, u.rejectLogin(log, "unknown_email", zap.String("email", email))
	}

	if rec.PasswordHash == "" {
		_, _ = u.hasher.Verify(password, u.dummyHash)
		return nil, u.rejectLogin(log, "no_password", zap.Stringer("user_id", rec.ID))
	}

	ok, err := u.hasher.Verify(password, rec.PasswordHash)
	if err != nil {
		log.Error("stored password hash unusable", zap.Stringer("user_id", rec.ID), zap.Error(err))
		return nil, u.rejectLogin(log, "corrupt_hash", zap.Stringer("user_id", rec.ID))
	}
	if !ok {
		return nil, u.rejectLogin(log, "wrong_password", zap.Stringer("user_id", rec.ID))
	}

	toks, err := u.establish(ctx, rec)
	if err != nil {
		loginTotal.WithLabelValues("credentials", "error").Inc()
		return nil, err
	}
	loginTotal.WithLabelValues("credentials", "ok").Inc()
	log.Info("login", zap.Stringer("user_id", rec.ID), zap.String("method", "credentials"))
	return toks, nil
}

func (u *Usecase) rejectLogin(log *zap.Logger, reason string, fields ...zap.Field) error {
	loginTotal.WithLabelValues("credentials", "invalid").Inc()
	log.Warn("login rejected", append(fields, zap.String("reason", reason))...)
	return domainauth.ErrInvalidCredentials
}

// LoginWithExternalIdentity starts a session for an identity provisioned
// from an external provider subject.
func (u *Usecase) LoginWithExternalIdentity(ctx context.Context, subject string) (*domainauth.Tokens, error) {
	if subject == "" {
		return nil, domainauth.ErrNotRegistered
	}
	rec, err := u.users.GetByExternalUID(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			loginTotal.WithLabelValues("external", "not_registered").Inc()
			return nil, domainauth.ErrNotRegistered
		}
		loginTotal.WithLabelValues("external", "error").Inc()
		return nil, fmt.Errorf("lookup external identity: %w", err)
	}

	toks, err := u.establish(ctx, rec)
	if err != nil {
		loginTotal.WithLabelValues("external", "error").Inc()
		return nil, err
	}
	loginTotal.WithLabelValues("external", "ok").Inc()
	obs.WithTrace(ctx, u.log).Info("login", zap.Stringer("user_id", rec.ID), zap.String("method", "external"))
	return toks, nil
}

// establish clears the owner's API ban and persists a fresh session. The
// session is committed before any token is returned.
func (u *Usecase) establish(ctx context.Context, rec *user.User) (*domainauth.Tokens, error) {
	if err := u.bans.Unban(ctx, rec.ID.String()); err != nil {
		return nil, fmt.Errorf("clear ban: %w: %w", domainauth.ErrStoreUnavailable, err)
	}

	access, err := u.tokens.IssueAccess(rec.ID)
	if err != nil {
		return nil, err
	}
	refresh, nonce, err := u.tokens.IssueRefresh(rec.ID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		return u.sessions.Create(ctx, &domainauth.Session{
			UserID:    rec.ID,
			Nonce:     nonce,
			IssuedAt:  now,
			ExpiresAt: now.Add(u.tokens.RefreshTTL()),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &domainauth.Tokens{Access: access, Refresh: refresh, UserID: rec.ID, Role: rec.Role}, nil
}

// Refresh rotates a refresh token. The presented session is consumed and a
// new one is stored in the same transaction; a missing session means the
// token was revoked.
func (u *Usecase) Refresh(ctx context.Context, refreshToken string) (*domainauth.Tokens, error) {
	log := obs.WithTrace(ctx, u.log)
	if refreshToken == "" {
		refreshTotal.WithLabelValues("missing").Inc()
		return nil, domainauth.ErrUnauthenticated
	}
	claims, err := u.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		refreshTotal.WithLabelValues("invalid").Inc()
		log.Warn("refresh token rejected", zap.Error(err))
		return nil, err
	}

	access, err := u.tokens.IssueAccess(claims.UserID)
	if err != nil {
		return nil, err
	}
	refresh, nonce, err := u.tokens.IssueRefresh(claims.UserID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		ok, err := u.sessions.Take(ctx, claims.UserID, claims.Nonce)
		if err != nil {
			return err
		}
		if !ok {
			return domainauth.ErrSessionRevoked
		}
		return u.sessions.Create(ctx, &domainauth.Session{
			UserID:    claims.UserID,
			Nonce:     nonce,
			IssuedAt:  now,
			ExpiresAt: now.Add(u.tokens.RefreshTTL()),
		})
	})
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionRevoked) {
			refreshTotal.WithLabelValues("revoked").Inc()
			log.Warn("refresh with revoked session", zap.Stringer("user_id", claims.UserID))
			return nil, domainauth.ErrSessionRevoked
		}
		refreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	refreshTotal.WithLabelValues("ok").Inc()
	return &domainauth.Tokens{Access: access, Refresh: refresh, UserID: claims.UserID}, nil
}

// Logout revokes every session of the token's owner, not only the
// presented one. Repeating it is a no-op.
func (u *Usecase) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return domainauth.ErrUnauthenticated
	}
	claims, err := u.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return err
	}

	var revoked int64
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := u.sessions.DeleteAll(ctx, claims.UserID)
		if err != nil {
			return err
		}
		revoked = n
		if n == 0 {
			return nil
		}
		return u.enqueue(ctx, outbox.KindSessionsRevoked, outbox.AuthEvent{
			UserID:   claims.UserID.String(),
			Sessions: n,
		})
	})
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	obs.WithTrace(ctx, u.log).Info("logout", zap.Stringer("user_id", claims.UserID), zap.Int64("sessions", revoked))
	return nil
}

// Authenticate validates an access token and returns its owner.
func (u *Usecase) Authenticate(_ context.Context, accessToken string) (uuid.UUID, error) {
	if accessToken == "" {
		return uuid.Nil, domainauth.ErrUnauthenticated
	}
	claims, err := u.tokens.VerifyAccess(accessToken)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func (u *Usecase) ResolveRole(ctx context.Context, ownerID uuid.UUID) (user.Role, error) {
	rec, err := u.Me(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return rec.Role, nil
}

func (u *Usecase) Me(ctx context.Context, ownerID uuid.UUID) (*user.User, error) {
	rec, err := u.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domainauth.ErrUnknownIdentity
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return rec, nil
}

// AdminUnban lifts a ban from the named policy's ban set.
func (u *Usecase) AdminUnban(ctx context.Context, policy, subject string) error {
	set, ok := u.banSets[policy]
	if !ok {
		verr := &domainauth.ValidationError{}
		verr.Add("policy", "unknown policy")
		return verr
	}
	if subject == "" {
		verr := &domainauth.ValidationError{}
		verr.Add("subject", "required")
		return verr
	}
	if err := set.Unban(ctx, subject); err != nil {
		return err
	}
	obs.WithTrace(ctx, u.log).Info("ban lifted", zap.String("policy", policy), zap.String("subject", subject))
	return nil
}

func (u *Usecase) enqueue(ctx context.Context, kind outbox.Kind, ev outbox.AuthEvent) error {
	ev.Type = kind.String()
	ev.At = u.now()
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	key := fmt.Sprintf("%s:%s:%d", ev.Type, ev.UserID, ev.At.UnixNano())
	if err := u.outbox.Enqueue(ctx, key, kind, b); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}
