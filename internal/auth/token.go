package auth

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLen = 32

var signingMethod = jwt.SigningMethodHS512

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Issuer mints and verifies access and refresh tokens. It never touches
// the session store.
type Issuer struct {
	cfg Config
}

type claims struct {
	UID     string  `json:"uid"`
	Refresh *uint32 `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Issuer{cfg: cfg}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.cfg.AccessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

func (i *Issuer) IssueAccess(ownerID uuid.UUID) (string, error) {
	now := i.cfg.Now()
	return i.sign(claims{
		UID: ownerID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
	})
}

// IssueRefresh returns the token and the nonce the caller must persist as
// a session before handing the token out.
func (i *Issuer) IssueRefresh(ownerID uuid.UUID) (string, uint32, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", 0, fmt.Errorf("refresh nonce: %w", err)
	}
	now := i.cfg.Now()
	tok, err := i.sign(claims{
		UID:     ownerID.String(),
		Refresh: &nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
		},
	})
	if err != nil {
		return "", 0, err
	}
	return tok, nonce, nil
}

func (i *Issuer) VerifyAccess(token string) (*domainauth.Claims, error) {
	c, err := i.verify(token)
	if err != nil {
		return nil, err
	}
	if c.Refresh != nil {
		return nil, domainauth.ErrTokenMalformed
	}
	return toDomain(c)
}

func (i *Issuer) VerifyRefresh(token string) (*domainauth.Claims, error) {
	c, err := i.verify(token)
	if err != nil {
		return nil, err
	}
	if c.Refresh == nil {
		return nil, domainauth.ErrTokenMalformed
	}
	return toDomain(c)
}

func (i *Issuer) sign(c claims) (string, error) {
	s, err := jwt.NewWithClaims(signingMethod, c).SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (i *Issuer) verify(token string) (*claims, error) {
	if token == "" {
		return nil, domainauth.ErrTokenMalformed
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.cfg.Now),
	)
	if err == nil {
		return &c, nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) || i.expiredUnverified(token) {
		return nil, domainauth.ErrTokenExpired
	}
	return nil, fmt.Errorf("%w: %v", domainauth.ErrTokenMalformed, err)
}

// expiredUnverified reports a past exp even when the signature is bad, so
// that an expired token is always reported as expired.
func (i *Issuer) expiredUnverified(token string) bool {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return false
	}
	return c.ExpiresAt != nil && !i.cfg.Now().Before(c.ExpiresAt.Time)
}

func toDomain(c *claims) (*domainauth.Claims, error) {
	id, err := uuid.Parse(c.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: uid: %v", domainauth.ErrTokenMalformed, err)
	}
	out := &domainauth.Claims{UserID: id}
	if c.Refresh != nil {
		out.Nonce = *c.Refresh
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return out, nil
}

func newNonce() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
