package auth

import (
	"errors"
	"net/http"

	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/NordCoder/KUSeek/internal/obs"
	"go.uber.org/zap"

	tokens "github.com/NordCoder/KUSeek/internal/auth"
)

type Server struct {
	log          *zap.Logger
	uc           *Usecase
	gate         *Gate
	cookies      CookieOpts
	trustProxy   bool
	loginLimiter FailureLimiter
	apiLimiter   Admitter
}

type Opts struct {
	Logger       *zap.Logger
	Cookies      CookieOpts
	TrustProxy   bool
	// LoginLimiter is charged per client address for failed logins and
	// duplicate registrations only.
	LoginLimiter FailureLimiter
	APILimiter   Admitter
}

func NewServer(uc *Usecase, o Opts) (*Server, error) {
	if uc == nil || o.LoginLimiter == nil || o.APILimiter == nil {
		return nil, errors.New("auth server: missing dependency")
	}
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if o.Cookies.Name == "" {
		o.Cookies.Name = "refresh_token"
	}
	if o.Cookies.Path == "" {
		o.Cookies.Path = "/"
	}
	if o.Cookies.TTL == 0 {
		o.Cookies.TTL = uc.tokens.RefreshTTL()
	}
	return &Server{
		log:          log,
		uc:           uc,
		gate:         NewGate(uc, log),
		cookies:      o.Cookies,
		trustProxy:   o.TrustProxy,
		loginLimiter: o.LoginLimiter,
		apiLimiter:   o.APILimiter,
	}, nil
}

// Register mounts every auth route on mux with its guard pipeline.
func (s *Server) Register(mux *http.ServeMux) {
	csrf := CSRF(s.log)
	byIP := BanCheckBy(s.loginLimiter, s.clientAddr, s.log)

	mux.HandleFunc("GET /api/v1/csrf-token", s.CSRFToken)
	mux.Handle("POST /api/v1/auth/credentials", Chain(http.HandlerFunc(s.Login), csrf, byIP))
	mux.Handle("POST /api/v1/auth/refresh", Chain(http.HandlerFunc(s.Refresh), csrf))
	mux.Handle("POST /api/v1/auth/logout", Chain(http.HandlerFunc(s.Logout), csrf))
	mux.Handle("POST /api/v1/auth/register", Chain(http.HandlerFunc(s.SignUp), csrf, byIP))

	mux.Handle("GET /api/v1/users/me",
		Chain(http.HandlerFunc(s.Me), s.gate.Authenticate, s.gate.RateLimit(s.apiLimiter)))
	mux.Handle("DELETE /api/v1/admin/bans/{policy}/{subject}",
		Chain(http.HandlerFunc(s.AdminUnban),
			s.gate.Authenticate, s.gate.Authorize(user.RoleAdmin), s.gate.RateLimit(s.apiLimiter)))
}

func (s *Server) clientAddr(r *http.Request) string {
	return ClientIP(r, s.trustProxy)
}

// chargeFailure counts one failed attempt against the caller's address. When
// that exhausts the quota, or the limiter refuses, it answers the request
// and returns true.
func (s *Server) chargeFailure(w http.ResponseWriter, r *http.Request) bool {
	d, err := s.loginLimiter.Admit(r.Context(), s.clientAddr(r))
	return refuse(w, r, d, err, s.log)
}

func (s *Server) CSRFToken(w http.ResponseWriter, r *http.Request) {
	tok, err := tokens.NewCSRFToken()
	if err != nil {
		obs.WithTrace(r.Context(), s.log).Error("csrf token", zap.Error(err))
		writeError(w, err)
		return
	}
	s.cookies.setCSRF(w, tok)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": tok})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	UserType    user.Role `json:"user_type,omitempty"`
	UserID      string    `json:"user_id"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: msgBadRequest})
		return
	}

	toks, err := s.uc.LoginWithCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) && s.chargeFailure(w, r) {
			return
		}
		writeError(w, err)
		return
	}

	s.cookies.setRefresh(w, toks.Refresh)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: toks.Access,
		UserType:    toks.Role,
		UserID:      toks.UserID.String(),
	})
}

type registerResponse struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token,omitempty"`
	UserType    user.Role `json:"user_type,omitempty"`
}

// SignUp registers a password identity and opens its first session. External
// identities are never registered from a request body.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: msgBadRequest})
		return
	}

	id, err := s.uc.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, domainauth.ErrAlreadyRegistered) && s.chargeFailure(w, r) {
			return
		}
		writeError(w, err)
		return
	}
	resp := registerResponse{UserID: id.String()}

	toks, err := s.uc.LoginWithCredentials(r.Context(), in.Email, in.Password)
	if err != nil {
		obs.WithTrace(r.Context(), s.log).Warn("login after register", zap.Stringer("user_id", id), zap.Error(err))
	} else {
		s.cookies.setRefresh(w, toks.Refresh)
		resp.AccessToken = toks.Access
		resp.UserType = toks.Role
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	toks, err := s.uc.Refresh(r.Context(), s.cookies.readRefresh(r))
	if err != nil {
		s.cookies.clearRefresh(w)
		writeError(w, err)
		return
	}
	s.cookies.setRefresh(w, toks.Refresh)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": toks.Access})
}

// Logout always clears the cookie, even when the token was already dead.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	err := s.uc.Logout(r.Context(), s.cookies.readRefresh(r))
	s.cookies.clearRefresh(w)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Role     user.Role `json:"role"`
	Verified bool      `json:"verified"`
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromCtx(r.Context())
	u, err := s.uc.Me(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:   u.ID.String(),
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	})
}

func (s *Server) AdminUnban(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.AdminUnban(r.Context(), r.PathValue("policy"), r.PathValue("subject")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
