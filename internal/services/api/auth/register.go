package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/NordCoder/KUSeek/internal/domain"
	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/NordCoder/KUSeek/internal/domain/outbox"
	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLen = 8

type RegisterInput struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	// ExternalUID is set by an identity-provider adapter, never decoded
	// from a request body.
	ExternalUID string    `json:"-"`
	Role        user.Role `json:"user_type"`
	TOSAgreed   bool      `json:"tos_agreed"`

	// Student
	KUID string `json:"ku_id"`
	// Company
	CompanyName string `json:"company_name"`
	CompanySize string `json:"company_size"`
	// Professor
	Department string `json:"department"`
}

// Validate reports every missing or invalid field at once.
func (in *RegisterInput) Validate() *domainauth.ValidationError {
	verr := &domainauth.ValidationError{}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		verr.Add("email", "required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "invalid")
	}

	switch {
	case in.Password == "" && in.ExternalUID == "":
		verr.Add("password", "required")
	case in.Password != "" && len(in.Password) < minPasswordLen:
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}

	if !in.TOSAgreed {
		verr.Add("tos_agreed", "terms of service must be accepted")
	}

	switch {
	case in.Role == "":
		verr.Add("user_type", "required")
	case !in.Role.Valid():
		verr.Add("user_type", "unknown user type")
	case !in.Role.SelfRegistrable():
		verr.Add("user_type", "not allowed to self-register")
	}

	switch in.Role {
	case user.RoleStudent:
		if in.KUID == "" {
			verr.Add("ku_id", "required")
		} else if !isDigits(in.KUID, 10) {
			verr.Add("ku_id", "must be exactly 10 digits")
		}
	case user.RoleCompany:
		if strings.TrimSpace(in.CompanyName) == "" {
			verr.Add("company_name", "required")
		}
		if in.CompanySize == "" {
			verr.Add("company_size", "required")
		} else if !user.CompanySize(in.CompanySize).Valid() {
			verr.Add("company_size", "unknown company size")
		}
	case user.RoleProfessor:
		if strings.TrimSpace(in.Department) == "" {
			verr.Add("department", "required")
		}
	}

	return verr
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Register creates the identity, its role profile, the terms-of-service
// record and a UserRegistered event in one transaction.
func (u *Usecase) Register(ctx context.Context, in RegisterInput) (uuid.UUID, error) {
	log := obs.WithTrace(ctx, u.log)

	if verr := in.Validate(); !verr.Empty() {
		registerTotal.WithLabelValues(string(in.Role), "invalid").Inc()
		return uuid.Nil, verr
	}

	rec := &user.User{
		ID:    uuid.New(),
		Email: normalizeEmail(in.Email),
		Role:  in.Role,
	}
	if in.ExternalUID != "" {
		ext := in.ExternalUID
		rec.ExternalUID = &ext
	}
	if in.Password != "" {
		hash, err := u.hasher.Hash(in.Password)
		if err != nil {
			return uuid.Nil, fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = hash
	}

	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domainauth.ErrAlreadyRegistered
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := u.createProfile(ctx, rec.ID, in); err != nil {
			return err
		}
		if err := u.profiles.AcceptTOS(ctx, &user.TOSAgreement{UserID: rec.ID, Agreed: true, AgreedAt: u.now()}); err != nil {
			return fmt.Errorf("accept tos: %w", err)
		}
		return u.enqueue(ctx, outbox.KindUserRegistered, outbox.AuthEvent{
			UserID: rec.ID.String(),
			Role:   string(rec.Role),
		})
	})
	if err != nil {
		if errors.Is(err, domainauth.ErrAlreadyRegistered) {
			registerTotal.WithLabelValues(string(in.Role), "conflict").Inc()
			log.Info("registration conflict", zap.String("email", rec.Email))
			return uuid.Nil, domainauth.ErrAlreadyRegistered
		}
		registerTotal.WithLabelValues(string(in.Role), "error").Inc()
		return uuid.Nil, fmt.Errorf("register: %w", err)
	}

	registerTotal.WithLabelValues(string(in.Role), "ok").Inc()
	log.Info("registered", zap.Stringer("user_id", rec.ID), zap.String("role", string(rec.Role)))
	return rec.ID, nil
}

func (u *Usecase) createProfile(ctx context.Context, id uuid.UUID, in RegisterInput) error {
	var err error
	switch in.Role {
	case user.RoleStudent:
		err = u.profiles.CreateStudent(ctx, &user.StudentProfile{UserID: id, KUID: in.KUID})
	case user.RoleCompany:
		err = u.profiles.CreateCompany(ctx, &user.CompanyProfile{
			UserID: id,
			Name:   strings.TrimSpace(in.CompanyName),
			Size:   user.CompanySize(in.CompanySize),
		})
	case user.RoleProfessor:
		err = u.profiles.CreateProfessor(ctx, &user.ProfessorProfile{UserID: id, Department: strings.TrimSpace(in.Department)})
	default:
		err = fmt.Errorf("no profile for role %q", in.Role)
	}
	if err != nil {
		return fmt.Errorf("create %s profile: %w", strings.ToLower(string(in.Role)), err)
	}
	return nil
}
