package user

import (
	"context"

	"github.com/google/uuid"
)

// Repo returns domain.ErrNotFound for missing rows and domain.ErrConflict
// for duplicate email or external uid.
type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByExternalUID(ctx context.Context, uid string) (*User, error)
}

type ProfileRepo interface {
	CreateStudent(ctx context.Context, p *StudentProfile) error
	CreateCompany(ctx context.Context, p *CompanyProfile) error
	CreateProfessor(ctx context.Context, p *ProfessorProfile) error
	AcceptTOS(ctx context.Context, t *TOSAgreement) error
}
