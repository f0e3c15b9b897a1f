package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent   Role = "Student"
	RoleCompany   Role = "Company"
	RoleStaff     Role = "Staff"
	RoleProfessor Role = "Professor"
	RoleAdmin     Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCompany, RoleStaff, RoleProfessor, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether an identity of this role may be created
// through public registration. Staff and Admin are provisioned by operators.
func (r Role) SelfRegistrable() bool {
	return r == RoleStudent || r == RoleCompany || r == RoleProfessor
}

type CompanySize string

const (
	CompanySizeSmall  CompanySize = "less than 100"
	CompanySizeMedium CompanySize = "101 - 1,000"
	CompanySizeLarge  CompanySize = "1,001 - 10,000"
	CompanySizeHuge   CompanySize = "more than 10,000"
)

func (s CompanySize) Valid() bool {
	switch s {
	case CompanySizeSmall, CompanySizeMedium, CompanySizeLarge, CompanySizeHuge:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id"`
	ExternalUID  *string   `json:"-"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // empty for external-only identities
	Verified     bool      `json:"verified"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type StudentProfile struct {
	UserID uuid.UUID
	KUID   string
}

type CompanyProfile struct {
	UserID uuid.UUID
	Name   string
	Size   CompanySize
}

type ProfessorProfile struct {
	UserID     uuid.UUID
	Department string
}

type TOSAgreement struct {
	UserID   uuid.UUID
	Agreed   bool
	AgreedAt time.Time
}
