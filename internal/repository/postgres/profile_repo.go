package postgres

import (
	"context"

	"github.com/NordCoder/KUSeek/internal/domain/user"
)

var _ user.ProfileRepo = (*ProfileRepo)(nil)

type ProfileRepo struct{ db *DB }

func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

const (
	qStudentInsert = `
INSERT INTO student_profiles (user_id, ku_id) VALUES ($1, $2);`

	qCompanyInsert = `
INSERT INTO company_profiles (user_id, company_name, company_size) VALUES ($1, $2, $3);`

	qProfessorInsert = `
INSERT INTO professor_profiles (user_id, department) VALUES ($1, $2);`

	qTOSInsert = `
INSERT INTO tos_agreements (user_id, agree_status, agreed_at) VALUES ($1, $2, $3);`
)

func (r *ProfileRepo) CreateStudent(ctx context.Context, p *user.StudentProfile) error {
	return r.exec(ctx, "student profile insert", qStudentInsert, p.UserID, p.KUID)
}

func (r *ProfileRepo) CreateCompany(ctx context.Context, p *user.CompanyProfile) error {
	return r.exec(ctx, "company profile insert", qCompanyInsert, p.UserID, p.Name, string(p.Size))
}

func (r *ProfileRepo) CreateProfessor(ctx context.Context, p *user.ProfessorProfile) error {
	return r.exec(ctx, "professor profile insert", qProfessorInsert, p.UserID, p.Department)
}

func (r *ProfileRepo) AcceptTOS(ctx context.Context, t *user.TOSAgreement) error {
	return r.exec(ctx, "tos insert", qTOSInsert, t.UserID, t.Agreed, t.AgreedAt)
}

func (r *ProfileRepo) exec(ctx context.Context, op, q string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.execQueryer(ctx).Exec(ctx, q, args...)
	return mapErr(op, err)
}
