package repository

import (
	"context"
	"errors"

	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CandidateRepository resolves candidate and admin accounts.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

var _ store.CandidateStore = (*CandidateRepository)(nil)

// GetByNumber retrieves a candidate by registration number.
func (r *CandidateRepository) GetByNumber(ctx context.Context, number string) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, name, password_hash, created_at, updated_at
		 FROM candidates WHERE number = $1`, number,
	).Scan(&c.ID, &c.Number, &c.Name, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Get retrieves a candidate by ID.
func (r *CandidateRepository) Get(ctx context.Context, id int) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, name, password_hash, created_at, updated_at
		 FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.Number, &c.Name, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// CreateAdmin inserts an administrator account.
func (r *CandidateRepository) CreateAdmin(ctx context.Context, a *model.Admin) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO admins (email, name, password_hash, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, created_at`,
		a.Email, a.Name, a.PasswordHash,
	).Scan(&a.ID, &a.CreatedAt)
}

// GetAdminByEmail retrieves an administrator account.
func (r *CandidateRepository) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM admins WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}
