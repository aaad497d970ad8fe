package interviews

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sync-hire/backend/internal/models"
)

// Repository handles interview persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an interview repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new interview. The invite code is stored as a bcrypt hash.
func (r *Repository) Create(ctx context.Context, iv *models.Interview, inviteCodeHash string) error {
	questions, err := json.Marshal(iv.Questions)
	if err != nil {
		return err
	}
	const q = `INSERT INTO interviews (candidate_name, job_title, questions, invite_code_hash, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, iv.CandidateName, iv.JobTitle, questions, inviteCodeHash, models.InterviewStatusScheduled).
		Scan(&iv.ID, &iv.CreatedAt, &iv.UpdatedAt)
}

// GetByID returns an interview by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	const q = `SELECT id, candidate_name, job_title, questions, status, duration_minutes, completed_at, created_at, updated_at
		FROM interviews WHERE id = $1`
	var iv models.Interview
	var questions []byte
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&iv.ID, &iv.CandidateName, &iv.JobTitle, &questions, &iv.Status, &iv.DurationMinutes, &iv.CompletedAt, &iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &iv.Questions); err != nil {
			return nil, err
		}
	}
	return &iv, nil
}

// InviteCodeHash returns the stored invite code hash for an interview.
func (r *Repository) InviteCodeHash(ctx context.Context, id uuid.UUID) (string, error) {
	const q = `SELECT invite_code_hash FROM interviews WHERE id = $1`
	var hash string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&hash); err != nil {
		return "", err
	}
	return hash, nil
}

// UpdateStatus sets the interview status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE interviews SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status)
	return err
}

// MarkCompleted records a finished interview with its duration.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, durationMinutes float64, completedAt time.Time) error {
	const q = `UPDATE interviews SET status = $2, duration_minutes = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.InterviewStatusCompleted, durationMinutes, completedAt)
	return err
}

// List returns interviews, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *string) ([]models.Interview, error) {
	base := `SELECT id, candidate_name, job_title, questions, status, duration_minutes, completed_at, created_at, updated_at FROM interviews`
	var args []interface{}
	var cond string
	if status != nil {
		cond = " WHERE status = $1"
		args = append(args, *status)
	}
	rows, err := r.pool.Query(ctx, base+cond+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Interview
	for rows.Next() {
		var iv models.Interview
		var questions []byte
		if err := rows.Scan(&iv.ID, &iv.CandidateName, &iv.JobTitle, &questions, &iv.Status, &iv.DurationMinutes, &iv.CompletedAt, &iv.CreatedAt, &iv.UpdatedAt); err != nil {
			return nil, err
		}
		if len(questions) > 0 {
			if err := json.Unmarshal(questions, &iv.Questions); err != nil {
				return nil, err
			}
		}
		list = append(list, iv)
	}
	return list, rows.Err()
}
