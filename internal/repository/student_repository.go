package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okulsight/attendance-api/internal/models"
)

// StudentRepository handles persistence for students and their face references.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a single student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT id, student_number, full_name, department, face_encoding, face_photo_url, created_at, updated_at
FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// SetFaceReference stores the canonical reference embedding and photo URL,
// overwriting any previous enrollment.
func (r *StudentRepository) SetFaceReference(ctx context.Context, id string, encoding string, photoURL string) error {
	query := `UPDATE students SET face_encoding = $2, face_photo_url = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, encoding, photoURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set face reference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set face reference: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearFaceReference removes the stored reference embedding and photo URL.
func (r *StudentRepository) ClearFaceReference(ctx context.Context, id string) error {
	query := `UPDATE students SET face_encoding = NULL, face_photo_url = NULL, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear face reference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear face reference: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
