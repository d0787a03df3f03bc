package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/okulsight/attendance-api/internal/models"
)

// CourseRepository handles persistence for courses and their rosters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID loads a single course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT id, code, name, teacher_id, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Roster returns every student enrolled in the course in a stable order.
// The matcher depends on this order for its first-match tie-break.
func (r *CourseRepository) Roster(ctx context.Context, courseID string) ([]models.Student, error) {
	query := `SELECT s.id, s.student_number, s.full_name, s.department, s.face_encoding, s.face_photo_url, s.created_at, s.updated_at
FROM students s
JOIN course_students cs ON cs.student_id = s.id
WHERE cs.course_id = $1
ORDER BY s.student_number`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("load course roster: %w", err)
	}
	return students, nil
}
