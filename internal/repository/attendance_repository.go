package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// AttendanceRepository handles persistence for attendance sessions and records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// SessionExists reports whether a session already exists for the triple.
func (r *AttendanceRepository) SessionExists(ctx context.Context, courseID string, date time.Time, lessonNumber int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE course_id = $1 AND date = $2 AND lesson_number = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, date, lessonNumber); err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return exists, nil
}

// CreateSession writes the session row and all of its records in one
// transaction. A concurrent insert for the same (course, date, lesson)
// loses against the unique index and surfaces as SESSION_ALREADY_EXISTS.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession, records []models.AttendanceRecord) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	sessionQuery := `INSERT INTO attendance_sessions (id, course_id, date, lesson_number, photo_url, emotion_summary, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, sessionQuery,
		session.ID, session.CourseID, session.Date, session.LessonNumber,
		session.PhotoURL, session.EmotionSummary, session.CreatedAt, session.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrSessionAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	recordQuery := `INSERT INTO attendance_records (id, session_id, student_id, status, emotion, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.SessionID = session.ID
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, recordQuery,
			rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.Emotion, rec.Note, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert record for student %s: %w", rec.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	committed = true
	return nil
}

// FindDetailByID loads a session together with its records.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceSessionDetail, error) {
	sessionQuery := `SELECT id, course_id, date, lesson_number, photo_url, emotion_summary, created_at, updated_at
FROM attendance_sessions WHERE id = $1 LIMIT 1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, sessionQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	recordsQuery := `SELECT id, session_id, student_id, status, emotion, note, created_at, updated_at
FROM attendance_records WHERE session_id = $1 ORDER BY student_id`
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, recordsQuery, id); err != nil {
		return nil, fmt.Errorf("load session records: %w", err)
	}

	return &models.AttendanceSessionDetail{AttendanceSession: session, Records: records}, nil
}

// ListSessions returns sessions for a course, newest first.
func (r *AttendanceRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error) {
	where := []string{"course_id = $1"}
	args := []interface{}{filter.CourseID}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	query := fmt.Sprintf(`SELECT id, course_id, date, lesson_number, photo_url, emotion_summary, created_at, updated_at
FROM attendance_sessions WHERE %s ORDER BY date DESC, lesson_number`, strings.Join(where, " AND "))
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// UpsertRecord inserts or updates a single record for manual correction.
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, session_id, student_id, status, emotion, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id, student_id)
DO UPDATE SET status = EXCLUDED.status, emotion = EXCLUDED.emotion, note = EXCLUDED.note, updated_at = EXCLUDED.updated_at
RETURNING id, session_id, student_id, status, emotion, note, created_at, updated_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.StudentID, record.Status, record.Emotion, record.Note, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}

// DeleteSession removes a session and cascades to its records.
func (r *AttendanceRepository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session records: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	committed = true
	return nil
}

// RecordRows returns a session's records joined with student metadata,
// ordered for attendance sheet exports.
func (r *AttendanceRepository) RecordRows(ctx context.Context, sessionID string) ([]models.AttendanceRecordRow, error) {
	query := `SELECT ar.id, ar.session_id, ar.student_id, ar.status, ar.emotion, ar.note, ar.created_at, ar.updated_at,
s.student_number, s.full_name AS student_name
FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
WHERE ar.session_id = $1
ORDER BY s.student_number`
	var rows []models.AttendanceRecordRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("load record rows: %w", err)
	}
	return rows, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
