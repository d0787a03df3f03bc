package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceSession is one attendance pass over a classroom photo.
// At most one session exists per (course, date, lesson_number).
type AttendanceSession struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	Date           time.Time `db:"date" json:"date"`
	LessonNumber   int       `db:"lesson_number" json:"lesson_number"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url,omitempty"`
	EmotionSummary *string   `db:"emotion_summary" json:"emotion_summary,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord is the per-student outcome of a session. Exactly one
// record exists per roster member once a session is committed.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Emotion   *string          `db:"emotion" json:"emotion,omitempty"`
	Note      *string          `db:"note" json:"note,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSessionDetail bundles a session with its records for API output.
type AttendanceSessionDetail struct {
	AttendanceSession
	Records []AttendanceRecord `json:"records"`
}

// AttendanceRecordRow extends a record with student metadata for exports.
type AttendanceRecordRow struct {
	AttendanceRecord
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
}

// SessionFilter narrows session listings per course.
type SessionFilter struct {
	CourseID string
	DateFrom *time.Time
	DateTo   *time.Time
}

// MatchResult maps a probe face to the student it matched, if any.
// It is transient; only the derived record statuses are persisted.
type MatchResult struct {
	ProbeIndex int     `json:"probe_index"`
	StudentID  string  `json:"student_id,omitempty"`
	Distance   float64 `json:"distance"`
}

// MatchedStudents collects the distinct student IDs present in the results.
func MatchedStudents(results []MatchResult) map[string]struct{} {
	matched := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.StudentID != "" {
			matched[r.StudentID] = struct{}{}
		}
	}
	return matched
}
