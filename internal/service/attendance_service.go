package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/export"
	"github.com/okulsight/attendance-api/pkg/vision"
)

type attendanceRepository interface {
	SessionExists(ctx context.Context, courseID string, date time.Time, lessonNumber int) (bool, error)
	CreateSession(ctx context.Context, session *models.AttendanceSession, records []models.AttendanceRecord) error
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceSessionDetail, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error)
	UpsertRecord(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	DeleteSession(ctx context.Context, id string) error
	RecordRows(ctx context.Context, sessionID string) ([]models.AttendanceRecordRow, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Roster(ctx context.Context, courseID string) ([]models.Student, error)
}

type rosterCache interface {
	Get(ctx context.Context, courseID string) ([]models.Student, error)
	Set(ctx context.Context, courseID string, students []models.Student) error
}

type emotionAnalyzer interface {
	Analyze(ctx context.Context, image []byte) (*models.EmotionSummary, error)
}

// AttendanceService orchestrates one attendance pass: precondition checks,
// face matching and emotion analysis over the classroom photo, roster
// reconciliation, and the all-or-nothing commit of session plus records.
type AttendanceService struct {
	sessions  attendanceRepository
	courses   courseReader
	roster    rosterCache
	extractor faceExtractor
	emotions  emotionAnalyzer
	matcher   Matcher
	photos    photoStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(
	sessions attendanceRepository,
	courses courseReader,
	roster rosterCache,
	extractor faceExtractor,
	emotions emotionAnalyzer,
	matcher Matcher,
	photos photoStore,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		sessions:  sessions,
		courses:   courses,
		roster:    roster,
		extractor: extractor,
		emotions:  emotions,
		matcher:   matcher,
		photos:    photos,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// TakeAttendanceRequest describes one "take attendance" invocation.
type TakeAttendanceRequest struct {
	CourseID     string    `json:"course_id" validate:"required"`
	Date         time.Time `json:"date"`
	LessonNumber int       `json:"lesson_number" validate:"min=1"`
	Photo        []byte    `json:"-" validate:"required"`
}

// UpsertRecordRequest describes a manual correction for one student.
type UpsertRecordRequest struct {
	Status  string  `json:"status" validate:"required,attendance_status"`
	Emotion *string `json:"emotion"`
	Note    *string `json:"note"`
}

// Take runs one attendance pass over a classroom photo and commits the
// session with exactly one record per roster member.
func (s *AttendanceService) Take(ctx context.Context, req TakeAttendanceRequest) (*models.AttendanceSessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date := normalizeDate(req.Date)

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	// Duplicate sessions are rejected before any extraction work; the
	// unique index backs this up against concurrent attempts.
	exists, err := s.sessions.SessionExists(ctx, req.CourseID, date, req.LessonNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing session")
	}
	if exists {
		return nil, appErrors.ErrSessionAlreadyExists
	}

	rosterStudents, err := s.loadRoster(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if len(rosterStudents) == 0 {
		return nil, appErrors.ErrEmptyRoster
	}

	sessionID := uuid.NewString()
	photoURL := s.storeSessionPhoto(sessionID, req.Photo)

	// The two extractor calls share no mutable state and read the same
	// image, so they run concurrently.
	var (
		wg         sync.WaitGroup
		detections []vision.FaceDetection
		faceErr    error
		summary    *models.EmotionSummary
		emotionErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		detections, faceErr = s.extractor.DetectFaces(ctx, req.Photo)
	}()
	go func() {
		defer wg.Done()
		summary, emotionErr = s.emotions.Analyze(ctx, req.Photo)
	}()
	wg.Wait()

	outcome := SessionOutcomeOK
	matched := map[string]struct{}{}
	var recognitionNote *string

	switch {
	case faceErr != nil:
		// Recognition being down degrades into an auditable all-absent
		// session instead of dropping the attendance pass.
		s.logger.Error("face recognition failed", zap.String("course_id", req.CourseID), zap.Error(faceErr))
		s.metrics.RecordRecognitionFailure()
		note := fmt.Sprintf("face recognition unavailable: %v; marked absent by default", faceErr)
		recognitionNote = &note
		outcome = SessionOutcomeDegraded
	case len(detections) == 0:
		// No attendance signal at all is a hard precondition failure.
		s.discardSessionPhoto(sessionID, photoURL)
		return nil, appErrors.ErrNoFaceInPhoto
	default:
		probes := make([]models.Embedding, len(detections))
		for i, d := range detections {
			probes[i] = models.Embedding(d.Embedding)
		}
		results, err := s.matcher.Match(probes, s.faceReferences(rosterStudents))
		if err != nil {
			s.discardSessionPhoto(sessionID, photoURL)
			return nil, err
		}
		matched = models.MatchedStudents(results)
	}

	if emotionErr != nil {
		s.logger.Warn("emotion analysis failed", zap.String("course_id", req.CourseID), zap.Error(emotionErr))
		s.metrics.RecordEmotionFailure()
		summary = nil
	}
	emotionBlob, err := summary.Serialize()
	if err != nil {
		s.logger.Warn("failed to serialize emotion summary", zap.String("course_id", req.CourseID), zap.Error(err))
		emotionBlob = nil
	}

	records := reconcile(rosterStudents, matched, recognitionNote)

	session := &models.AttendanceSession{
		ID:             sessionID,
		CourseID:       req.CourseID,
		Date:           date,
		LessonNumber:   req.LessonNumber,
		PhotoURL:       photoURL,
		EmotionSummary: emotionBlob,
	}
	if err := s.sessions.CreateSession(ctx, session, records); err != nil {
		s.discardSessionPhoto(sessionID, photoURL)
		if errors.Is(err, appErrors.ErrSessionAlreadyExists) {
			return nil, appErrors.ErrSessionAlreadyExists
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit attendance session")
	}

	s.metrics.ObserveSession(outcome, len(detections), len(matched))

	detail, err := s.sessions.FindDetailByID(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	return detail, nil
}

// reconcile produces exactly one record per roster member: PRESENT when the
// matcher found the student, ABSENT otherwise.
func reconcile(roster []models.Student, matched map[string]struct{}, note *string) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(roster))
	for _, student := range roster {
		status := models.AttendanceStatusAbsent
		if _, ok := matched[student.ID]; ok {
			status = models.AttendanceStatusPresent
		}
		records = append(records, models.AttendanceRecord{
			StudentID: student.ID,
			Status:    status,
			Note:      note,
		})
	}
	return records
}

// faceReferences decodes stored references in roster order. Students without
// a reference are skipped; a corrupt one is logged and likewise skipped so a
// single bad record never blocks attendance for the rest of the class.
func (s *AttendanceService) faceReferences(roster []models.Student) []models.FaceReference {
	refs := make([]models.FaceReference, 0, len(roster))
	for _, student := range roster {
		if !student.HasFaceReference() {
			continue
		}
		embedding, err := models.DecodeEmbedding(student.FaceEncoding)
		if err != nil {
			s.logger.Warn("skipping corrupt face reference",
				zap.String("student_id", student.ID), zap.Error(err))
			continue
		}
		refs = append(refs, models.FaceReference{StudentID: student.ID, Embedding: embedding})
	}
	return refs
}

// Get returns a session with its records.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceSessionDetail, error) {
	detail, err := s.sessions.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	return detail, nil
}

// ListByCourse returns a course's sessions, newest first.
func (s *AttendanceService) ListByCourse(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, error) {
	if _, err := s.courses.FindByID(ctx, filter.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// UpsertRecord applies a manual correction for one student in a session.
// LATE and EXCUSED are only reachable through this path.
func (s *AttendanceService) UpsertRecord(ctx context.Context, sessionID, studentID string, req UpsertRecordRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}
	detail, err := s.sessions.FindDetailByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}

	rosterStudents, err := s.courses.Roster(ctx, detail.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}
	if !rosterContains(rosterStudents, studentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this course")
	}

	record := &models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: studentID,
		Status:    models.AttendanceStatus(strings.ToUpper(req.Status)),
		Emotion:   req.Emotion,
		Note:      req.Note,
	}
	stored, err := s.sessions.UpsertRecord(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert attendance record")
	}
	return stored, nil
}

// Delete removes a session, its records, and its stored photo.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	detail, err := s.sessions.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance session")
	}
	if detail.PhotoURL != nil {
		if err := s.photos.Delete(sessionPhotoFilename(id)); err != nil {
			s.logger.Warn("failed to remove session photo", zap.String("session_id", id), zap.Error(err))
		}
	}
	return nil
}

// Export renders a session's attendance sheet as CSV or PDF.
func (s *AttendanceService) Export(ctx context.Context, id, format string) ([]byte, string, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	rows, err := s.sessions.RecordRows(ctx, id)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	dataset := export.Dataset{
		Headers: []string{"Student Number", "Student Name", "Status", "Emotion", "Note"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student Number": row.StudentNumber,
			"Student Name":   row.StudentName,
			"Status":         string(row.Status),
			"Emotion":        derefString(row.Emotion),
			"Note":           derefString(row.Note),
		})
	}

	base := fmt.Sprintf("attendance_%s_%s_lesson%d", detail.CourseID, detail.Date.Format("2006-01-02"), detail.LessonNumber)
	switch strings.ToLower(format) {
	case "pdf":
		title := fmt.Sprintf("Attendance %s lesson %d", detail.Date.Format("2006-01-02"), detail.LessonNumber)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, base + ".pdf", "application/pdf", nil
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, base + ".csv", "text/csv", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
}

func (s *AttendanceService) loadRoster(ctx context.Context, courseID string) ([]models.Student, error) {
	if s.roster != nil {
		if cached, err := s.roster.Get(ctx, courseID); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("roster cache lookup failed", zap.String("course_id", courseID), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	students, err := s.courses.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}
	if s.roster != nil {
		if err := s.roster.Set(ctx, courseID, students); err != nil {
			s.logger.Warn("roster cache write failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return students, nil
}

func (s *AttendanceService) storeSessionPhoto(sessionID string, photo []byte) *string {
	filename := sessionPhotoFilename(sessionID)
	if _, err := s.photos.Save(filename, photo); err != nil {
		// The photo is evidence, not input; attendance proceeds without it.
		s.logger.Warn("failed to store session photo", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	url := "/static/faces/" + filename
	return &url
}

func (s *AttendanceService) discardSessionPhoto(sessionID string, photoURL *string) {
	if photoURL == nil {
		return
	}
	if err := s.photos.Delete(sessionPhotoFilename(sessionID)); err != nil {
		s.logger.Warn("failed to discard session photo", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func sessionPhotoFilename(sessionID string) string {
	return "attendance_" + sessionID + ".jpg"
}

func rosterContains(roster []models.Student, studentID string) bool {
	for _, student := range roster {
		if student.ID == studentID {
			return true
		}
	}
	return false
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
