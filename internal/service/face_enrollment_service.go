package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/vision"
)

type faceExtractor interface {
	DetectFaces(ctx context.Context, image []byte) ([]vision.FaceDetection, error)
}

type studentFaceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetFaceReference(ctx context.Context, id string, encoding string, photoURL string) error
	ClearFaceReference(ctx context.Context, id string) error
}

type photoStore interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

type rosterInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// FaceEnrollmentService validates enrollment photos and maintains each
// student's canonical face reference. Enrollment is atomic from the
// caller's perspective: a failed step leaves no photo and no reference.
type FaceEnrollmentService struct {
	students  studentFaceRepository
	extractor faceExtractor
	photos    photoStore
	rosters   rosterInvalidator
	dimension int
	logger    *zap.Logger
}

// NewFaceEnrollmentService constructs the service. dimension is the embedding
// length produced by the extractor; zero disables the length check.
func NewFaceEnrollmentService(students studentFaceRepository, extractor faceExtractor, photos photoStore, rosters rosterInvalidator, dimension int, logger *zap.Logger) *FaceEnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FaceEnrollmentService{
		students:  students,
		extractor: extractor,
		photos:    photos,
		rosters:   rosters,
		dimension: dimension,
		logger:    logger,
	}
}

// RegisterFace enrolls the face in the photo as the student's reference.
// The photo must contain exactly one face; re-enrollment overwrites the
// previous reference and photo.
func (s *FaceEnrollmentService) RegisterFace(ctx context.Context, studentID string, image []byte) (*models.Student, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	detections, err := s.extractor.DetectFaces(ctx, image)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRecognitionUnavailable.Code, appErrors.ErrRecognitionUnavailable.Status, appErrors.ErrRecognitionUnavailable.Message)
	}
	switch {
	case len(detections) == 0:
		return nil, appErrors.ErrNoFaceDetected
	case len(detections) > 1:
		return nil, appErrors.ErrMultipleFacesDetected
	}

	embedding := models.Embedding(detections[0].Embedding)
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("extractor returned a %d-value embedding, expected %d", len(embedding), s.dimension))
	}
	encoded, err := models.EncodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	filename := facePhotoFilename(studentID)
	if _, err := s.photos.Save(filename, image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store enrollment photo")
	}

	photoURL := "/static/faces/" + filename
	if err := s.students.SetFaceReference(ctx, studentID, *encoded, photoURL); err != nil {
		// No orphan photo when the reference write fails.
		if cleanupErr := s.photos.Delete(filename); cleanupErr != nil {
			s.logger.Warn("failed to remove enrollment photo after rollback",
				zap.String("student_id", studentID), zap.Error(cleanupErr))
		}
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store face reference")
	}

	s.invalidateRosters(ctx, studentID)

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload student")
	}
	return student, nil
}

// RemoveFace clears the student's reference embedding and stored photo.
func (s *FaceEnrollmentService) RemoveFace(ctx context.Context, studentID string) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.students.ClearFaceReference(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear face reference")
	}

	if err := s.photos.Delete(facePhotoFilename(studentID)); err != nil {
		s.logger.Warn("failed to remove enrollment photo", zap.String("student_id", studentID), zap.Error(err))
	}

	s.invalidateRosters(ctx, studentID)
	return nil
}

func (s *FaceEnrollmentService) invalidateRosters(ctx context.Context, studentID string) {
	if s.rosters == nil {
		return
	}
	if err := s.rosters.InvalidateAll(ctx); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func facePhotoFilename(studentID string) string {
	return studentID + ".jpg"
}
