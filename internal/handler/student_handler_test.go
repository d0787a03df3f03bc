package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/okulsight/attendance-api/internal/models"
	"github.com/okulsight/attendance-api/internal/service"
	"github.com/okulsight/attendance-api/pkg/response"
	"github.com/okulsight/attendance-api/pkg/vision"
)

type studentRepoStub struct {
	students map[string]models.Student
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) SetFaceReference(ctx context.Context, id string, encoding string, photoURL string) error {
	student, ok := s.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	student.FaceEncoding = &encoding
	student.FacePhotoURL = &photoURL
	s.students[id] = student
	return nil
}

func (s *studentRepoStub) ClearFaceReference(ctx context.Context, id string) error {
	if _, ok := s.students[id]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

type extractorStub struct {
	detections []vision.FaceDetection
}

func (s *extractorStub) DetectFaces(ctx context.Context, image []byte) ([]vision.FaceDetection, error) {
	return s.detections, nil
}

type photoStoreStub struct{}

func (photoStoreStub) Save(filename string, data []byte) (string, error) { return filename, nil }
func (photoStoreStub) Delete(filename string) error                     { return nil }

func photoForm(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("photo", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newEnrollmentHandler(students map[string]models.Student, detections []vision.FaceDetection) *StudentHandler {
	svc := service.NewFaceEnrollmentService(
		&studentRepoStub{students: students},
		&extractorStub{detections: detections},
		photoStoreStub{},
		nil,
		0,
		zap.NewNop(),
	)
	return NewStudentHandler(svc)
}

func TestStudentHandlerRegisterFace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(
		map[string]models.Student{"st1": {ID: "st1", StudentNumber: "1001"}},
		[]vision.FaceDetection{{Embedding: []float64{0.1, 0.2}}},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := photoForm(t, []byte("jpeg bytes"))
	req, _ := http.NewRequest(http.MethodPost, "/students/st1/face", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "st1"}}

	handler.RegisterFace(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
	require.NotNil(t, envelope.Data)
}

func TestStudentHandlerRegisterFaceMissingPhoto(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]models.Student{"st1": {ID: "st1"}}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students/st1/face", bytes.NewReader(nil))
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "st1"}}

	handler.RegisterFace(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerRegisterFaceNoFaceDetected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]models.Student{"st1": {ID: "st1"}}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := photoForm(t, []byte("jpeg bytes"))
	req, _ := http.NewRequest(http.MethodPost, "/students/st1/face", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "st1"}}

	handler.RegisterFace(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NO_FACE_DETECTED", envelope.Error.Code)
}

func TestStudentHandlerRegisterFaceUnknownStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]models.Student{}, []vision.FaceDetection{{Embedding: []float64{0.1}}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := photoForm(t, []byte("jpeg bytes"))
	req, _ := http.NewRequest(http.MethodPost, "/students/missing/face", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.RegisterFace(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerRemoveFace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(map[string]models.Student{"st1": {ID: "st1"}}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/students/st1/face", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "st1"}}

	handler.RemoveFace(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
}
