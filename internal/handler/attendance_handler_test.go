package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attendanceForm(t *testing.T, fields map[string]string, withPhoto bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if withPhoto {
		part, err := writer.CreateFormFile("photo", "class.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg bytes"))
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestAttendanceHandlerTakeMissingPhoto(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := attendanceForm(t, nil, false)
	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/attendance", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "c1"}}

	handler.Take(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerTakeBadLessonNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := attendanceForm(t, map[string]string{"lesson_number": "three"}, true)
	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/attendance", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "c1"}}

	handler.Take(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerTakeBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, contentType := attendanceForm(t, map[string]string{"date": "02-03-2026"}, true)
	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/attendance", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "c1"}}

	handler.Take(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerListBadDateFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses/c1/attendance?start_date=bogus", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "c1"}}

	handler.ListByCourse(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerUpsertRecordInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/attendance/sess1/records/s1", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sess1"}, {Key: "studentId", Value: "s1"}}

	handler.UpsertRecord(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
