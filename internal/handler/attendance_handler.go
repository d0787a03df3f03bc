package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/okulsight/attendance-api/internal/models"
	"github.com/okulsight/attendance-api/internal/service"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/response"
)

// AttendanceHandler exposes attendance session endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Take godoc
// @Summary Take attendance for a course from a classroom photo
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param courseId path string true "Course ID"
// @Param photo formData file true "Classroom photo"
// @Param lesson_number formData int false "Lesson number (default 1)"
// @Param date formData string false "Date (YYYY-MM-DD, default today)"
// @Success 201 {object} response.Envelope
// @Router /courses/{courseId}/attendance [post]
func (h *AttendanceHandler) Take(c *gin.Context) {
	photo, err := readPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.TakeAttendanceRequest{
		CourseID:     c.Param("courseId"),
		LessonNumber: 1,
		Photo:        photo,
	}
	if raw := c.PostForm("lesson_number"); raw != "" {
		lesson, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lesson_number must be an integer"))
			return
		}
		req.LessonNumber = lesson
	}
	if raw := c.PostForm("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD format"))
			return
		}
		req.Date = date
	}

	detail, err := h.attendance.Take(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// ListByCourse godoc
// @Summary List attendance sessions for a course
// @Tags Attendance
// @Produce json
// @Param courseId path string true "Course ID"
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/attendance [get]
func (h *AttendanceHandler) ListByCourse(c *gin.Context) {
	filter := models.SessionFilter{CourseID: c.Param("courseId")}
	if raw := c.Query("start_date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must use the YYYY-MM-DD format"))
			return
		}
		filter.DateFrom = &date
	}
	if raw := c.Query("end_date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must use the YYYY-MM-DD format"))
			return
		}
		filter.DateTo = &date
	}

	sessions, err := h.attendance.ListByCourse(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions)
}

// Get godoc
// @Summary Get an attendance session with its records
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	detail, err := h.attendance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// UpsertRecord godoc
// @Summary Manually correct one student's attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.UpsertRecordRequest true "Record payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/records/{studentId} [put]
func (h *AttendanceHandler) UpsertRecord(c *gin.Context) {
	var req service.UpsertRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.UpsertRecord(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Delete godoc
// @Summary Delete an attendance session and its records
// @Tags Attendance
// @Param id path string true "Session ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a session's attendance sheet
// @Tags Attendance
// @Produce text/csv
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} file
// @Router /attendance/{id}/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	payload, filename, contentType, err := h.attendance.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
