package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okulsight/attendance-api/internal/service"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/response"
)

// StudentHandler exposes face enrollment endpoints.
type StudentHandler struct {
	enrollment *service.FaceEnrollmentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(enrollment *service.FaceEnrollmentService) *StudentHandler {
	return &StudentHandler{enrollment: enrollment}
}

// RegisterFace godoc
// @Summary Enroll a student's face reference
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param photo formData file true "Enrollment photo containing exactly one face"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/face [post]
func (h *StudentHandler) RegisterFace(c *gin.Context) {
	photo, err := readPhoto(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	student, err := h.enrollment.RegisterFace(c.Request.Context(), c.Param("id"), photo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// RemoveFace godoc
// @Summary Remove a student's face reference
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id}/face [delete]
func (h *StudentHandler) RemoveFace(c *gin.Context) {
	if err := h.enrollment.RemoveFace(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func readPhoto(c *gin.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open uploaded photo")
	}
	defer file.Close() //nolint:errcheck

	photo, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded photo")
	}
	if len(photo) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded photo is empty")
	}
	return photo, nil
}
