package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "teacher_id", "created_at", "updated_at"}).
		AddRow("c1", "MATH101", "Calculus", "t1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, code, name, teacher_id").
		WithArgs("c1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "MATH101", course.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT id, code, name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryRosterOrderedByStudentNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_number", "full_name", "department", "face_encoding", "face_photo_url", "created_at", "updated_at"}).
		AddRow("s1", "1001", "Student One", "Math", "[0.1]", "/static/faces/s1.jpg", time.Now(), time.Now()).
		AddRow("s2", "1002", "Student Two", "Math", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("JOIN course_students cs ON cs.student_id = s.id").
		WithArgs("c1").
		WillReturnRows(rows)

	students, err := repo.Roster(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "1001", students[0].StudentNumber)
	assert.True(t, students[0].HasFaceReference())
	assert.False(t, students[1].HasFaceReference())
	assert.NoError(t, mock.ExpectationsWereMet())
}
