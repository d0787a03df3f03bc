package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	Department    string    `db:"department" json:"department"`
	FaceEncoding  *string   `db:"face_encoding" json:"-"`
	FacePhotoURL  *string   `db:"face_photo_url" json:"face_photo_url,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// HasFaceReference reports whether a reference embedding is enrolled.
func (s *Student) HasFaceReference() bool {
	return s.FaceEncoding != nil && *s.FaceEncoding != ""
}

// FaceReference pairs a student with the decoded reference embedding
// used by the matcher. Roster iteration order is preserved.
type FaceReference struct {
	StudentID string
	Embedding Embedding
}
