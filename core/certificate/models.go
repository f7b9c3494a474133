package certificate

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Certificate struct {
	ID          string    `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	StudentID   string    `json:"student_id" db:"student_id"`
	CourseTitle string    `json:"course_title" db:"course_title"`
	IssuedBy    string    `json:"issued_by" db:"issued_by"`
	IssuedAt    time.Time `json:"issued_at" db:"issued_at"` // UTC
}

// NewCertificate contains information needed to issue a Certificate.
type NewCertificate struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	CourseTitle  string `json:"course_title" validate:"required,max=200"`
}

func (nc *NewCertificate) Validate(validate *validator.Validate) error {
	nc.StudentEmail = core.CleanString(nc.StudentEmail, true /* lower */)
	nc.CourseTitle = core.CleanString(nc.CourseTitle)
	return validate.Struct(nc)
}

// Verification is the public view of a Certificate.
type Verification struct {
	Code        string    `json:"code"`
	Valid       bool      `json:"valid"`
	StudentName string    `json:"student_name"`
	CourseTitle string    `json:"course_title"`
	IssuedAt    time.Time `json:"issued_at"`
}
