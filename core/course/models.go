package course

import (
	"strings"
	"time"

	"github.com/digiwizhq/digiwiz/core"
)

// Course statuses. New and re-edited courses go back to the
// moderation queue as StatusPending; staff move them to approved
// or rejected. Deletion is a soft status so enrollments survive.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusDeleted  = "deleted"
)

type Subject struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Course struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Status      string    `json:"status"`
	OwnerID     int       `json:"owner_id"`
	SubjectID   int       `json:"subject_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// EnrolledCount is only populated by queries that annotate it.
	EnrolledCount int `json:"enrolled_count,omitempty"`
}

type Lesson struct {
	ID          int    `json:"id"`
	CourseID    int    `json:"course_id"`
	Title       string `json:"title"`
	Number      int    `json:"number"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// File is uploaded course-resource metadata; the binary itself lives
// in the file store under StoredName.
type File struct {
	ID         int       `json:"id"`
	CourseID   int       `json:"course_id"`
	OwnerID    int       `json:"owner_id"`
	Name       string    `json:"name"`
	StoredName string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,max=255"`
	Code        string `json:"code" validate:"required,max=20"`
	Description string `json:"description" validate:"required"`
	Image       string `json:"image"`
	SubjectID   int    `json:"subject_id" validate:"required"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.TitleCase(core.CleanString(nc.Title))
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Description = core.Capitalize(core.CleanString(nc.Description))
	return core.Validate.Struct(nc)
}

// NewLesson contains information needed to create or update a Lesson.
type NewLesson struct {
	Title       string `json:"title" validate:"required,max=50"`
	Number      int    `json:"number" validate:"required,min=1"`
	Description string `json:"description" validate:"required"`
	Content     string `json:"content" validate:"required"`
}

func (nl *NewLesson) Validate() error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.Capitalize(core.CleanString(nl.Description))
	nl.Content = core.Capitalize(core.CleanString(nl.Content))
	return core.Validate.Struct(nl)
}

// NewSubject contains information needed to create or update a Subject.
type NewSubject struct {
	Name  string `json:"name" validate:"required,max=30"`
	Color string `json:"color" validate:"omitempty,hexcolor_"`
}

func (ns *NewSubject) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	if ns.Color == "" {
		ns.Color = "#007bff"
	}
	return core.Validate.Struct(ns)
}

type QueryFilter struct {
	Search    string `query:"search"`
	SubjectID int    `query:"subject"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
