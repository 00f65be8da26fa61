package enrollment

import "time"

// TakenCourse statuses. A rejected request or an unenrollment removes
// the row instead of flagging it; finished is set by the quiz flow once
// every quiz in the course has been taken.
const (
	StatusPending  = "pending"
	StatusEnrolled = "enrolled"
	StatusFinished = "finished"
)

// TakenCourse represents a student's enrollment state in a course.
type TakenCourse struct {
	ID        int       `json:"id"`
	StudentID int       `json:"student_id"`
	CourseID  int       `json:"course_id"`
	Status    string    `json:"status"`
	Date      time.Time `json:"date"` // UTC
}
