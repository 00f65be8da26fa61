package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/user"
)

var ErrNotFound = errors.New("enrollment not found")

type (
	Repository interface {
		CreateTakenCourse(ctx context.Context, tc TakenCourse, exec ...core.DBExecutor) (TakenCourse, error)
		GetTakenCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (TakenCourse, error)
		// GetTakenCourse returns the student's first TakenCourse row for the course.
		GetTakenCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (TakenCourse, error)
		QueryTakenCoursesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]TakenCourse, error)
		// QueryRequestsByOwner returns pending rows for courses owned by ownerID.
		QueryRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]TakenCourse, error)
		CountRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) (int, error)
		UpdateTakenCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error
		// SetStatusByStudentAndCourse updates every row for (student, course);
		// it is a no-op when none exist.
		SetStatusByStudentAndCourse(ctx context.Context, studentID, courseID int, status string, exec ...core.DBExecutor) error
		DeleteTakenCourse(ctx context.Context, id int, exec ...core.DBExecutor) error
		DeleteByStudentAndCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) error
	}

	Service struct {
		db         core.DB
		repo       Repository
		courseRepo course.Repository
	}
)

func NewService(db core.DB, repo Repository, courseRepo course.Repository) *Service {
	return &Service{db: db, repo: repo, courseRepo: courseRepo}
}

// Enroll files an enrollment request for actor; the teacher in charge
// accepts or rejects it later.
//
// A student who requests twice gets two pending rows; there is no
// uniqueness rule on (student, course).
func (svc *Service) Enroll(ctx context.Context, actor user.User, courseID int) (TakenCourse, error) {
	if !actor.IsStudent() {
		return TakenCourse{}, core.ErrPermissionDenied
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return TakenCourse{}, err
	}
	if crs.Status != course.StatusApproved {
		return TakenCourse{}, course.ErrNotFound
	}
	tc := TakenCourse{
		StudentID: actor.ID,
		CourseID:  courseID,
		Status:    StatusPending,
		Date:      time.Now().UTC(),
	}
	return svc.repo.CreateTakenCourse(ctx, tc)
}

// Accept moves a pending request to enrolled. Only the owner of the
// course may accept; accepting a non-pending row leaves it unchanged.
func (svc *Service) Accept(ctx context.Context, actor user.User, takenCourseID int) (TakenCourse, error) {
	tc, err := svc.getOwnedRequest(ctx, actor, takenCourseID)
	if err != nil {
		return TakenCourse{}, err
	}
	if tc.Status != StatusPending {
		return tc, nil
	}
	if err = svc.repo.UpdateTakenCourseStatus(ctx, tc.ID, StatusEnrolled); err != nil {
		return TakenCourse{}, err
	}
	tc.Status = StatusEnrolled
	return tc, nil
}

// Reject removes a pending request entirely; the student may re-request.
func (svc *Service) Reject(ctx context.Context, actor user.User, takenCourseID int) error {
	tc, err := svc.getOwnedRequest(ctx, actor, takenCourseID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteTakenCourse(ctx, tc.ID)
}

// Unenroll removes the actor's enrollment rows for a course, whatever
// their state.
func (svc *Service) Unenroll(ctx context.Context, actor user.User, courseID int) error {
	if !actor.IsStudent() {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteByStudentAndCourse(ctx, actor.ID, courseID)
}

// Get returns the actor's enrollment state for a course.
func (svc *Service) Get(ctx context.Context, actor user.User, courseID int) (TakenCourse, error) {
	if !actor.IsStudent() {
		return TakenCourse{}, core.ErrPermissionDenied
	}
	return svc.repo.GetTakenCourse(ctx, actor.ID, courseID)
}

// MyCourses lists the actor's enrollments.
func (svc *Service) MyCourses(ctx context.Context, actor user.User) ([]TakenCourse, error) {
	if !actor.IsStudent() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryTakenCoursesByStudent(ctx, actor.ID)
}

// Requests lists pending enrollment requests for the actor's courses.
func (svc *Service) Requests(ctx context.Context, actor user.User) ([]TakenCourse, error) {
	if !actor.IsTeacher() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryRequestsByOwner(ctx, actor.ID)
}

// PendingCount powers the teacher navbar badge.
func (svc *Service) PendingCount(ctx context.Context, actor user.User) (int, error) {
	if !actor.IsTeacher() {
		return 0, core.ErrPermissionDenied
	}
	return svc.repo.CountRequestsByOwner(ctx, actor.ID)
}

func (svc *Service) getOwnedRequest(ctx context.Context, actor user.User, takenCourseID int) (TakenCourse, error) {
	if !actor.IsTeacher() {
		return TakenCourse{}, core.ErrPermissionDenied
	}
	tc, err := svc.repo.GetTakenCourseByID(ctx, takenCourseID)
	if err != nil {
		return TakenCourse{}, err
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, tc.CourseID)
	if err != nil {
		return TakenCourse{}, err
	}
	if crs.OwnerID != actor.ID {
		return TakenCourse{}, core.ErrPermissionDenied
	}
	return tc, nil
}
