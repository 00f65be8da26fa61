package enrollment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/user"
	inmemdb "github.com/digiwizhq/digiwiz/storage/database/inmem"
	testutil "github.com/digiwizhq/digiwiz/tests"
)

var ctx = context.Background()

type testEnv struct {
	repo    enrollment.Repository
	crsRepo course.Repository
	svc     *enrollment.Service

	teacher user.User
	other   user.User
	student user.User
	crs     course.Course
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := inmemdb.NewDB()
	env := &testEnv{
		repo:    inmemdb.NewEnrollmentRepository(db),
		crsRepo: inmemdb.NewCourseRepository(db),
	}
	env.svc = enrollment.NewService(db, env.repo, env.crsRepo)

	usrRepo := inmemdb.NewUserRepository(db)
	env.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teach@test.cd", "", user.TeacherRoles, true)
	env.other = testutil.CreateUser(t, usrRepo, "Other Teacher", "teach2", "teach2@test.cd", "", user.TeacherRoles, true)
	env.student = testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "", user.StudentRoles, true)
	env.crs = testutil.CreateCourse(t, env.crsRepo, "Algebra", "ALG101", env.teacher.ID, 1, course.StatusApproved)
	return env
}

func TestService_Enroll(t *testing.T) {
	env := setup(t)
	pendingCrs := testutil.CreateCourse(t, env.crsRepo, "Drafts", "DRF101", env.teacher.ID, 1, course.StatusPending)

	if _, err := env.svc.Enroll(ctx, env.teacher, env.crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Enroll() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}
	if _, err := env.svc.Enroll(ctx, env.student, 12345); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("Enroll() unknown course error = %v, want %v", err, course.ErrNotFound)
	}
	// unapproved courses are invisible to students
	if _, err := env.svc.Enroll(ctx, env.student, pendingCrs.ID); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("Enroll() pending course error = %v, want %v", err, course.ErrNotFound)
	}

	tc, err := env.svc.Enroll(ctx, env.student, env.crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if tc.Status != enrollment.StatusPending {
		t.Errorf("Enroll() status = %s, want %s", tc.Status, enrollment.StatusPending)
	}
	if tc.Date.IsZero() {
		t.Error("Enroll() date is zero")
	}

	// a second request piles up another pending row
	if _, err = env.svc.Enroll(ctx, env.student, env.crs.ID); err != nil {
		t.Fatalf("Enroll() twice failed: %v", err)
	}
	rows, err := env.repo.QueryTakenCoursesByStudent(ctx, env.student.ID)
	if err != nil {
		t.Fatalf("QueryTakenCoursesByStudent() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("enrollment rows = %d, want 2", len(rows))
	}
}

func TestService_Accept(t *testing.T) {
	env := setup(t)
	tc, err := env.svc.Enroll(ctx, env.student, env.crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if _, err = env.svc.Accept(ctx, env.student, tc.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Accept() as student error = %v, want %v", err, core.ErrPermissionDenied)
	}
	if _, err = env.svc.Accept(ctx, env.other, tc.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Accept() as non-owner error = %v, want %v", err, core.ErrPermissionDenied)
	}
	if _, err = env.svc.Accept(ctx, env.teacher, 12345); errors.Cause(err) != enrollment.ErrNotFound {
		t.Errorf("Accept() unknown request error = %v, want %v", err, enrollment.ErrNotFound)
	}

	accepted, err := env.svc.Accept(ctx, env.teacher, tc.ID)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}
	if accepted.Status != enrollment.StatusEnrolled {
		t.Errorf("Accept() status = %s, want %s", accepted.Status, enrollment.StatusEnrolled)
	}

	// accepting again leaves the row as is
	if err = env.repo.UpdateTakenCourseStatus(ctx, tc.ID, enrollment.StatusFinished); err != nil {
		t.Fatalf("UpdateTakenCourseStatus() failed: %v", err)
	}
	again, err := env.svc.Accept(ctx, env.teacher, tc.ID)
	if err != nil {
		t.Fatalf("Accept() non-pending failed: %v", err)
	}
	if again.Status != enrollment.StatusFinished {
		t.Errorf("Accept() non-pending status = %s, want %s", again.Status, enrollment.StatusFinished)
	}
}

func TestService_Reject(t *testing.T) {
	env := setup(t)
	tc, err := env.svc.Enroll(ctx, env.student, env.crs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if err = env.svc.Reject(ctx, env.other, tc.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Reject() as non-owner error = %v, want %v", err, core.ErrPermissionDenied)
	}

	if err = env.svc.Reject(ctx, env.teacher, tc.ID); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	// the row is gone; the student may request again
	if _, err = env.repo.GetTakenCourseByID(ctx, tc.ID); errors.Cause(err) != enrollment.ErrNotFound {
		t.Errorf("GetTakenCourseByID() after reject error = %v, want %v", err, enrollment.ErrNotFound)
	}
	if _, err = env.svc.Enroll(ctx, env.student, env.crs.ID); err != nil {
		t.Errorf("Enroll() after reject failed: %v", err)
	}
}

func TestService_Unenroll(t *testing.T) {
	env := setup(t)
	if _, err := env.svc.Enroll(ctx, env.student, env.crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if _, err := env.svc.Enroll(ctx, env.student, env.crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if err := env.svc.Unenroll(ctx, env.teacher, env.crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Unenroll() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}

	// every row for the course goes, whatever its state
	if err := env.svc.Unenroll(ctx, env.student, env.crs.ID); err != nil {
		t.Fatalf("Unenroll() failed: %v", err)
	}
	rows, err := env.repo.QueryTakenCoursesByStudent(ctx, env.student.ID)
	if err != nil {
		t.Fatalf("QueryTakenCoursesByStudent() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("enrollment rows = %d, want 0", len(rows))
	}
}

func TestService_Requests(t *testing.T) {
	env := setup(t)
	otherCrs := testutil.CreateCourse(t, env.crsRepo, "Geometry", "GEO101", env.other.ID, 1, course.StatusApproved)

	if _, err := env.svc.Enroll(ctx, env.student, env.crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	tc, err := env.svc.Enroll(ctx, env.student, otherCrs.ID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if _, err = env.svc.Requests(ctx, env.student); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Requests() as student error = %v, want %v", err, core.ErrPermissionDenied)
	}

	// owners only see requests for their own courses
	requests, err := env.svc.Requests(ctx, env.teacher)
	if err != nil {
		t.Fatalf("Requests() failed: %v", err)
	}
	if len(requests) != 1 || requests[0].CourseID != env.crs.ID {
		t.Errorf("Requests() = %+v, want 1 request for course %d", requests, env.crs.ID)
	}
	count, err := env.svc.PendingCount(ctx, env.teacher)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want 1", count)
	}

	// accepted requests drop out of the queue
	if _, err = env.svc.Accept(ctx, env.other, tc.ID); err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}
	count, err = env.svc.PendingCount(ctx, env.other)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("PendingCount() after accept = %d, want 0", count)
	}
}
