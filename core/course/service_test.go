package course_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/user"
	logsvc "github.com/digiwizhq/digiwiz/services/logger"
	inmemdb "github.com/digiwizhq/digiwiz/storage/database/inmem"
	testutil "github.com/digiwizhq/digiwiz/tests"
)

var ctx = context.Background()

type testEnv struct {
	repo course.Repository
	svc  *course.Service

	teacher user.User
	student user.User
	admin   user.User
	subject course.Subject
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := inmemdb.NewDB()
	env := &testEnv{repo: inmemdb.NewCourseRepository(db)}
	env.svc = course.NewService(db, env.repo, logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags)))

	usrRepo := inmemdb.NewUserRepository(db)
	env.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teach@test.cd", "", user.TeacherRoles, true)
	env.student = testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "", user.StudentRoles, true)
	env.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", user.AdminRoles, true)

	sub, err := env.repo.CreateSubject(ctx, course.Subject{Name: "Math", Color: "#007bff"})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	env.subject = sub
	return env
}

func TestService_Create(t *testing.T) {
	env := setup(t)

	nc := course.NewCourse{
		Title:       "  algebra FOR beginners ",
		Code:        " alg101 ",
		Description: "numbers and letters",
		SubjectID:   env.subject.ID,
	}
	if _, err := env.svc.Create(ctx, env.student, nc); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Create() as student error = %v, want %v", err, core.ErrPermissionDenied)
	}

	badSubject := nc
	badSubject.SubjectID = 12345
	if _, err := env.svc.Create(ctx, env.teacher, badSubject); errors.Cause(err) != course.ErrSubjectNotFound {
		t.Errorf("Create() unknown subject error = %v, want %v", err, course.ErrSubjectNotFound)
	}

	crs, err := env.svc.Create(ctx, env.teacher, nc)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if crs.Title != "Algebra For Beginners" {
		t.Errorf("Create() title = %q, want %q", crs.Title, "Algebra For Beginners")
	}
	if crs.Code != "ALG101" {
		t.Errorf("Create() code = %q, want %q", crs.Code, "ALG101")
	}
	if crs.Description != "Numbers and letters" {
		t.Errorf("Create() description = %q, want %q", crs.Description, "Numbers and letters")
	}
	// new courses land in the moderation queue
	if crs.Status != course.StatusPending {
		t.Errorf("Create() status = %s, want %s", crs.Status, course.StatusPending)
	}
	if crs.OwnerID != env.teacher.ID {
		t.Errorf("Create() owner = %d, want %d", crs.OwnerID, env.teacher.ID)
	}
}

func TestService_Update_resetsModeration(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.repo, "Algebra", "ALG101", env.teacher.ID, env.subject.ID, course.StatusApproved)

	nc := course.NewCourse{
		Title:       "algebra II",
		Code:        "ALG201",
		Description: "more letters",
		SubjectID:   env.subject.ID,
	}
	updated, err := env.svc.Update(ctx, env.teacher, crs.ID, nc)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Title != "Algebra Ii" {
		t.Errorf("Update() title = %q, want %q", updated.Title, "Algebra Ii")
	}
	// edits go back through moderation
	if updated.Status != course.StatusPending {
		t.Errorf("Update() status = %s, want %s", updated.Status, course.StatusPending)
	}
}

func TestService_Moderation(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.repo, "Algebra", "ALG101", env.teacher.ID, env.subject.ID, course.StatusPending)

	if err := env.svc.Approve(ctx, env.teacher, crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Approve() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}

	pending, err := env.svc.QueryPending(ctx, env.admin)
	if err != nil {
		t.Fatalf("QueryPending() failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("QueryPending() len = %d, want 1", len(pending))
	}
	count, err := env.svc.PendingCount(ctx, env.admin)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want 1", count)
	}

	if err = env.svc.Approve(ctx, env.admin, crs.ID); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	got, err := env.svc.Get(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != course.StatusApproved {
		t.Errorf("status after approve = %s, want %s", got.Status, course.StatusApproved)
	}

	other := testutil.CreateCourse(t, env.repo, "Geometry", "GEO101", env.teacher.ID, env.subject.ID, course.StatusPending)
	if err = env.svc.Reject(ctx, env.admin, other.ID); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	got, err = env.svc.Get(ctx, other.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != course.StatusRejected {
		t.Errorf("status after reject = %s, want %s", got.Status, course.StatusRejected)
	}
}

func TestService_Browse(t *testing.T) {
	env := setup(t)
	testutil.CreateCourse(t, env.repo, "Algebra", "ALG101", env.teacher.ID, env.subject.ID, course.StatusApproved)
	testutil.CreateCourse(t, env.repo, "Drafts", "DRF101", env.teacher.ID, env.subject.ID, course.StatusPending)

	courses, err := env.svc.Browse(ctx, course.QueryFilter{})
	if err != nil {
		t.Fatalf("Browse() failed: %v", err)
	}
	// only approved courses show in the catalog
	if len(courses) != 1 || courses[0].Title != "Algebra" {
		t.Errorf("Browse() = %+v, want only Algebra", courses)
	}

	courses, err = env.svc.Browse(ctx, course.QueryFilter{Search: "alg"})
	if err != nil {
		t.Fatalf("Browse() failed: %v", err)
	}
	if len(courses) != 1 {
		t.Errorf("Browse(search) len = %d, want 1", len(courses))
	}
	courses, err = env.svc.Browse(ctx, course.QueryFilter{Search: "nope"})
	if err != nil {
		t.Fatalf("Browse() failed: %v", err)
	}
	if len(courses) != 0 {
		t.Errorf("Browse(miss) len = %d, want 0", len(courses))
	}
}

func TestService_GetDetail_visibility(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.repo, "Algebra", "ALG101", env.teacher.ID, env.subject.ID, course.StatusPending)
	if _, err := env.repo.CreateLesson(ctx, course.Lesson{CourseID: crs.ID, Title: "Intro", Number: 1}); err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}

	// pending courses are hidden from everyone but the owner and staff
	if _, err := env.svc.GetDetail(ctx, env.student, crs.ID); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("GetDetail() as student error = %v, want %v", err, course.ErrNotFound)
	}
	detail, err := env.svc.GetDetail(ctx, env.teacher, crs.ID)
	if err != nil {
		t.Fatalf("GetDetail() as owner failed: %v", err)
	}
	if len(detail.Lessons) != 1 {
		t.Errorf("GetDetail() lessons = %d, want 1", len(detail.Lessons))
	}
	if _, err = env.svc.GetDetail(ctx, env.admin, crs.ID); err != nil {
		t.Errorf("GetDetail() as admin failed: %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.repo, "Algebra", "ALG101", env.teacher.ID, env.subject.ID, course.StatusApproved)

	if err := env.svc.Delete(ctx, env.student, crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Delete() as student error = %v, want %v", err, core.ErrPermissionDenied)
	}
	if err := env.svc.Delete(ctx, env.teacher, crs.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	// soft-deleted: the row survives but drops out of owner listings
	got, err := env.svc.Get(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != course.StatusDeleted {
		t.Errorf("status after delete = %s, want %s", got.Status, course.StatusDeleted)
	}
	owned, err := env.svc.QueryOwned(ctx, env.teacher)
	if err != nil {
		t.Fatalf("QueryOwned() failed: %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("QueryOwned() len = %d, want 0", len(owned))
	}
}
