package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrFileNotFound    = errors.New("file not found")
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (Subject, error)
		QueryAllSubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)

		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		SetCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error
		// FilterCourses returns approved courses annotated with their enrolled
		// count; Search matches title, code or description case-insensitively.
		FilterCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		QueryCoursesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]Course, error)
		QueryCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) ([]Course, error)
		CountCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) (int, error)

		CreateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		GetLessonByID(ctx context.Context, id int, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		DeleteLesson(ctx context.Context, id int, exec ...core.DBExecutor) error
		// QueryLessonsByCourse returns lessons ordered by their number.
		QueryLessonsByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Lesson, error)

		CreateFile(ctx context.Context, f File, exec ...core.DBExecutor) (File, error)
		GetFileByID(ctx context.Context, id int, exec ...core.DBExecutor) (File, error)
		DeleteFile(ctx context.Context, id int, exec ...core.DBExecutor) error
		QueryFilesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]File, error)
		QueryFilesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]File, error)
	}

	Service struct {
		db   core.DB
		repo Repository
		log  core.Logger
	}

	// Detail bundles everything the course page needs.
	Detail struct {
		Course  Course   `json:"course"`
		Lessons []Lesson `json:"lessons"`
		Files   []File   `json:"files"`
	}
)

func NewService(db core.DB, repo Repository, log core.Logger) *Service {
	return &Service{db: db, repo: repo, log: log}
}

// Create creates a course owned by actor; it lands in the staff
// moderation queue as pending.
func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if !actor.IsTeacher() {
		return Course{}, core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetSubjectByID(ctx, nc.SubjectID); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	crs := Course{
		Title:       nc.Title,
		Code:        nc.Code,
		Description: nc.Description,
		Image:       nc.Image,
		Status:      StatusPending,
		OwnerID:     actor.ID,
		SubjectID:   nc.SubjectID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

// Update edits an owned course; the edit resets it to pending for re-moderation.
func (svc *Service) Update(ctx context.Context, actor user.User, id int, nc NewCourse) (Course, error) {
	crs, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	crs.Title = nc.Title
	crs.Code = nc.Code
	crs.Description = nc.Description
	if nc.Image != "" {
		crs.Image = nc.Image
	}
	crs.SubjectID = nc.SubjectID
	crs.Status = StatusPending
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete soft-deletes an owned course.
func (svc *Service) Delete(ctx context.Context, actor user.User, id int) error {
	if _, err := svc.getOwned(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.SetCourseStatus(ctx, id, StatusDeleted)
}

// Approve moves a pending course to approved; staff only.
func (svc *Service) Approve(ctx context.Context, actor user.User, id int) error {
	return svc.moderate(ctx, actor, id, StatusApproved)
}

// Reject moves a pending course to rejected; staff only.
func (svc *Service) Reject(ctx context.Context, actor user.User, id int) error {
	return svc.moderate(ctx, actor, id, StatusRejected)
}

func (svc *Service) moderate(ctx context.Context, actor user.User, id int, status string) error {
	if !actor.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetCourseByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.SetCourseStatus(ctx, id, status)
}

// Browse lists approved courses, optionally filtered by search keyword and subject.
func (svc *Service) Browse(ctx context.Context, filter QueryFilter) ([]Course, error) {
	filter.Clean()
	return svc.repo.FilterCourses(ctx, filter)
}

// Get returns a single course regardless of status; callers decide visibility.
func (svc *Service) Get(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// GetDetail returns the course page payload: the course, its lessons in
// number order and its files. Non-approved courses are only visible to
// their owner and staff.
func (svc *Service) GetDetail(ctx context.Context, actor user.User, id int) (Detail, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if crs.Status != StatusApproved && crs.OwnerID != actor.ID && !actor.IsAdmin() {
		return Detail{}, ErrNotFound
	}
	lessons, err := svc.repo.QueryLessonsByCourse(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	files, err := svc.repo.QueryFilesByCourse(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Course: crs, Lessons: lessons, Files: files}, nil
}

// QueryOwned lists the actor's courses, excluding soft-deleted ones.
func (svc *Service) QueryOwned(ctx context.Context, actor user.User) ([]Course, error) {
	if !actor.IsTeacher() {
		return nil, core.ErrPermissionDenied
	}
	courses, err := svc.repo.QueryCoursesByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	kept := make([]Course, 0, len(courses))
	for _, crs := range courses {
		if crs.Status != StatusDeleted {
			kept = append(kept, crs)
		}
	}
	return kept, nil
}

// QueryPending lists courses awaiting moderation; staff only.
func (svc *Service) QueryPending(ctx context.Context, actor user.User) ([]Course, error) {
	if !actor.IsAdmin() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryCoursesByStatus(ctx, StatusPending)
}

// PendingCount powers the staff navbar badge.
func (svc *Service) PendingCount(ctx context.Context, actor user.User) (int, error) {
	if !actor.IsAdmin() {
		return 0, core.ErrPermissionDenied
	}
	return svc.repo.CountCoursesByStatus(ctx, StatusPending)
}

// Lessons

func (svc *Service) AddLesson(ctx context.Context, actor user.User, courseID int, nl NewLesson) (Lesson, error) {
	if _, err := svc.getOwned(ctx, actor, courseID); err != nil {
		return Lesson{}, err
	}
	lsn := Lesson{
		CourseID:    courseID,
		Title:       nl.Title,
		Number:      nl.Number,
		Description: nl.Description,
		Content:     nl.Content,
	}
	return svc.repo.CreateLesson(ctx, lsn)
}

func (svc *Service) UpdateLesson(ctx context.Context, actor user.User, lessonID int, nl NewLesson) (Lesson, error) {
	lsn, err := svc.repo.GetLessonByID(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	if _, err = svc.getOwned(ctx, actor, lsn.CourseID); err != nil {
		return Lesson{}, err
	}
	lsn.Title = nl.Title
	lsn.Number = nl.Number
	lsn.Description = nl.Description
	lsn.Content = nl.Content
	return svc.repo.UpdateLesson(ctx, lsn)
}

func (svc *Service) DeleteLesson(ctx context.Context, actor user.User, lessonID int) error {
	lsn, err := svc.repo.GetLessonByID(ctx, lessonID)
	if err != nil {
		return err
	}
	if _, err = svc.getOwned(ctx, actor, lsn.CourseID); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, lessonID)
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, actor user.User, ns NewSubject) (Subject, error) {
	if !actor.IsAdmin() {
		return Subject{}, core.ErrPermissionDenied
	}
	return svc.repo.CreateSubject(ctx, Subject{Name: ns.Name, Color: ns.Color})
}

func (svc *Service) UpdateSubject(ctx context.Context, actor user.User, id int, ns NewSubject) (Subject, error) {
	if !actor.IsAdmin() {
		return Subject{}, core.ErrPermissionDenied
	}
	sub, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	sub.Name = ns.Name
	sub.Color = ns.Color
	return svc.repo.UpdateSubject(ctx, sub)
}

func (svc *Service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QueryAllSubjects(ctx)
}

// Files

// AddFile records course-resource metadata; the binary is stored by the
// caller through the file store beforehand.
func (svc *Service) AddFile(ctx context.Context, actor user.User, courseID int, name, storedName string) (File, error) {
	if _, err := svc.getOwned(ctx, actor, courseID); err != nil {
		return File{}, err
	}
	f := File{
		CourseID:   courseID,
		OwnerID:    actor.ID,
		Name:       name,
		StoredName: storedName,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateFile(ctx, f)
}

// GetFile returns file metadata; download handlers resolve the stored
// binary through the file store.
func (svc *Service) GetFile(ctx context.Context, fileID int) (File, error) {
	return svc.repo.GetFileByID(ctx, fileID)
}

func (svc *Service) DeleteFile(ctx context.Context, actor user.User, fileID int) (File, error) {
	f, err := svc.repo.GetFileByID(ctx, fileID)
	if err != nil {
		return File{}, err
	}
	if f.OwnerID != actor.ID {
		return File{}, core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteFile(ctx, fileID); err != nil {
		return File{}, err
	}
	return f, nil
}

func (svc *Service) QueryOwnedFiles(ctx context.Context, actor user.User) ([]File, error) {
	if !actor.IsTeacher() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryFilesByOwner(ctx, actor.ID)
}

func (svc *Service) getOwned(ctx context.Context, actor user.User, courseID int) (Course, error) {
	if !actor.IsTeacher() {
		return Course{}, core.ErrPermissionDenied
	}
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if crs.OwnerID != actor.ID {
		return Course{}, core.ErrPermissionDenied
	}
	if crs.Status == StatusDeleted {
		return Course{}, ErrNotFound
	}
	return crs, nil
}
