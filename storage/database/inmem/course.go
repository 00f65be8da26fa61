package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// Subjects

func (repo *courseRepository) CreateSubject(ctx context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub.ID = repo.db.nextPK()
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) UpdateSubject(ctx context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[sub.ID]; !ok {
		return course.Subject{}, course.ErrSubjectNotFound
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) GetSubjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.subjects[id]; ok {
		return *sub, nil
	}
	return course.Subject{}, course.ErrSubjectNotFound
}

func (repo *courseRepository) QueryAllSubjects(ctx context.Context, exec ...core.DBExecutor) ([]course.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]course.Subject, 0, len(repo.db.subjects))
	for _, sub := range repo.db.subjects {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	return subs, nil
}

// Courses

func (repo *courseRepository) queryCourses() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = repo.db.nextPK()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) SetCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrNotFound
	}
	crs.Status = status
	return nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.queryCourses() {
		if crs.Status != course.StatusApproved {
			continue
		}
		if filter.SubjectID != 0 && crs.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(crs.Title), s) &&
				!strings.Contains(strings.ToLower(crs.Code), s) &&
				!strings.Contains(strings.ToLower(crs.Description), s) {
				continue
			}
		}
		crs.EnrolledCount = repo.enrolledCount(crs.ID)
		courses = append(courses, crs)
	}
	return courses, nil
}

// enrolledCount must be called with the lock held.
func (repo *courseRepository) enrolledCount(courseID int) int {
	var cnt int
	for _, tc := range repo.db.takenCourses {
		if tc.CourseID == courseID && tc.Status != "pending" {
			cnt++
		}
	}
	return cnt
}

func (repo *courseRepository) QueryCoursesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.queryCourses() {
		if crs.OwnerID == ownerID {
			crs.EnrolledCount = repo.enrolledCount(crs.ID)
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.queryCourses() {
		if crs.Status == status {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) CountCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, crs := range repo.db.courses {
		if crs.Status == status {
			cnt++
		}
	}
	return cnt, nil
}

// Lessons

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	lsn.ID = repo.db.nextPK()
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.lessons, id)
	return nil
}

func (repo *courseRepository) QueryLessonsByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var lessons []course.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			lessons = append(lessons, *lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Number != lessons[j].Number {
			return lessons[i].Number < lessons[j].Number
		}
		return lessons[i].ID < lessons[j].ID
	})
	return lessons, nil
}

// Files

func (repo *courseRepository) CreateFile(ctx context.Context, f course.File, exec ...core.DBExecutor) (course.File, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f.ID = repo.db.nextPK()
	repo.db.files[f.ID] = &f
	return f, nil
}

func (repo *courseRepository) GetFileByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.files[id]; ok {
		return *f, nil
	}
	return course.File{}, course.ErrFileNotFound
}

func (repo *courseRepository) DeleteFile(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.files, id)
	return nil
}

func (repo *courseRepository) QueryFilesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var files []course.File
	for _, f := range repo.db.files {
		if f.CourseID == courseID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (repo *courseRepository) QueryFilesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]course.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var files []course.File
	for _, f := range repo.db.files {
		if f.OwnerID == ownerID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
