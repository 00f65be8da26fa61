package inmemdb

import (
	"context"
	"sort"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) query() []enrollment.TakenCourse {
	tcs := make([]enrollment.TakenCourse, 0, len(repo.db.takenCourses))
	for _, tc := range repo.db.takenCourses {
		tcs = append(tcs, *tc)
	}
	sort.Slice(tcs, func(i, j int) bool { return tcs[i].ID < tcs[j].ID })
	return tcs
}

func (repo *enrollmentRepository) CreateTakenCourse(ctx context.Context, tc enrollment.TakenCourse, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tc.ID = repo.db.nextPK()
	repo.db.takenCourses[tc.ID] = &tc
	return tc, nil
}

func (repo *enrollmentRepository) GetTakenCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tc, ok := repo.db.takenCourses[id]; ok {
		return *tc, nil
	}
	return enrollment.TakenCourse{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) GetTakenCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tc := range repo.query() {
		if tc.StudentID == studentID && tc.CourseID == courseID {
			return tc, nil
		}
	}
	return enrollment.TakenCourse{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryTakenCoursesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]enrollment.TakenCourse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tcs []enrollment.TakenCourse
	for _, tc := range repo.query() {
		if tc.StudentID == studentID {
			tcs = append(tcs, tc)
		}
	}
	return tcs, nil
}

func (repo *enrollmentRepository) QueryRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]enrollment.TakenCourse, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tcs []enrollment.TakenCourse
	for _, tc := range repo.query() {
		if tc.Status != enrollment.StatusPending {
			continue
		}
		if crs, ok := repo.db.courses[tc.CourseID]; ok && crs.OwnerID == ownerID {
			tcs = append(tcs, tc)
		}
	}
	return tcs, nil
}

func (repo *enrollmentRepository) CountRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) (int, error) {
	tcs, err := repo.QueryRequestsByOwner(ctx, ownerID)
	return len(tcs), err
}

func (repo *enrollmentRepository) UpdateTakenCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tc, ok := repo.db.takenCourses[id]
	if !ok {
		return enrollment.ErrNotFound
	}
	tc.Status = status
	return nil
}

func (repo *enrollmentRepository) SetStatusByStudentAndCourse(ctx context.Context, studentID, courseID int, status string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, tc := range repo.db.takenCourses {
		if tc.StudentID == studentID && tc.CourseID == courseID {
			tc.Status = status
		}
	}
	return nil
}

func (repo *enrollmentRepository) DeleteTakenCourse(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.takenCourses, id)
	return nil
}

func (repo *enrollmentRepository) DeleteByStudentAndCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, tc := range repo.db.takenCourses {
		if tc.StudentID == studentID && tc.CourseID == courseID {
			delete(repo.db.takenCourses, id)
		}
	}
	return nil
}
