package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/enrollment"
)

type enrollmentRepository struct {
	exec core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{exec: exec}
}

type takenCourseRow struct {
	ID        int       `db:"id"`
	StudentID int       `db:"student_id"`
	CourseID  int       `db:"course_id"`
	Status    string    `db:"status"`
	Date      time.Time `db:"date"`
}

func (r takenCourseRow) takenCourse() enrollment.TakenCourse {
	return enrollment.TakenCourse{
		ID:        r.ID,
		StudentID: r.StudentID,
		CourseID:  r.CourseID,
		Status:    r.Status,
		Date:      r.Date,
	}
}

func takenCourses(rows []takenCourseRow) []enrollment.TakenCourse {
	tcs := make([]enrollment.TakenCourse, 0, len(rows))
	for _, r := range rows {
		tcs = append(tcs, r.takenCourse())
	}
	return tcs
}

const takenCourseCols = `id, student_id, course_id, status, date`

func (repo enrollmentRepository) CreateTakenCourse(ctx context.Context, tc enrollment.TakenCourse, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	q := `INSERT INTO taken_course (student_id, course_id, status, date) VALUES ($1, $2, $3, $4) RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(ctx, &row, q, tc.StudentID, tc.CourseID, tc.Status, tc.Date.UTC())
	if err != nil {
		return enrollment.TakenCourse{}, errors.Wrap(err, "inserting taken course")
	}
	tc.ID = row.ID
	return tc, nil
}

func (repo enrollmentRepository) GetTakenCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	var row takenCourseRow
	q := `SELECT ` + takenCourseCols + ` FROM taken_course WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return enrollment.TakenCourse{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding taken course")
	}
	return row.takenCourse(), nil
}

func (repo enrollmentRepository) GetTakenCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (enrollment.TakenCourse, error) {
	var row takenCourseRow
	q := `SELECT ` + takenCourseCols + ` FROM taken_course WHERE student_id = $1 AND course_id = $2 ORDER BY id LIMIT 1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, studentID, courseID); err != nil {
		return enrollment.TakenCourse{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding taken course")
	}
	return row.takenCourse(), nil
}

func (repo enrollmentRepository) QueryTakenCoursesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]enrollment.TakenCourse, error) {
	var rows []takenCourseRow
	q := `SELECT ` + takenCourseCols + ` FROM taken_course WHERE student_id = $1 ORDER BY date DESC`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying taken courses")
	}
	return takenCourses(rows), nil
}

func (repo enrollmentRepository) QueryRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]enrollment.TakenCourse, error) {
	var rows []takenCourseRow
	q := `
SELECT tc.id, tc.student_id, tc.course_id, tc.status, tc.date
FROM taken_course tc
         JOIN course c ON c.id = tc.course_id
WHERE c.owner_id = $1
  AND tc.status = 'pending'
ORDER BY tc.date`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying enrollment requests")
	}
	return takenCourses(rows), nil
}

func (repo enrollmentRepository) CountRequestsByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `
SELECT COUNT(*)
FROM taken_course tc
         JOIN course c ON c.id = tc.course_id
WHERE c.owner_id = $1
  AND tc.status = 'pending'`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, ownerID); err != nil {
		return 0, errors.Wrap(err, "counting enrollment requests")
	}
	return cnt, nil
}

func (repo enrollmentRepository) UpdateTakenCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error {
	q := `UPDATE taken_course SET status = $1 WHERE id = $2`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, status, id); err != nil {
		return errors.Wrap(err, "updating taken course status")
	}
	return nil
}

func (repo enrollmentRepository) SetStatusByStudentAndCourse(ctx context.Context, studentID, courseID int, status string, exec ...core.DBExecutor) error {
	q := `UPDATE taken_course SET status = $1 WHERE student_id = $2 AND course_id = $3`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, status, studentID, courseID); err != nil {
		return errors.Wrap(err, "setting taken course status")
	}
	return nil
}

func (repo enrollmentRepository) DeleteTakenCourse(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM taken_course WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting taken course")
	}
	return nil
}

func (repo enrollmentRepository) DeleteByStudentAndCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) error {
	q := `DELETE FROM taken_course WHERE student_id = $1 AND course_id = $2`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, studentID, courseID); err != nil {
		return errors.Wrap(err, "deleting taken courses")
	}
	return nil
}
