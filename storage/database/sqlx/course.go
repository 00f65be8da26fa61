package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
)

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

type courseRow struct {
	ID            int       `db:"id"`
	Title         string    `db:"title"`
	Code          string    `db:"code"`
	Description   string    `db:"description"`
	Image         string    `db:"image"`
	Status        string    `db:"status"`
	OwnerID       int       `db:"owner_id"`
	SubjectID     int       `db:"subject_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	EnrolledCount int       `db:"enrolled_count"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:            r.ID,
		Title:         r.Title,
		Code:          r.Code,
		Description:   r.Description,
		Image:         r.Image,
		Status:        r.Status,
		OwnerID:       r.OwnerID,
		SubjectID:     r.SubjectID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		EnrolledCount: r.EnrolledCount,
	}
}

func courses(rows []courseRow) []course.Course {
	crs := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		crs = append(crs, r.course())
	}
	return crs
}

const courseCols = `id, title, code, description, image, status, owner_id, subject_id, created_at, updated_at, 0 AS enrolled_count`

// enrolledCountCols annotates each course with its enrolled student count.
const enrolledCountCols = `c.id, c.title, c.code, c.description, c.image, c.status, c.owner_id, c.subject_id, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM taken_course tc WHERE tc.course_id = c.id AND tc.status <> 'pending') AS enrolled_count`

// Subjects

func (repo courseRepository) CreateSubject(ctx context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	q := `INSERT INTO subject (name, color) VALUES ($1, $2) RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, sub.Name, sub.Color); err != nil {
		return course.Subject{}, errors.Wrap(err, "inserting subject")
	}
	sub.ID = row.ID
	return sub, nil
}

func (repo courseRepository) UpdateSubject(ctx context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	q := `UPDATE subject SET name = $1, color = $2 WHERE id = $3`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, sub.Name, sub.Color, sub.ID); err != nil {
		return course.Subject{}, errors.Wrap(err, "updating subject")
	}
	return sub, nil
}

func (repo courseRepository) GetSubjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Subject, error) {
	var sub course.Subject
	q := `SELECT id, name, color FROM subject WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &sub, q, id); err != nil {
		return course.Subject{}, trapNoRowsErr(err, course.ErrSubjectNotFound, "finding subject")
	}
	return sub, nil
}

func (repo courseRepository) QueryAllSubjects(ctx context.Context, exec ...core.DBExecutor) ([]course.Subject, error) {
	var subs []course.Subject
	q := `SELECT id, name, color FROM subject ORDER BY name`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &subs, q); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subs, nil
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `
INSERT INTO course (title, code, description, image, status, owner_id, subject_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(
		ctx, &row, q,
		crs.Title, crs.Code, crs.Description, crs.Image, crs.Status,
		crs.OwnerID, crs.SubjectID, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = row.ID
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	q := fmt.Sprintf(`SELECT %s FROM course WHERE id = $1`, courseCols)
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.course(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `
UPDATE course
SET title = $1, code = $2, description = $3, image = $4, status = $5, subject_id = $6, updated_at = $7
WHERE id = $8`
	_, err := getExec(repo.exec, exec).ExecContext(
		ctx, q,
		crs.Title, crs.Code, crs.Description, crs.Image, crs.Status, crs.SubjectID, crs.UpdatedAt.UTC(), crs.ID,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return crs, nil
}

func (repo courseRepository) SetCourseStatus(ctx context.Context, id int, status string, exec ...core.DBExecutor) error {
	q := `UPDATE course SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, status, time.Now().UTC(), id); err != nil {
		return errors.Wrap(err, "setting course status")
	}
	return nil
}

func (repo courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	conds := []string{"c.status = 'approved'"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		p := arg(val)
		conds = append(conds, fmt.Sprintf("(c.title ILIKE %s OR c.code ILIKE %s OR c.description ILIKE %s)", p, p, p))
	}
	if filter.SubjectID != 0 {
		conds = append(conds, "c.subject_id = "+arg(filter.SubjectID))
	}

	q := fmt.Sprintf(
		`SELECT %s FROM course c WHERE %s ORDER BY c.created_at DESC`,
		enrolledCountCols, strings.Join(conds, " AND "),
	)
	var rows []courseRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	return courses(rows), nil
}

func (repo courseRepository) QueryCoursesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	q := fmt.Sprintf(`SELECT %s FROM course c WHERE c.owner_id = $1 ORDER BY c.created_at DESC`, enrolledCountCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying courses by owner")
	}
	return courses(rows), nil
}

func (repo courseRepository) QueryCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	q := fmt.Sprintf(`SELECT %s FROM course WHERE status = $1 ORDER BY updated_at`, courseCols)
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, status); err != nil {
		return nil, errors.Wrap(err, "querying courses by status")
	}
	return courses(rows), nil
}

func (repo courseRepository) CountCoursesByStatus(ctx context.Context, status string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `SELECT COUNT(*) FROM course WHERE status = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, status); err != nil {
		return 0, errors.Wrap(err, "counting courses by status")
	}
	return cnt, nil
}

// Lessons

type lessonRow struct {
	ID          int    `db:"id"`
	CourseID    int    `db:"course_id"`
	Title       string `db:"title"`
	Number      int    `db:"number"`
	Description string `db:"description"`
	Content     string `db:"content"`
}

func (r lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Number:      r.Number,
		Description: r.Description,
		Content:     r.Content,
	}
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	q := `
INSERT INTO lesson (course_id, title, number, description, content)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(ctx, &row, q, lsn.CourseID, lsn.Title, lsn.Number, lsn.Description, lsn.Content)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	lsn.ID = row.ID
	return lsn, nil
}

func (repo courseRepository) GetLessonByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Lesson, error) {
	var row lessonRow
	q := `SELECT id, course_id, title, number, description, content FROM lesson WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound, "finding lesson")
	}
	return row.lesson(), nil
}

func (repo courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	q := `UPDATE lesson SET title = $1, number = $2, description = $3, content = $4 WHERE id = $5`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q, lsn.Title, lsn.Number, lsn.Description, lsn.Content, lsn.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	return lsn, nil
}

func (repo courseRepository) DeleteLesson(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM lesson WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return nil
}

func (repo courseRepository) QueryLessonsByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Lesson, error) {
	var rows []lessonRow
	q := `SELECT id, course_id, title, number, description, content FROM lesson WHERE course_id = $1 ORDER BY number, id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.lesson())
	}
	return lessons, nil
}

// Files

type fileRow struct {
	ID         int       `db:"id"`
	CourseID   int       `db:"course_id"`
	OwnerID    int       `db:"owner_id"`
	Name       string    `db:"name"`
	StoredName string    `db:"stored_name"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r fileRow) file() course.File {
	return course.File{
		ID:         r.ID,
		CourseID:   r.CourseID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		StoredName: r.StoredName,
		CreatedAt:  r.CreatedAt,
	}
}

func files(rows []fileRow) []course.File {
	fls := make([]course.File, 0, len(rows))
	for _, r := range rows {
		fls = append(fls, r.file())
	}
	return fls
}

func (repo courseRepository) CreateFile(ctx context.Context, f course.File, exec ...core.DBExecutor) (course.File, error) {
	q := `
INSERT INTO course_file (course_id, owner_id, name, stored_name, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(ctx, &row, q, f.CourseID, f.OwnerID, f.Name, f.StoredName, f.CreatedAt.UTC())
	if err != nil {
		return course.File{}, errors.Wrap(err, "inserting file")
	}
	f.ID = row.ID
	return f, nil
}

func (repo courseRepository) GetFileByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.File, error) {
	var row fileRow
	q := `SELECT id, course_id, owner_id, name, stored_name, created_at FROM course_file WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return course.File{}, trapNoRowsErr(err, course.ErrFileNotFound, "finding file")
	}
	return row.file(), nil
}

func (repo courseRepository) DeleteFile(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM course_file WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

func (repo courseRepository) QueryFilesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.File, error) {
	var rows []fileRow
	q := `SELECT id, course_id, owner_id, name, stored_name, created_at FROM course_file WHERE course_id = $1 ORDER BY id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying files by course")
	}
	return files(rows), nil
}

func (repo courseRepository) QueryFilesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]course.File, error) {
	var rows []fileRow
	q := `SELECT id, course_id, owner_id, name, stored_name, created_at FROM course_file WHERE owner_id = $1 ORDER BY id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying files by owner")
	}
	return files(rows), nil
}
