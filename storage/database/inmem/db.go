// Package inmemdb provides map-backed repositories for tests and local
// hacking. Writes take effect immediately; the transactor returned by
// Begin is a no-op so service code using core.Atomic still runs.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
)

type DB struct {
	mutex   sync.RWMutex
	pkCount int

	users         map[int]*user.User
	subjects      map[int]*course.Subject
	courses       map[int]*course.Course
	lessons       map[int]*course.Lesson
	files         map[int]*course.File
	takenCourses  map[int]*enrollment.TakenCourse
	quizzes       map[int]*quiz.Quiz
	questions     map[int]*quiz.Question
	studentAnsw   map[int]*quiz.StudentAnswer
	takenQuizzes  map[int]*quiz.TakenQuiz
	interestsByID map[int][]int
}

var _ core.DB = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{
		users:         make(map[int]*user.User),
		subjects:      make(map[int]*course.Subject),
		courses:       make(map[int]*course.Course),
		lessons:       make(map[int]*course.Lesson),
		files:         make(map[int]*course.File),
		takenCourses:  make(map[int]*enrollment.TakenCourse),
		quizzes:       make(map[int]*quiz.Quiz),
		questions:     make(map[int]*quiz.Question),
		studentAnsw:   make(map[int]*quiz.StudentAnswer),
		takenQuizzes:  make(map[int]*quiz.TakenQuiz),
		interestsByID: make(map[int][]int),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int {
	db.pkCount++
	return db.pkCount
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (db *DB) Begin(ctx context.Context) (core.DBTransactor, error) {
	return noopTx{db}, nil
}

type noopTx struct {
	*DB
}

func (tx noopTx) Commit() error   { return nil }
func (tx noopTx) Rollback() error { return nil }
