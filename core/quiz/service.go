package quiz

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/user"
)

var (
	ErrNotFound         = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoQuestions      = errors.New("quiz has no questions")
	ErrAlreadyTaken     = errors.New("quiz already taken")
	ErrDuplicateAnswer  = errors.New("question already answered")
	ErrOneCorrectAnswer = errors.New("exactly one answer must be marked correct")
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuizByID(ctx context.Context, id int, exec ...core.DBExecutor) (Quiz, error)
		UpdateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) error
		DeleteQuiz(ctx context.Context, id int, exec ...core.DBExecutor) error
		QueryQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Quiz, error)
		// QueryQuizzesByOwner annotates QuestionCount and TakenCount.
		QueryQuizzesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]Quiz, error)
		CountQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) (int, error)

		CreateQuestion(ctx context.Context, quizID int, nq NewQuestion, exec ...core.DBExecutor) (Question, error)
		// GetQuestionByID loads the question and its answers.
		GetQuestionByID(ctx context.Context, id int, exec ...core.DBExecutor) (Question, error)
		// UpdateQuestion replaces the question text and its whole answer set.
		UpdateQuestion(ctx context.Context, id int, nq NewQuestion, exec ...core.DBExecutor) error
		DeleteQuestion(ctx context.Context, id int, exec ...core.DBExecutor) error
		QueryQuestionsByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]Question, error)
		CountQuestions(ctx context.Context, quizID int, exec ...core.DBExecutor) (int, error)

		// QueryUnansweredQuestions returns the student's remaining questions
		// for a quiz ordered by ascending ID, answers included.
		QueryUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]Question, error)
		CountUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error)
		// CountCorrectAnswers counts the student's recorded answers for the
		// quiz that point at a correct option.
		CountCorrectAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error)
		// CreateStudentAnswer returns ErrDuplicateAnswer when the student
		// already answered the question.
		CreateStudentAnswer(ctx context.Context, sa StudentAnswer, exec ...core.DBExecutor) (StudentAnswer, error)
		QueryStudentAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]StudentAnswer, error)

		CreateTakenQuiz(ctx context.Context, tq TakenQuiz, exec ...core.DBExecutor) (TakenQuiz, error)
		GetTakenQuiz(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (TakenQuiz, error)
		CountTakenQuizzesByCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (int, error)
		QueryTakenQuizzesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]TakenQuiz, error)
		QueryTakenQuizzesByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]TakenQuiz, error)
	}

	Service struct {
		db             core.DB
		repo           Repository
		courseRepo     course.Repository
		enrollmentRepo enrollment.Repository
		log            core.Logger
	}

	// Session is one step of a quiz attempt as seen by the student.
	Session struct {
		Question Question `json:"question"`
		Progress int      `json:"progress"`
		Total    int      `json:"total_questions"`
	}

	// Result pairs a recorded answer with its question for review pages.
	Result struct {
		Question Question      `json:"question"`
		Answer   StudentAnswer `json:"answer"`
		Correct  bool          `json:"correct"`
	}

	// TakenSummary annotates a student's taken list with their average.
	TakenSummary struct {
		TakenQuizzes []TakenQuiz `json:"taken_quizzes"`
		AverageScore float64     `json:"average_score"`
	}
)

func NewService(db core.DB, repo Repository, courseRepo course.Repository, enrRepo enrollment.Repository, log core.Logger) *Service {
	return &Service{db: db, repo: repo, courseRepo: courseRepo, enrollmentRepo: enrRepo, log: log}
}

// ------------------------------------------------------------------
// taking

// NextQuestion returns the student's next unanswered question for the
// quiz, lowest ID first, with IsCorrect stripped from the options. It
// fails with ErrAlreadyTaken once an attempt record exists and with
// ErrNoQuestions on an empty quiz.
func (svc *Service) NextQuestion(ctx context.Context, actor user.User, quizID int) (Session, error) {
	if !actor.IsStudent() {
		return Session{}, core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetQuizByID(ctx, quizID); err != nil {
		return Session{}, err
	}
	if _, err := svc.repo.GetTakenQuiz(ctx, actor.ID, quizID); err == nil {
		return Session{}, ErrAlreadyTaken
	} else if errors.Cause(err) != ErrNotFound {
		return Session{}, err
	}

	total, err := svc.repo.CountQuestions(ctx, quizID)
	if err != nil {
		return Session{}, err
	}
	if total == 0 {
		return Session{}, ErrNoQuestions
	}
	unanswered, err := svc.repo.QueryUnansweredQuestions(ctx, actor.ID, quizID)
	if err != nil {
		return Session{}, err
	}
	if len(unanswered) == 0 {
		// Every question answered but no attempt record; SubmitAnswer
		// finalizes in the same transaction so this should not happen.
		return Session{}, ErrAlreadyTaken
	}

	question := unanswered[0]
	for i := range question.Answers {
		question.Answers[i].IsCorrect = false
	}
	return Session{
		Question: question,
		Progress: progress(len(unanswered), total),
		Total:    total,
	}, nil
}

// SubmitAnswer records the student's choice for a question. When it is
// the last unanswered question of the quiz the attempt is finalized in
// the same transaction: the score is computed, a TakenQuiz is written,
// and the enrollment flips to finished once every quiz in the course
// has an attempt. A second answer to the same question fails with
// ErrDuplicateAnswer and changes nothing.
func (svc *Service) SubmitAnswer(ctx context.Context, actor user.User, quizID, answerID int) (done bool, err error) {
	if !actor.IsStudent() {
		return false, core.ErrPermissionDenied
	}
	qz, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return false, err
	}
	if _, err = svc.repo.GetTakenQuiz(ctx, actor.ID, quizID); err == nil {
		return false, ErrAlreadyTaken
	} else if errors.Cause(err) != ErrNotFound {
		return false, err
	}
	question, err := svc.questionForAnswer(ctx, quizID, answerID)
	if err != nil {
		return false, err
	}

	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		sa := StudentAnswer{
			StudentID:  actor.ID,
			QuestionID: question.ID,
			AnswerID:   answerID,
		}
		if _, err := svc.repo.CreateStudentAnswer(ctx, sa, tx); err != nil {
			return err
		}
		remaining, err := svc.repo.CountUnansweredQuestions(ctx, actor.ID, quizID, tx)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		done = true
		return svc.finalize(ctx, tx, actor.ID, qz)
	})
	return done, err
}

// finalize runs inside SubmitAnswer's transaction after the last answer.
func (svc *Service) finalize(ctx context.Context, tx core.DBTransactor, studentID int, qz Quiz) error {
	correct, err := svc.repo.CountCorrectAnswers(ctx, studentID, qz.ID, tx)
	if err != nil {
		return err
	}
	total, err := svc.repo.CountQuestions(ctx, qz.ID, tx)
	if err != nil {
		return err
	}
	tq := TakenQuiz{
		StudentID: studentID,
		QuizID:    qz.ID,
		CourseID:  qz.CourseID,
		Score:     score(correct, total),
		Date:      time.Now().UTC(),
	}
	if _, err = svc.repo.CreateTakenQuiz(ctx, tq, tx); err != nil {
		return err
	}

	quizCnt, err := svc.repo.CountQuizzesByCourse(ctx, qz.CourseID, tx)
	if err != nil {
		return err
	}
	takenCnt, err := svc.repo.CountTakenQuizzesByCourse(ctx, studentID, qz.CourseID, tx)
	if err != nil {
		return err
	}
	if takenCnt < quizCnt {
		return nil
	}
	return svc.enrollmentRepo.SetStatusByStudentAndCourse(ctx, studentID, qz.CourseID, enrollment.StatusFinished, tx)
}

// Results returns the student's recorded answers for a finished quiz
// alongside the questions, for the review page.
func (svc *Service) Results(ctx context.Context, actor user.User, quizID int) (TakenQuiz, []Result, error) {
	if !actor.IsStudent() {
		return TakenQuiz{}, nil, core.ErrPermissionDenied
	}
	tq, err := svc.repo.GetTakenQuiz(ctx, actor.ID, quizID)
	if err != nil {
		return TakenQuiz{}, nil, err
	}
	answers, err := svc.repo.QueryStudentAnswers(ctx, actor.ID, quizID)
	if err != nil {
		return TakenQuiz{}, nil, err
	}
	questions, err := svc.repo.QueryQuestionsByQuiz(ctx, quizID)
	if err != nil {
		return TakenQuiz{}, nil, err
	}
	byQuestion := make(map[int]Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	results := make([]Result, 0, len(answers))
	for _, sa := range answers {
		q, ok := byQuestion[sa.QuestionID]
		if !ok {
			continue // question deleted after the attempt
		}
		res := Result{Question: q, Answer: sa}
		for _, a := range q.Answers {
			if a.ID == sa.AnswerID && a.IsCorrect {
				res.Correct = true
				break
			}
		}
		results = append(results, res)
	}
	return tq, results, nil
}

// Taken lists the actor's completed attempts with their average score.
func (svc *Service) Taken(ctx context.Context, actor user.User) (TakenSummary, error) {
	if !actor.IsStudent() {
		return TakenSummary{}, core.ErrPermissionDenied
	}
	tqs, err := svc.repo.QueryTakenQuizzesByStudent(ctx, actor.ID)
	if err != nil {
		return TakenSummary{}, err
	}
	summary := TakenSummary{TakenQuizzes: tqs}
	if len(tqs) > 0 {
		var sum float64
		for _, tq := range tqs {
			sum += tq.Score
		}
		summary.AverageScore = round2(sum / float64(len(tqs)))
	}
	return summary, nil
}

// CourseProgress returns the share of the course's quizzes the actor
// has completed, as a rounded percentage. A course without quizzes
// reports 0.
func (svc *Service) CourseProgress(ctx context.Context, actor user.User, courseID int) (int, error) {
	if !actor.IsStudent() {
		return 0, core.ErrPermissionDenied
	}
	quizCnt, err := svc.repo.CountQuizzesByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if quizCnt == 0 {
		return 0, nil
	}
	takenCnt, err := svc.repo.CountTakenQuizzesByCourse(ctx, actor.ID, courseID)
	if err != nil {
		return 0, err
	}
	return int(math.RoundToEven(float64(takenCnt) / float64(quizCnt) * 100)), nil
}

// ------------------------------------------------------------------
// management

// Create adds a quiz to a course owned by the actor.
func (svc *Service) Create(ctx context.Context, actor user.User, courseID int, nq NewQuiz) (Quiz, error) {
	if err := nq.Validate(); err != nil {
		return Quiz{}, err
	}
	if _, err := svc.getOwnedCourse(ctx, actor, courseID); err != nil {
		return Quiz{}, err
	}
	qz := Quiz{
		CourseID: courseID,
		LessonID: nq.LessonID,
		Title:    nq.Title,
	}
	return svc.repo.CreateQuiz(ctx, qz)
}

// Update renames a quiz or moves it to another lesson.
func (svc *Service) Update(ctx context.Context, actor user.User, quizID int, nq NewQuiz) (Quiz, error) {
	if err := nq.Validate(); err != nil {
		return Quiz{}, err
	}
	qz, err := svc.getOwnedQuiz(ctx, actor, quizID)
	if err != nil {
		return Quiz{}, err
	}
	qz.Title = nq.Title
	qz.LessonID = nq.LessonID
	if err = svc.repo.UpdateQuiz(ctx, qz); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

// Delete removes a quiz with its questions and attempt records.
func (svc *Service) Delete(ctx context.Context, actor user.User, quizID int) error {
	qz, err := svc.getOwnedQuiz(ctx, actor, quizID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteQuiz(ctx, qz.ID)
}

// Get returns a quiz with its questions; owners see IsCorrect, students
// must go through NextQuestion.
func (svc *Service) Get(ctx context.Context, actor user.User, quizID int) (Quiz, []Question, error) {
	qz, err := svc.getOwnedQuiz(ctx, actor, quizID)
	if err != nil {
		return Quiz{}, nil, err
	}
	questions, err := svc.repo.QueryQuestionsByQuiz(ctx, quizID)
	if err != nil {
		return Quiz{}, nil, err
	}
	return qz, questions, nil
}

// QueryByCourse lists a course's quizzes for an enrolled student or the
// owner.
func (svc *Service) QueryByCourse(ctx context.Context, actor user.User, courseID int) ([]Quiz, error) {
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && crs.OwnerID != actor.ID {
		if _, err = svc.enrollmentRepo.GetTakenCourse(ctx, actor.ID, courseID); err != nil {
			return nil, core.ErrPermissionDenied
		}
	}
	return svc.repo.QueryQuizzesByCourse(ctx, courseID)
}

// QueryOwned lists the actor's quizzes annotated with question and
// attempt counts.
func (svc *Service) QueryOwned(ctx context.Context, actor user.User) ([]Quiz, error) {
	if !actor.IsTeacher() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryQuizzesByOwner(ctx, actor.ID)
}

// AddQuestion appends a question with its answer set to an owned quiz.
func (svc *Service) AddQuestion(ctx context.Context, actor user.User, quizID int, nq NewQuestion) (Question, error) {
	if err := nq.Validate(); err != nil {
		return Question{}, err
	}
	qz, err := svc.getOwnedQuiz(ctx, actor, quizID)
	if err != nil {
		return Question{}, err
	}
	return svc.repo.CreateQuestion(ctx, qz.ID, nq)
}

// UpdateQuestion replaces a question's text and answers.
func (svc *Service) UpdateQuestion(ctx context.Context, actor user.User, questionID int, nq NewQuestion) (Question, error) {
	if err := nq.Validate(); err != nil {
		return Question{}, err
	}
	question, err := svc.repo.GetQuestionByID(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if _, err = svc.getOwnedQuiz(ctx, actor, question.QuizID); err != nil {
		return Question{}, err
	}
	if err = svc.repo.UpdateQuestion(ctx, questionID, nq); err != nil {
		return Question{}, err
	}
	return svc.repo.GetQuestionByID(ctx, questionID)
}

// DeleteQuestion removes a question and its answers.
func (svc *Service) DeleteQuestion(ctx context.Context, actor user.User, questionID int) error {
	question, err := svc.repo.GetQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}
	if _, err = svc.getOwnedQuiz(ctx, actor, question.QuizID); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, questionID)
}

// Attempts lists completed attempts on an owned quiz for the gradebook.
func (svc *Service) Attempts(ctx context.Context, actor user.User, quizID int) ([]TakenQuiz, error) {
	qz, err := svc.getOwnedQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryTakenQuizzesByQuiz(ctx, qz.ID)
}

// ------------------------------------------------------------------
// helpers

func (svc *Service) getOwnedQuiz(ctx context.Context, actor user.User, quizID int) (Quiz, error) {
	qz, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	if _, err = svc.getOwnedCourse(ctx, actor, qz.CourseID); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

func (svc *Service) getOwnedCourse(ctx context.Context, actor user.User, courseID int) (course.Course, error) {
	if !actor.IsTeacher() {
		return course.Course{}, core.ErrPermissionDenied
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if crs.OwnerID != actor.ID || crs.Status == course.StatusDeleted {
		return course.Course{}, core.ErrPermissionDenied
	}
	return crs, nil
}

// questionForAnswer resolves the answer's question and checks it
// belongs to the quiz.
func (svc *Service) questionForAnswer(ctx context.Context, quizID, answerID int) (Question, error) {
	unanswered, err := svc.repo.QueryQuestionsByQuiz(ctx, quizID)
	if err != nil {
		return Question{}, err
	}
	for _, q := range unanswered {
		for _, a := range q.Answers {
			if a.ID == answerID {
				return q, nil
			}
		}
	}
	return Question{}, ErrQuestionNotFound
}

// progress reports how far through the quiz the student is when the
// question being served is counted as done. Rounding is half-even.
func progress(unanswered, total int) int {
	return 100 - int(math.RoundToEven(float64(unanswered-1)/float64(total)*100))
}

// score is the percentage of correct answers, half-even to 2 decimals.
func score(correct, total int) float64 {
	return round2(float64(correct) / float64(total) * 100)
}

func round2(f float64) float64 {
	return math.RoundToEven(f*100) / 100
}
