package quiz_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
	logsvc "github.com/digiwizhq/digiwiz/services/logger"
	inmemdb "github.com/digiwizhq/digiwiz/storage/database/inmem"
	testutil "github.com/digiwizhq/digiwiz/tests"
)

var ctx = context.Background()

type testEnv struct {
	repo    quiz.Repository
	crsRepo course.Repository
	enrRepo enrollment.Repository
	svc     *quiz.Service

	teacher user.User
	student user.User
	crs     course.Course
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := inmemdb.NewDB()
	env := &testEnv{
		repo:    inmemdb.NewQuizRepository(db),
		crsRepo: inmemdb.NewCourseRepository(db),
		enrRepo: inmemdb.NewEnrollmentRepository(db),
	}
	env.svc = quiz.NewService(
		db, env.repo, env.crsRepo, env.enrRepo,
		logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags)),
	)

	usrRepo := inmemdb.NewUserRepository(db)
	env.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teach@test.cd", "", user.TeacherRoles, true)
	env.student = testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "", user.StudentRoles, true)
	env.crs = testutil.CreateCourse(t, env.crsRepo, "Algebra", "ALG101", env.teacher.ID, 1, course.StatusApproved)
	return env
}

// createQuiz seeds a quiz with n questions of two answers each, the
// correct one first.
func (env *testEnv) createQuiz(t *testing.T, courseID int, title string, n int) (quiz.Quiz, []quiz.Question) {
	t.Helper()

	qz, err := env.repo.CreateQuiz(ctx, quiz.Quiz{CourseID: courseID, Title: title})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	questions := make([]quiz.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := env.repo.CreateQuestion(ctx, qz.ID, quiz.NewQuestion{
			Text: fmt.Sprintf("Question %d", i+1),
			Answers: []quiz.NewAnswer{
				{Text: "Right", IsCorrect: true},
				{Text: "Wrong"},
			},
		})
		if err != nil {
			t.Fatalf("CreateQuestion() failed: %v", err)
		}
		questions = append(questions, q)
	}
	return qz, questions
}

func (env *testEnv) enroll(t *testing.T, studentID, courseID int) enrollment.TakenCourse {
	t.Helper()

	tc, err := env.enrRepo.CreateTakenCourse(ctx, enrollment.TakenCourse{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    enrollment.StatusEnrolled,
		Date:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTakenCourse() failed: %v", err)
	}
	return tc
}

func correctAnswer(t *testing.T, q quiz.Question) quiz.Answer {
	t.Helper()
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a
		}
	}
	t.Fatalf("question %d has no correct answer", q.ID)
	return quiz.Answer{}
}

func wrongAnswer(t *testing.T, q quiz.Question) quiz.Answer {
	t.Helper()
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a
		}
	}
	t.Fatalf("question %d has no wrong answer", q.ID)
	return quiz.Answer{}
}

func TestService_NextQuestion(t *testing.T) {
	env := setup(t)
	qz, questions := env.createQuiz(t, env.crs.ID, "Equations", 4)
	emptyQz, _ := env.createQuiz(t, env.crs.ID, "Empty", 0)
	env.enroll(t, env.student.ID, env.crs.ID)

	if _, err := env.svc.NextQuestion(ctx, env.teacher, qz.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("NextQuestion() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}
	if _, err := env.svc.NextQuestion(ctx, env.student, 12345); errors.Cause(err) != quiz.ErrNotFound {
		t.Errorf("NextQuestion() unknown quiz error = %v, want %v", err, quiz.ErrNotFound)
	}
	if _, err := env.svc.NextQuestion(ctx, env.student, emptyQz.ID); errors.Cause(err) != quiz.ErrNoQuestions {
		t.Errorf("NextQuestion() empty quiz error = %v, want %v", err, quiz.ErrNoQuestions)
	}

	// questions come back lowest ID first, each counted as done in the
	// reported progress
	wantProgress := []int{25, 50, 75, 100}
	for i, q := range questions {
		sess, err := env.svc.NextQuestion(ctx, env.student, qz.ID)
		if err != nil {
			t.Fatalf("NextQuestion() #%d failed: %v", i+1, err)
		}
		if sess.Question.ID != q.ID {
			t.Errorf("NextQuestion() #%d question = %d, want %d", i+1, sess.Question.ID, q.ID)
		}
		if sess.Progress != wantProgress[i] {
			t.Errorf("NextQuestion() #%d progress = %d, want %d", i+1, sess.Progress, wantProgress[i])
		}
		if sess.Total != 4 {
			t.Errorf("NextQuestion() #%d total = %d, want 4", i+1, sess.Total)
		}
		for _, a := range sess.Question.Answers {
			if a.IsCorrect {
				t.Errorf("NextQuestion() #%d leaked IsCorrect on answer %d", i+1, a.ID)
			}
		}

		done, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, correctAnswer(t, q).ID)
		if err != nil {
			t.Fatalf("SubmitAnswer() #%d failed: %v", i+1, err)
		}
		if wantDone := i == len(questions)-1; done != wantDone {
			t.Errorf("SubmitAnswer() #%d done = %v, want %v", i+1, done, wantDone)
		}
	}

	if _, err := env.svc.NextQuestion(ctx, env.student, qz.ID); errors.Cause(err) != quiz.ErrAlreadyTaken {
		t.Errorf("NextQuestion() after completion error = %v, want %v", err, quiz.ErrAlreadyTaken)
	}
}

func TestService_NextQuestion_threeQuestionProgress(t *testing.T) {
	env := setup(t)
	qz, questions := env.createQuiz(t, env.crs.ID, "Short Quiz", 3)
	env.enroll(t, env.student.ID, env.crs.ID)

	wantProgress := []int{33, 67, 100}
	for i, q := range questions {
		sess, err := env.svc.NextQuestion(ctx, env.student, qz.ID)
		if err != nil {
			t.Fatalf("NextQuestion() #%d failed: %v", i+1, err)
		}
		if sess.Progress != wantProgress[i] {
			t.Errorf("NextQuestion() #%d progress = %d, want %d", i+1, sess.Progress, wantProgress[i])
		}
		if _, err = env.svc.SubmitAnswer(ctx, env.student, qz.ID, correctAnswer(t, q).ID); err != nil {
			t.Fatalf("SubmitAnswer() #%d failed: %v", i+1, err)
		}
	}
}

func TestService_SubmitAnswer(t *testing.T) {
	env := setup(t)
	qz, questions := env.createQuiz(t, env.crs.ID, "Fractions", 4)
	_, otherQuestions := env.createQuiz(t, env.crs.ID, "Decimals", 1)
	env.enroll(t, env.student.ID, env.crs.ID)

	if _, err := env.svc.SubmitAnswer(ctx, env.teacher, qz.ID, correctAnswer(t, questions[0]).ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("SubmitAnswer() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}

	// an answer belonging to another quiz does not resolve
	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, correctAnswer(t, otherQuestions[0]).ID); errors.Cause(err) != quiz.ErrQuestionNotFound {
		t.Errorf("SubmitAnswer() foreign answer error = %v, want %v", err, quiz.ErrQuestionNotFound)
	}

	// 3 correct, 1 wrong
	picks := []quiz.Answer{
		correctAnswer(t, questions[0]),
		correctAnswer(t, questions[1]),
		wrongAnswer(t, questions[2]),
		correctAnswer(t, questions[3]),
	}
	for i, pick := range picks[:3] {
		done, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, pick.ID)
		if err != nil {
			t.Fatalf("SubmitAnswer() #%d failed: %v", i+1, err)
		}
		if done {
			t.Errorf("SubmitAnswer() #%d done = true, want false", i+1)
		}
	}

	// answering an already answered question changes nothing
	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, wrongAnswer(t, questions[0]).ID); errors.Cause(err) != quiz.ErrDuplicateAnswer {
		t.Errorf("SubmitAnswer() duplicate error = %v, want %v", err, quiz.ErrDuplicateAnswer)
	}

	done, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, picks[3].ID)
	if err != nil {
		t.Fatalf("SubmitAnswer() last failed: %v", err)
	}
	if !done {
		t.Error("SubmitAnswer() last done = false, want true")
	}

	tq, err := env.repo.GetTakenQuiz(ctx, env.student.ID, qz.ID)
	if err != nil {
		t.Fatalf("GetTakenQuiz() failed: %v", err)
	}
	if tq.Score != 75 {
		t.Errorf("TakenQuiz.Score = %v, want 75", tq.Score)
	}
	if tq.CourseID != env.crs.ID {
		t.Errorf("TakenQuiz.CourseID = %d, want %d", tq.CourseID, env.crs.ID)
	}
	if tq.Date.IsZero() {
		t.Error("TakenQuiz.Date is zero")
	}

	if _, err = env.svc.SubmitAnswer(ctx, env.student, qz.ID, picks[3].ID); errors.Cause(err) != quiz.ErrAlreadyTaken {
		t.Errorf("SubmitAnswer() after completion error = %v, want %v", err, quiz.ErrAlreadyTaken)
	}
}

func TestService_SubmitAnswer_scoreRounding(t *testing.T) {
	env := setup(t)
	qz, questions := env.createQuiz(t, env.crs.ID, "Thirds", 3)
	env.enroll(t, env.student.ID, env.crs.ID)

	picks := []quiz.Answer{
		correctAnswer(t, questions[0]),
		correctAnswer(t, questions[1]),
		wrongAnswer(t, questions[2]),
	}
	for i, pick := range picks {
		if _, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, pick.ID); err != nil {
			t.Fatalf("SubmitAnswer() #%d failed: %v", i+1, err)
		}
	}

	tq, err := env.repo.GetTakenQuiz(ctx, env.student.ID, qz.ID)
	if err != nil {
		t.Fatalf("GetTakenQuiz() failed: %v", err)
	}
	if tq.Score != 66.67 {
		t.Errorf("TakenQuiz.Score = %v, want 66.67", tq.Score)
	}
}

func TestService_SubmitAnswer_finishesEnrollment(t *testing.T) {
	env := setup(t)
	qz1, questions1 := env.createQuiz(t, env.crs.ID, "First Quiz", 1)
	qz2, questions2 := env.createQuiz(t, env.crs.ID, "Second Quiz", 1)
	env.enroll(t, env.student.ID, env.crs.ID)

	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz1.ID, correctAnswer(t, questions1[0]).ID); err != nil {
		t.Fatalf("SubmitAnswer() quiz 1 failed: %v", err)
	}
	tc, err := env.enrRepo.GetTakenCourse(ctx, env.student.ID, env.crs.ID)
	if err != nil {
		t.Fatalf("GetTakenCourse() failed: %v", err)
	}
	if tc.Status != enrollment.StatusEnrolled {
		t.Errorf("status after 1/2 quizzes = %s, want %s", tc.Status, enrollment.StatusEnrolled)
	}

	if _, err = env.svc.SubmitAnswer(ctx, env.student, qz2.ID, correctAnswer(t, questions2[0]).ID); err != nil {
		t.Fatalf("SubmitAnswer() quiz 2 failed: %v", err)
	}
	tc, err = env.enrRepo.GetTakenCourse(ctx, env.student.ID, env.crs.ID)
	if err != nil {
		t.Fatalf("GetTakenCourse() failed: %v", err)
	}
	if tc.Status != enrollment.StatusFinished {
		t.Errorf("status after 2/2 quizzes = %s, want %s", tc.Status, enrollment.StatusFinished)
	}
}

func TestService_CourseProgress(t *testing.T) {
	env := setup(t)
	env.enroll(t, env.student.ID, env.crs.ID)

	if _, err := env.svc.CourseProgress(ctx, env.teacher, env.crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("CourseProgress() as teacher error = %v, want %v", err, core.ErrPermissionDenied)
	}

	// no quizzes yet
	if got, err := env.svc.CourseProgress(ctx, env.student, env.crs.ID); err != nil || got != 0 {
		t.Errorf("CourseProgress() empty course = %d, %v; want 0, nil", got, err)
	}

	quizzes := make([]quiz.Quiz, 3)
	questions := make([][]quiz.Question, 3)
	for i := range quizzes {
		quizzes[i], questions[i] = env.createQuiz(t, env.crs.ID, fmt.Sprintf("Quiz %d", i+1), 1)
	}

	want := []int{33, 67, 100}
	for i := range quizzes {
		if _, err := env.svc.SubmitAnswer(ctx, env.student, quizzes[i].ID, correctAnswer(t, questions[i][0]).ID); err != nil {
			t.Fatalf("SubmitAnswer() quiz %d failed: %v", i+1, err)
		}
		got, err := env.svc.CourseProgress(ctx, env.student, env.crs.ID)
		if err != nil {
			t.Fatalf("CourseProgress() failed: %v", err)
		}
		if got != want[i] {
			t.Errorf("CourseProgress() after %d/3 = %d, want %d", i+1, got, want[i])
		}
	}
}

func TestService_Taken(t *testing.T) {
	env := setup(t)
	qz1, questions1 := env.createQuiz(t, env.crs.ID, "First Quiz", 1)
	qz2, questions2 := env.createQuiz(t, env.crs.ID, "Second Quiz", 2)
	env.enroll(t, env.student.ID, env.crs.ID)

	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz1.ID, correctAnswer(t, questions1[0]).ID); err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}
	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz2.ID, correctAnswer(t, questions2[0]).ID); err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}
	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz2.ID, wrongAnswer(t, questions2[1]).ID); err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}

	summary, err := env.svc.Taken(ctx, env.student)
	if err != nil {
		t.Fatalf("Taken() failed: %v", err)
	}
	if len(summary.TakenQuizzes) != 2 {
		t.Fatalf("Taken() len = %d, want 2", len(summary.TakenQuizzes))
	}
	if summary.AverageScore != 75 { // (100 + 50) / 2
		t.Errorf("Taken() average = %v, want 75", summary.AverageScore)
	}
}

func TestService_Results(t *testing.T) {
	env := setup(t)
	qz, questions := env.createQuiz(t, env.crs.ID, "Review Quiz", 2)
	env.enroll(t, env.student.ID, env.crs.ID)

	// results require a finished attempt
	if _, _, err := env.svc.Results(ctx, env.student, qz.ID); errors.Cause(err) != quiz.ErrNotFound {
		t.Errorf("Results() before attempt error = %v, want %v", err, quiz.ErrNotFound)
	}

	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, correctAnswer(t, questions[0]).ID); err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}
	if _, err := env.svc.SubmitAnswer(ctx, env.student, qz.ID, wrongAnswer(t, questions[1]).ID); err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}

	tq, results, err := env.svc.Results(ctx, env.student, qz.ID)
	if err != nil {
		t.Fatalf("Results() failed: %v", err)
	}
	if tq.Score != 50 {
		t.Errorf("Results() score = %v, want 50", tq.Score)
	}
	if len(results) != 2 {
		t.Fatalf("Results() len = %d, want 2", len(results))
	}
	byQuestion := make(map[int]quiz.Result, len(results))
	for _, res := range results {
		byQuestion[res.Question.ID] = res
	}
	if res := byQuestion[questions[0].ID]; !res.Correct {
		t.Error("Results() first answer marked incorrect, want correct")
	}
	if res := byQuestion[questions[1].ID]; res.Correct {
		t.Error("Results() second answer marked correct, want incorrect")
	}
}

func TestService_Create(t *testing.T) {
	env := setup(t)

	if _, err := env.svc.Create(ctx, env.student, env.crs.ID, quiz.NewQuiz{Title: "Nope"}); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("Create() as student error = %v, want %v", err, core.ErrPermissionDenied)
	}

	qz, err := env.svc.Create(ctx, env.teacher, env.crs.ID, quiz.NewQuiz{Title: "  intro QUIZ "})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if qz.Title != "Intro Quiz" {
		t.Errorf("Create() title = %q, want %q", qz.Title, "Intro Quiz")
	}
	if qz.CourseID != env.crs.ID {
		t.Errorf("Create() course = %d, want %d", qz.CourseID, env.crs.ID)
	}
}

func TestService_AddQuestion(t *testing.T) {
	env := setup(t)
	qz, _ := env.createQuiz(t, env.crs.ID, "Editable Quiz", 0)

	tests := []struct {
		name    string
		nq      quiz.NewQuestion
		wantErr bool
	}{
		{
			name: "too few answers",
			nq: quiz.NewQuestion{
				Text:    "lonely?",
				Answers: []quiz.NewAnswer{{Text: "Yes", IsCorrect: true}},
			},
			wantErr: true,
		},
		{
			name: "no correct answer",
			nq: quiz.NewQuestion{
				Text:    "sure?",
				Answers: []quiz.NewAnswer{{Text: "A"}, {Text: "B"}},
			},
			wantErr: true,
		},
		{
			name: "two correct answers",
			nq: quiz.NewQuestion{
				Text:    "both?",
				Answers: []quiz.NewAnswer{{Text: "A", IsCorrect: true}, {Text: "B", IsCorrect: true}},
			},
			wantErr: true,
		},
		{
			name: "ok",
			nq: quiz.NewQuestion{
				Text:    "what is 1 + 1?",
				Answers: []quiz.NewAnswer{{Text: "2", IsCorrect: true}, {Text: "3"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := env.svc.AddQuestion(ctx, env.teacher, qz.ID, tt.nq)
			if tt.wantErr {
				if err == nil {
					t.Error("AddQuestion() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("AddQuestion() failed: %v", err)
			}
			if q.Text != "What is 1 + 1?" {
				t.Errorf("AddQuestion() text = %q, want %q", q.Text, "What is 1 + 1?")
			}
			if len(q.Answers) != 2 {
				t.Errorf("AddQuestion() answers = %d, want 2", len(q.Answers))
			}
		})
	}
}

func TestService_QueryByCourse(t *testing.T) {
	env := setup(t)
	env.createQuiz(t, env.crs.ID, "Visible Quiz", 1)

	// not enrolled and not the owner
	if _, err := env.svc.QueryByCourse(ctx, env.student, env.crs.ID); errors.Cause(err) != core.ErrPermissionDenied {
		t.Errorf("QueryByCourse() unenrolled error = %v, want %v", err, core.ErrPermissionDenied)
	}

	env.enroll(t, env.student.ID, env.crs.ID)
	quizzes, err := env.svc.QueryByCourse(ctx, env.student, env.crs.ID)
	if err != nil {
		t.Fatalf("QueryByCourse() failed: %v", err)
	}
	if len(quizzes) != 1 {
		t.Errorf("QueryByCourse() len = %d, want 1", len(quizzes))
	}

	// the owner needs no enrollment
	if _, err = env.svc.QueryByCourse(ctx, env.teacher, env.crs.ID); err != nil {
		t.Errorf("QueryByCourse() as owner failed: %v", err)
	}
}
