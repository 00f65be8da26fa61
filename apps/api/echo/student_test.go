package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
	emailsvc "github.com/digiwizhq/digiwiz/services/email"
	"github.com/digiwizhq/digiwiz/services/filestore"
	logsvc "github.com/digiwizhq/digiwiz/services/logger"
	inmemdb "github.com/digiwizhq/digiwiz/storage/database/inmem"
	testutil "github.com/digiwizhq/digiwiz/tests"
)

var ctx = context.Background()

type apiEnv struct {
	srv Server

	quizRepo quiz.Repository
	crsRepo  course.Repository
	enrRepo  enrollment.Repository

	teacher user.User
	student user.User
	crs     course.Course
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	env := &apiEnv{
		quizRepo: inmemdb.NewQuizRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		enrRepo:  inmemdb.NewEnrollmentRepository(db),
	}

	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewService(db, usrRepo, mailSvc, logger)
	crsSvc := course.NewService(db, env.crsRepo, logger)
	enrSvc := enrollment.NewService(db, env.enrRepo, env.crsRepo)
	quizSvc := quiz.NewService(db, env.quizRepo, env.crsRepo, env.enrRepo, logger)
	fileStore, err := filestore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() failed: %v", err)
	}

	env.srv = NewServer(&Options{
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		EnrollmentSvc:  enrSvc,
		QuizSvc:        quizSvc,
		FileStore:      fileStore,
	})

	env.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teach@test.cd", "", user.TeacherRoles, true)
	env.student = testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "", user.StudentRoles, true)
	env.crs = testutil.CreateCourse(t, env.crsRepo, "Algebra", "ALG101", env.teacher.ID, 1, course.StatusApproved)
	return env
}

func (env *apiEnv) createQuiz(t *testing.T, n int) (quiz.Quiz, []quiz.Question) {
	t.Helper()

	qz, err := env.quizRepo.CreateQuiz(ctx, quiz.Quiz{CourseID: env.crs.ID, Title: "Equations"})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	questions := make([]quiz.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := env.quizRepo.CreateQuestion(ctx, qz.ID, quiz.NewQuestion{
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

func (env *apiEnv) enroll(t *testing.T) {
	t.Helper()

	_, err := env.enrRepo.CreateTakenCourse(ctx, enrollment.TakenCourse{
		StudentID: env.student.ID,
		CourseID:  env.crs.ID,
		Status:    enrollment.StatusEnrolled,
		Date:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTakenCourse() failed: %v", err)
	}
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := generateToken(getUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buff bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buff).Encode(body); err != nil {
			t.Fatalf("encoding request body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buff)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	data := make(map[string]interface{})
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decoding response %q failed: %v", rec.Body.String(), err)
	}
	return data
}

func Test_studentAPI_quizFlow(t *testing.T) {
	env := setupAPI(t)
	qz, questions := env.createQuiz(t, 4)
	env.enroll(t)

	studentToken := getToken(t, env.student)
	teacherToken := getToken(t, env.teacher)
	nextPath := fmt.Sprintf("/v1/student/quizzes/%d/next", qz.ID)
	answerPath := fmt.Sprintf("/v1/student/quizzes/%d/answer", qz.ID)

	// auth guards
	if rec := env.do(t, http.MethodGet, nextPath, "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec := env.do(t, http.MethodGet, nextPath, teacherToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("teacher token: code = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// first question: lowest ID, progress 25, options do not leak correctness
	rec := env.do(t, http.MethodGet, nextPath, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next: code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	session := decodeBody(t, rec)
	if got := session["progress"].(float64); got != 25 {
		t.Errorf("progress = %v, want 25", got)
	}
	if got := session["total_questions"].(float64); got != 4 {
		t.Errorf("total_questions = %v, want 4", got)
	}
	question := session["question"].(map[string]interface{})
	if got := int(question["id"].(float64)); got != questions[0].ID {
		t.Errorf("question id = %d, want %d", got, questions[0].ID)
	}
	for _, a := range question["answers"].([]interface{}) {
		if a.(map[string]interface{})["is_correct"].(bool) {
			t.Error("next question leaked a correct answer")
		}
	}

	// answer all questions, the last submit completes the attempt
	for i, q := range questions {
		var answerID int
		for _, a := range q.Answers {
			if a.IsCorrect {
				answerID = a.ID
			}
		}
		rec = env.do(t, http.MethodPost, answerPath, studentToken, map[string]int{"answer_id": answerID})
		if rec.Code != http.StatusOK {
			t.Fatalf("answer #%d: code = %d; body %s", i+1, rec.Code, rec.Body.String())
		}
		if done := decodeBody(t, rec)["done"].(bool); done != (i == len(questions)-1) {
			t.Errorf("answer #%d: done = %v", i+1, done)
		}

		// answering the same question again is rejected
		if i == 0 {
			rec = env.do(t, http.MethodPost, answerPath, studentToken, map[string]int{"answer_id": answerID})
			if rec.Code != http.StatusConflict {
				t.Errorf("duplicate answer: code = %d, want %d", rec.Code, http.StatusConflict)
			}
		}
	}

	// attempt is closed now
	if rec = env.do(t, http.MethodGet, nextPath, studentToken, nil); rec.Code != http.StatusConflict {
		t.Errorf("next after completion: code = %d, want %d", rec.Code, http.StatusConflict)
	}

	// course progress and results read back
	progressPath := fmt.Sprintf("/v1/student/courses/%d/progress", env.crs.ID)
	rec = env.do(t, http.MethodGet, progressPath, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: code = %d; body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["progress"].(float64); got != 100 {
		t.Errorf("course progress = %v, want 100", got)
	}

	resultsPath := fmt.Sprintf("/v1/student/quizzes/%d/results", qz.ID)
	rec = env.do(t, http.MethodGet, resultsPath, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: code = %d; body %s", rec.Code, rec.Body.String())
	}
	results := decodeBody(t, rec)
	if tq := results["taken_quiz"].(map[string]interface{}); tq["score"].(float64) != 100 {
		t.Errorf("score = %v, want 100", tq["score"])
	}
	if res := results["results"].([]interface{}); len(res) != 4 {
		t.Errorf("results len = %d, want 4", len(res))
	}
}

func Test_studentAPI_enrollFlow(t *testing.T) {
	env := setupAPI(t)
	studentToken := getToken(t, env.student)
	enrollPath := fmt.Sprintf("/v1/student/courses/%d/enroll", env.crs.ID)

	rec := env.do(t, http.MethodPost, enrollPath, studentToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: code = %d; body %s", rec.Code, rec.Body.String())
	}
	if status := decodeBody(t, rec)["status"].(string); status != enrollment.StatusPending {
		t.Errorf("enroll status = %s, want %s", status, enrollment.StatusPending)
	}

	rec = env.do(t, http.MethodGet, "/v1/student/courses", studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my courses: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var tcs []enrollment.TakenCourse
	if err := json.Unmarshal(rec.Body.Bytes(), &tcs); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(tcs) != 1 || tcs[0].CourseID != env.crs.ID {
		t.Errorf("my courses = %+v, want 1 row for course %d", tcs, env.crs.ID)
	}

	if rec = env.do(t, http.MethodDelete, enrollPath, studentToken, nil); rec.Code != http.StatusNoContent {
		t.Errorf("unenroll: code = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
