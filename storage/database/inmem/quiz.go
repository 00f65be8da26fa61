package inmemdb

import (
	"context"
	"sort"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) *quizRepository {
	return &quizRepository{db: db}
}

// Quizzes

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qz.ID = repo.db.nextPK()
	repo.db.quizzes[qz.ID] = &qz
	return qz, nil
}

func (repo *quizRepository) GetQuizByID(ctx context.Context, id int, exec ...core.DBExecutor) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if qz, ok := repo.db.quizzes[id]; ok {
		return *qz, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) UpdateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.quizzes[qz.ID]; !ok {
		return quiz.ErrNotFound
	}
	repo.db.quizzes[qz.ID] = &qz
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.quizzes, id)
	for qid, q := range repo.db.questions {
		if q.QuizID == id {
			delete(repo.db.questions, qid)
		}
	}
	for tid, tq := range repo.db.takenQuizzes {
		if tq.QuizID == id {
			delete(repo.db.takenQuizzes, tid)
		}
	}
	return nil
}

func (repo *quizRepository) QueryQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var qzs []quiz.Quiz
	for _, qz := range repo.db.quizzes {
		if qz.CourseID == courseID {
			qzs = append(qzs, *qz)
		}
	}
	sort.Slice(qzs, func(i, j int) bool { return qzs[i].ID < qzs[j].ID })
	return qzs, nil
}

func (repo *quizRepository) QueryQuizzesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var qzs []quiz.Quiz
	for _, qz := range repo.db.quizzes {
		crs, ok := repo.db.courses[qz.CourseID]
		if !ok || crs.OwnerID != ownerID {
			continue
		}
		annotated := *qz
		for _, q := range repo.db.questions {
			if q.QuizID == qz.ID {
				annotated.QuestionCount++
			}
		}
		for _, tq := range repo.db.takenQuizzes {
			if tq.QuizID == qz.ID {
				annotated.TakenCount++
			}
		}
		qzs = append(qzs, annotated)
	}
	sort.Slice(qzs, func(i, j int) bool { return qzs[i].ID < qzs[j].ID })
	return qzs, nil
}

func (repo *quizRepository) CountQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, qz := range repo.db.quizzes {
		if qz.CourseID == courseID {
			cnt++
		}
	}
	return cnt, nil
}

// Questions

func (repo *quizRepository) CreateQuestion(ctx context.Context, quizID int, nq quiz.NewQuestion, exec ...core.DBExecutor) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	question := quiz.Question{ID: repo.db.nextPK(), QuizID: quizID, Text: nq.Text}
	for _, na := range nq.Answers {
		question.Answers = append(question.Answers, quiz.Answer{
			ID:         repo.db.nextPK(),
			QuestionID: question.ID,
			Text:       na.Text,
			IsCorrect:  na.IsCorrect,
		})
	}
	repo.db.questions[question.ID] = &question
	return question, nil
}

func (repo *quizRepository) GetQuestionByID(ctx context.Context, id int, exec ...core.DBExecutor) (quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return copyQuestion(*q), nil
	}
	return quiz.Question{}, quiz.ErrQuestionNotFound
}

func copyQuestion(q quiz.Question) quiz.Question {
	answers := make([]quiz.Answer, len(q.Answers))
	copy(answers, q.Answers)
	q.Answers = answers
	return q
}

func (repo *quizRepository) UpdateQuestion(ctx context.Context, id int, nq quiz.NewQuestion, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	q, ok := repo.db.questions[id]
	if !ok {
		return quiz.ErrQuestionNotFound
	}
	q.Text = nq.Text
	q.Answers = nil
	for _, na := range nq.Answers {
		q.Answers = append(q.Answers, quiz.Answer{
			ID:         repo.db.nextPK(),
			QuestionID: id,
			Text:       na.Text,
			IsCorrect:  na.IsCorrect,
		})
	}
	return nil
}

func (repo *quizRepository) DeleteQuestion(ctx context.Context, id int, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.questions, id)
	return nil
}

func (repo *quizRepository) queryQuestions(quizID int) []quiz.Question {
	var questions []quiz.Question
	for _, q := range repo.db.questions {
		if q.QuizID == quizID {
			questions = append(questions, copyQuestion(*q))
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions
}

func (repo *quizRepository) QueryQuestionsByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryQuestions(quizID), nil
}

func (repo *quizRepository) QueryUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	answered := repo.answeredQuestions(studentID)
	var questions []quiz.Question
	for _, q := range repo.queryQuestions(quizID) {
		if !answered[q.ID] {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// answeredQuestions must be called with the lock held.
func (repo *quizRepository) answeredQuestions(studentID int) map[int]bool {
	answered := make(map[int]bool)
	for _, sa := range repo.db.studentAnsw {
		if sa.StudentID == studentID {
			answered[sa.QuestionID] = true
		}
	}
	return answered
}

func (repo *quizRepository) CountQuestions(ctx context.Context, quizID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, q := range repo.db.questions {
		if q.QuizID == quizID {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *quizRepository) CountUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	answered := repo.answeredQuestions(studentID)
	var cnt int
	for _, q := range repo.db.questions {
		if q.QuizID == quizID && !answered[q.ID] {
			cnt++
		}
	}
	return cnt, nil
}

// Student answers

func (repo *quizRepository) CountCorrectAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, sa := range repo.db.studentAnsw {
		if sa.StudentID != studentID {
			continue
		}
		q, ok := repo.db.questions[sa.QuestionID]
		if !ok || q.QuizID != quizID {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == sa.AnswerID && a.IsCorrect {
				cnt++
				break
			}
		}
	}
	return cnt, nil
}

func (repo *quizRepository) CreateStudentAnswer(ctx context.Context, sa quiz.StudentAnswer, exec ...core.DBExecutor) (quiz.StudentAnswer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.studentAnsw {
		if existing.StudentID == sa.StudentID && existing.QuestionID == sa.QuestionID {
			return quiz.StudentAnswer{}, quiz.ErrDuplicateAnswer
		}
	}
	sa.ID = repo.db.nextPK()
	repo.db.studentAnsw[sa.ID] = &sa
	return sa, nil
}

func (repo *quizRepository) QueryStudentAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]quiz.StudentAnswer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sas []quiz.StudentAnswer
	for _, sa := range repo.db.studentAnsw {
		if sa.StudentID != studentID {
			continue
		}
		if q, ok := repo.db.questions[sa.QuestionID]; ok && q.QuizID == quizID {
			sas = append(sas, *sa)
		}
	}
	sort.Slice(sas, func(i, j int) bool { return sas[i].QuestionID < sas[j].QuestionID })
	return sas, nil
}

// Taken quizzes

func (repo *quizRepository) CreateTakenQuiz(ctx context.Context, tq quiz.TakenQuiz, exec ...core.DBExecutor) (quiz.TakenQuiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.takenQuizzes {
		if existing.StudentID == tq.StudentID && existing.QuizID == tq.QuizID {
			return quiz.TakenQuiz{}, quiz.ErrAlreadyTaken
		}
	}
	tq.ID = repo.db.nextPK()
	repo.db.takenQuizzes[tq.ID] = &tq
	return tq, nil
}

func (repo *quizRepository) GetTakenQuiz(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (quiz.TakenQuiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tq := range repo.db.takenQuizzes {
		if tq.StudentID == studentID && tq.QuizID == quizID {
			return *tq, nil
		}
	}
	return quiz.TakenQuiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) CountTakenQuizzesByCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, tq := range repo.db.takenQuizzes {
		if tq.StudentID == studentID && tq.CourseID == courseID {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *quizRepository) QueryTakenQuizzesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]quiz.TakenQuiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tqs []quiz.TakenQuiz
	for _, tq := range repo.db.takenQuizzes {
		if tq.StudentID == studentID {
			tqs = append(tqs, *tq)
		}
	}
	sort.Slice(tqs, func(i, j int) bool { return tqs[i].ID < tqs[j].ID })
	return tqs, nil
}

func (repo *quizRepository) QueryTakenQuizzesByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]quiz.TakenQuiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tqs []quiz.TakenQuiz
	for _, tq := range repo.db.takenQuizzes {
		if tq.QuizID == quizID {
			tqs = append(tqs, *tq)
		}
	}
	sort.Slice(tqs, func(i, j int) bool { return tqs[i].ID < tqs[j].ID })
	return tqs, nil
}
