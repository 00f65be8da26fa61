package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/quiz"
)

type quizRepository struct {
	exec core.DBExecutor
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{exec: exec}
}

type quizRow struct {
	ID            int      `db:"id"`
	CourseID      int      `db:"course_id"`
	LessonID      null.Int `db:"lesson_id"`
	Title         string   `db:"title"`
	QuestionCount int      `db:"question_count"`
	TakenCount    int      `db:"taken_count"`
}

func (r quizRow) quiz() quiz.Quiz {
	return quiz.Quiz{
		ID:            r.ID,
		CourseID:      r.CourseID,
		LessonID:      r.LessonID.Int,
		Title:         r.Title,
		QuestionCount: r.QuestionCount,
		TakenCount:    r.TakenCount,
	}
}

func quizzes(rows []quizRow) []quiz.Quiz {
	qzs := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		qzs = append(qzs, r.quiz())
	}
	return qzs
}

type questionRow struct {
	ID     int    `db:"id"`
	QuizID int    `db:"quiz_id"`
	Text   string `db:"text"`
}

type answerRow struct {
	ID         int    `db:"id"`
	QuestionID int    `db:"question_id"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
}

const quizCols = `id, course_id, lesson_id, title, 0 AS question_count, 0 AS taken_count`

// Quizzes

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	q := `INSERT INTO quiz (course_id, lesson_id, title) VALUES ($1, $2, $3) RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	lessonID := null.NewInt(qz.LessonID, qz.LessonID != 0)
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, qz.CourseID, lessonID, qz.Title); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	qz.ID = row.ID
	return qz, nil
}

func (repo quizRepository) GetQuizByID(ctx context.Context, id int, exec ...core.DBExecutor) (quiz.Quiz, error) {
	var row quizRow
	q := `SELECT ` + quizCols + ` FROM quiz WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "finding quiz")
	}
	return row.quiz(), nil
}

func (repo quizRepository) UpdateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) error {
	q := `UPDATE quiz SET title = $1, lesson_id = $2 WHERE id = $3`
	lessonID := null.NewInt(qz.LessonID, qz.LessonID != 0)
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, qz.Title, lessonID, qz.ID); err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return nil
}

func (repo quizRepository) DeleteQuiz(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM quiz WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return nil
}

func (repo quizRepository) QueryQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	var rows []quizRow
	q := `SELECT ` + quizCols + ` FROM quiz WHERE course_id = $1 ORDER BY id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying quizzes by course")
	}
	return quizzes(rows), nil
}

func (repo quizRepository) QueryQuizzesByOwner(ctx context.Context, ownerID int, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	var rows []quizRow
	q := `
SELECT qz.id,
       qz.course_id,
       qz.lesson_id,
       qz.title,
       (SELECT COUNT(*) FROM question qt WHERE qt.quiz_id = qz.id)   AS question_count,
       (SELECT COUNT(*) FROM taken_quiz tq WHERE tq.quiz_id = qz.id) AS taken_count
FROM quiz qz
         JOIN course c ON c.id = qz.course_id
WHERE c.owner_id = $1
ORDER BY qz.id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying quizzes by owner")
	}
	return quizzes(rows), nil
}

func (repo quizRepository) CountQuizzesByCourse(ctx context.Context, courseID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `SELECT COUNT(*) FROM quiz WHERE course_id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting quizzes")
	}
	return cnt, nil
}

// Questions

func (repo quizRepository) CreateQuestion(ctx context.Context, quizID int, nq quiz.NewQuestion, exec ...core.DBExecutor) (quiz.Question, error) {
	exe := getExec(repo.exec, exec)

	var row struct {
		ID int `db:"id"`
	}
	q := `INSERT INTO question (quiz_id, text) VALUES ($1, $2) RETURNING id`
	if err := exe.GetContext(ctx, &row, q, quizID, nq.Text); err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}

	question := quiz.Question{ID: row.ID, QuizID: quizID, Text: nq.Text}
	for _, na := range nq.Answers {
		var arow struct {
			ID int `db:"id"`
		}
		q = `INSERT INTO answer (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`
		if err := exe.GetContext(ctx, &arow, q, question.ID, na.Text, na.IsCorrect); err != nil {
			return quiz.Question{}, errors.Wrap(err, "inserting answer")
		}
		question.Answers = append(question.Answers, quiz.Answer{
			ID:         arow.ID,
			QuestionID: question.ID,
			Text:       na.Text,
			IsCorrect:  na.IsCorrect,
		})
	}
	return question, nil
}

func (repo quizRepository) GetQuestionByID(ctx context.Context, id int, exec ...core.DBExecutor) (quiz.Question, error) {
	exe := getExec(repo.exec, exec)

	var row questionRow
	if err := exe.GetContext(ctx, &row, `SELECT id, quiz_id, text FROM question WHERE id = $1`, id); err != nil {
		return quiz.Question{}, trapNoRowsErr(err, quiz.ErrQuestionNotFound, "finding question")
	}
	question := quiz.Question{ID: row.ID, QuizID: row.QuizID, Text: row.Text}

	var arows []answerRow
	q := `SELECT id, question_id, text, is_correct FROM answer WHERE question_id = $1 ORDER BY id`
	if err := exe.SelectContext(ctx, &arows, q, id); err != nil {
		return quiz.Question{}, errors.Wrap(err, "querying answers")
	}
	for _, ar := range arows {
		question.Answers = append(question.Answers, quiz.Answer(ar))
	}
	return question, nil
}

func (repo quizRepository) UpdateQuestion(ctx context.Context, id int, nq quiz.NewQuestion, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	if _, err := exe.ExecContext(ctx, `UPDATE question SET text = $1 WHERE id = $2`, nq.Text, id); err != nil {
		return errors.Wrap(err, "updating question")
	}
	// replace the whole answer set
	if _, err := exe.ExecContext(ctx, `DELETE FROM answer WHERE question_id = $1`, id); err != nil {
		return errors.Wrap(err, "clearing answers")
	}
	for _, na := range nq.Answers {
		q := `INSERT INTO answer (question_id, text, is_correct) VALUES ($1, $2, $3)`
		if _, err := exe.ExecContext(ctx, q, id, na.Text, na.IsCorrect); err != nil {
			return errors.Wrap(err, "inserting answer")
		}
	}
	return nil
}

func (repo quizRepository) DeleteQuestion(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM question WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return nil
}

func (repo quizRepository) QueryQuestionsByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]quiz.Question, error) {
	exe := getExec(repo.exec, exec)

	var qrows []questionRow
	q := `SELECT id, quiz_id, text FROM question WHERE quiz_id = $1 ORDER BY id`
	if err := exe.SelectContext(ctx, &qrows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return repo.withAnswers(ctx, exe, qrows)
}

func (repo quizRepository) QueryUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]quiz.Question, error) {
	exe := getExec(repo.exec, exec)

	var qrows []questionRow
	q := `
SELECT id, quiz_id, text
FROM question
WHERE quiz_id = $1
  AND id NOT IN (SELECT question_id FROM student_answer WHERE student_id = $2)
ORDER BY id`
	if err := exe.SelectContext(ctx, &qrows, q, quizID, studentID); err != nil {
		return nil, errors.Wrap(err, "querying unanswered questions")
	}
	return repo.withAnswers(ctx, exe, qrows)
}

// withAnswers loads the answer sets of the given questions in one query.
func (repo quizRepository) withAnswers(ctx context.Context, exe core.DBExecutor, qrows []questionRow) ([]quiz.Question, error) {
	questions := make([]quiz.Question, 0, len(qrows))
	if len(qrows) == 0 {
		return questions, nil
	}

	byID := make(map[int]*quiz.Question, len(qrows))
	for _, qr := range qrows {
		questions = append(questions, quiz.Question{ID: qr.ID, QuizID: qr.QuizID, Text: qr.Text})
		byID[qr.ID] = &questions[len(questions)-1]
	}

	quizID := qrows[0].QuizID
	var arows []answerRow
	q := `
SELECT a.id, a.question_id, a.text, a.is_correct
FROM answer a
         JOIN question qt ON qt.id = a.question_id
WHERE qt.quiz_id = $1
ORDER BY a.id`
	if err := exe.SelectContext(ctx, &arows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	for _, ar := range arows {
		if question, ok := byID[ar.QuestionID]; ok {
			question.Answers = append(question.Answers, quiz.Answer(ar))
		}
	}
	return questions, nil
}

func (repo quizRepository) CountQuestions(ctx context.Context, quizID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `SELECT COUNT(*) FROM question WHERE quiz_id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, quizID); err != nil {
		return 0, errors.Wrap(err, "counting questions")
	}
	return cnt, nil
}

func (repo quizRepository) CountUnansweredQuestions(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `
SELECT COUNT(*)
FROM question
WHERE quiz_id = $1
  AND id NOT IN (SELECT question_id FROM student_answer WHERE student_id = $2)`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, quizID, studentID); err != nil {
		return 0, errors.Wrap(err, "counting unanswered questions")
	}
	return cnt, nil
}

// Student answers

func (repo quizRepository) CountCorrectAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `
SELECT COUNT(*)
FROM student_answer sa
         JOIN answer a ON a.id = sa.answer_id
         JOIN question qt ON qt.id = sa.question_id
WHERE sa.student_id = $1
  AND qt.quiz_id = $2
  AND a.is_correct`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, studentID, quizID); err != nil {
		return 0, errors.Wrap(err, "counting correct answers")
	}
	return cnt, nil
}

func (repo quizRepository) CreateStudentAnswer(ctx context.Context, sa quiz.StudentAnswer, exec ...core.DBExecutor) (quiz.StudentAnswer, error) {
	q := `INSERT INTO student_answer (student_id, question_id, answer_id) VALUES ($1, $2, $3) RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(ctx, &row, q, sa.StudentID, sa.QuestionID, sa.AnswerID)
	if err != nil {
		if isUniqueViolation(err) {
			return quiz.StudentAnswer{}, quiz.ErrDuplicateAnswer
		}
		return quiz.StudentAnswer{}, errors.Wrap(err, "inserting student answer")
	}
	sa.ID = row.ID
	return sa, nil
}

func (repo quizRepository) QueryStudentAnswers(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) ([]quiz.StudentAnswer, error) {
	var rows []struct {
		ID         int `db:"id"`
		StudentID  int `db:"student_id"`
		QuestionID int `db:"question_id"`
		AnswerID   int `db:"answer_id"`
	}
	q := `
SELECT sa.id, sa.student_id, sa.question_id, sa.answer_id
FROM student_answer sa
         JOIN question qt ON qt.id = sa.question_id
WHERE sa.student_id = $1
  AND qt.quiz_id = $2
ORDER BY sa.question_id`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, studentID, quizID); err != nil {
		return nil, errors.Wrap(err, "querying student answers")
	}
	sas := make([]quiz.StudentAnswer, 0, len(rows))
	for _, r := range rows {
		sas = append(sas, quiz.StudentAnswer(r))
	}
	return sas, nil
}

// Taken quizzes

type takenQuizRow struct {
	ID        int       `db:"id"`
	StudentID int       `db:"student_id"`
	QuizID    int       `db:"quiz_id"`
	CourseID  int       `db:"course_id"`
	Score     float64   `db:"score"`
	Date      time.Time `db:"date"`
}

const takenQuizCols = `id, student_id, quiz_id, course_id, score, date`

func (repo quizRepository) CreateTakenQuiz(ctx context.Context, tq quiz.TakenQuiz, exec ...core.DBExecutor) (quiz.TakenQuiz, error) {
	q := `INSERT INTO taken_quiz (student_id, quiz_id, course_id, score, date) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var row struct {
		ID int `db:"id"`
	}
	err := getExec(repo.exec, exec).GetContext(ctx, &row, q, tq.StudentID, tq.QuizID, tq.CourseID, tq.Score, tq.Date.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return quiz.TakenQuiz{}, quiz.ErrAlreadyTaken
		}
		return quiz.TakenQuiz{}, errors.Wrap(err, "inserting taken quiz")
	}
	tq.ID = row.ID
	return tq, nil
}

func (repo quizRepository) GetTakenQuiz(ctx context.Context, studentID, quizID int, exec ...core.DBExecutor) (quiz.TakenQuiz, error) {
	var row takenQuizRow
	q := `SELECT ` + takenQuizCols + ` FROM taken_quiz WHERE student_id = $1 AND quiz_id = $2`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, studentID, quizID); err != nil {
		return quiz.TakenQuiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "finding taken quiz")
	}
	return quiz.TakenQuiz(row), nil
}

func (repo quizRepository) CountTakenQuizzesByCourse(ctx context.Context, studentID, courseID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	q := `SELECT COUNT(*) FROM taken_quiz WHERE student_id = $1 AND course_id = $2`
	if err := getExec(repo.exec, exec).GetContext(ctx, &cnt, q, studentID, courseID); err != nil {
		return 0, errors.Wrap(err, "counting taken quizzes")
	}
	return cnt, nil
}

func (repo quizRepository) QueryTakenQuizzesByStudent(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]quiz.TakenQuiz, error) {
	var rows []takenQuizRow
	q := `SELECT ` + takenQuizCols + ` FROM taken_quiz WHERE student_id = $1 ORDER BY date DESC`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying taken quizzes by student")
	}
	return takenQuizzes(rows), nil
}

func (repo quizRepository) QueryTakenQuizzesByQuiz(ctx context.Context, quizID int, exec ...core.DBExecutor) ([]quiz.TakenQuiz, error) {
	var rows []takenQuizRow
	q := `SELECT ` + takenQuizCols + ` FROM taken_quiz WHERE quiz_id = $1 ORDER BY date DESC`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "querying taken quizzes by quiz")
	}
	return takenQuizzes(rows), nil
}

func takenQuizzes(rows []takenQuizRow) []quiz.TakenQuiz {
	tqs := make([]quiz.TakenQuiz, 0, len(rows))
	for _, r := range rows {
		tqs = append(tqs, quiz.TakenQuiz(r))
	}
	return tqs
}
