package quiz

import (
	"time"

	"github.com/digiwizhq/digiwiz/core"
)

// Answers per question bounds, enforced at write time.
const (
	MinAnswers = 2
	MaxAnswers = 10
)

type Quiz struct {
	ID       int    `json:"id"`
	CourseID int    `json:"course_id"`
	LessonID int    `json:"lesson_id,omitempty"` // 0 = not attached to a lesson
	Title    string `json:"title"`

	// Annotations populated by owner queries only.
	QuestionCount int `json:"question_count,omitempty"`
	TakenCount    int `json:"taken_count,omitempty"`
}

type Question struct {
	ID      int      `json:"id"`
	QuizID  int      `json:"quiz_id"`
	Text    string   `json:"text"`
	Answers []Answer `json:"answers,omitempty"`
}

type Answer struct {
	ID         int    `json:"id"`
	QuestionID int    `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// TakenQuiz is the immutable record of a completed attempt.
type TakenQuiz struct {
	ID        int       `json:"id"`
	StudentID int       `json:"student_id"`
	QuizID    int       `json:"quiz_id"`
	CourseID  int       `json:"course_id"`
	Score     float64   `json:"score"`
	Date      time.Time `json:"date"` // UTC
}

// StudentAnswer is the append-only record of one submitted choice.
// QuestionID is stored alongside AnswerID so the storage layer can
// enforce one answer per (student, question).
type StudentAnswer struct {
	ID         int `json:"id"`
	StudentID  int `json:"student_id"`
	QuestionID int `json:"question_id"`
	AnswerID   int `json:"answer_id"`
}

// NewQuiz contains information needed to create or update a Quiz.
type NewQuiz struct {
	Title    string `json:"title" validate:"required,max=255"`
	LessonID int    `json:"lesson_id"`
}

func (nq *NewQuiz) Validate() error {
	nq.Title = core.TitleCase(core.CleanString(nq.Title))
	return core.Validate.Struct(nq)
}

// NewAnswer is one option of a question being created or updated.
type NewAnswer struct {
	Text      string `json:"text" validate:"required,max=255"`
	IsCorrect bool   `json:"is_correct"`
}

// NewQuestion contains a question and its full answer set; updates
// replace the previous answers.
type NewQuestion struct {
	Text    string      `json:"text" validate:"required,max=255"`
	Answers []NewAnswer `json:"answers" validate:"min=2,max=10,dive"`
}

func (nq *NewQuestion) Validate() error {
	nq.Text = core.Capitalize(core.CleanString(nq.Text))
	for i := range nq.Answers {
		nq.Answers[i].Text = core.CleanString(nq.Answers[i].Text)
	}
	if err := core.Validate.Struct(nq); err != nil {
		return err
	}

	var correct int
	for _, a := range nq.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return core.NewValidationError(
			ErrOneCorrectAnswer,
			core.FieldError{Field: "answers", Error: ErrOneCorrectAnswer.Error()},
		)
	}
	return nil
}
