package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

// Assignment kinds
const (
	KindWritten = "written"
	KindFile    = "file"
	KindQuiz    = "quiz"
)

var Kinds = []string{KindWritten, KindFile, KindQuiz}

type Assignment struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Deadline    time.Time   `json:"deadline"` // UTC
	CreatedBy   string      `json:"created_by"`
	Kind        string      `json:"kind"`
	Attachment  null.String `json:"attachment"` // storage key; file kind only
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC

	// joined creator name; populated by student listings only
	CreatedByName string `json:"created_by_name,omitempty"`
}

func (a Assignment) DeadlinePassed() bool {
	return core.NowFunc().UTC().After(a.Deadline)
}

type QuizQuestion struct {
	ID            string `json:"id"`
	AssignmentID  string `json:"assignment_id"`
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"` // A | B | C | D
	Position      int    `json:"position"`
}

// StudentQuizQuestion is the student-facing view of a QuizQuestion.
// It deliberately omits the correct answer so it can never be serialized
// towards a student, no matter what the rendering layer does.
type StudentQuizQuestion struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	OptionA  string `json:"option_a"`
	OptionB  string `json:"option_b"`
	OptionC  string `json:"option_c"`
	OptionD  string `json:"option_d"`
	Position int    `json:"position"`
}

func (q QuizQuestion) StudentView() StudentQuizQuestion {
	return StudentQuizQuestion{
		ID:       q.ID,
		Text:     q.Text,
		OptionA:  q.OptionA,
		OptionB:  q.OptionB,
		OptionC:  q.OptionC,
		OptionD:  q.OptionD,
		Position: q.Position,
	}
}

// NewQuizQuestion contains one question of a new quiz assignment.
type NewQuizQuestion struct {
	Text          string `json:"text" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c" validate:"required"`
	OptionD       string `json:"option_d" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required,oneof=A B C D"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Kind        string            `json:"kind" validate:"required,oneof=written file quiz"`
	Deadline    time.Time         `json:"deadline" validate:"required,future"`
	Questions   []NewQuizQuestion `json:"questions" validate:"omitempty,dive"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	for i := range na.Questions {
		na.Questions[i].Text = core.CleanString(na.Questions[i].Text)
		na.Questions[i].CorrectAnswer = core.CleanString(na.Questions[i].CorrectAnswer)
	}
	return validate.Struct(na)
}

// StudentAssignment pairs an assignment with the student's submission state.
type StudentAssignment struct {
	Assignment
	Submitted bool `json:"submitted"`
}
