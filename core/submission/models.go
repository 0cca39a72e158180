package submission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

// Submission statuses. A submission is created Submitted and becomes
// Reviewed once graded; re-grading overwrites marks but keeps the status.
const (
	StatusSubmitted = "Submitted"
	StatusReviewed  = "Reviewed"
)

type Submission struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	FileURL      null.String `json:"file_url"` // storage key; empty for quizzes
	Status       string      `json:"status"`
	Marks        null.Int    `json:"marks"`       // written/file grading
	TotalMarks   null.Int    `json:"total_marks"` // quiz grading
	Feedback     null.String `json:"feedback"`
	SubmittedAt  time.Time   `json:"submitted_at"` // UTC

	// joined student name; populated by teacher review listings only
	StudentName string `json:"student_name,omitempty"`
}

type QuizAnswer struct {
	ID           string      `json:"id"`
	SubmissionID string      `json:"submission_id"`
	QuestionID   string      `json:"question_id"`
	StudentID    string      `json:"student_id"`
	AnswerText   null.String `json:"answer_text"` // null when the student skipped the question
	Marks        null.Int    `json:"marks"`
}

// ReviewAnswer joins a quiz answer with its question for the grading screen.
type ReviewAnswer struct {
	QuestionID    string      `json:"question_id"`
	QuestionText  string      `json:"question_text"`
	CorrectAnswer string      `json:"correct_answer"`
	AnswerText    null.String `json:"answer_text"`
	Marks         null.Int    `json:"marks"`
}

// NewQuizSubmission contains a student's answers keyed by question ID.
// Questions left out are recorded as skipped.
type NewQuizSubmission struct {
	Answers map[string]string `json:"answers"`
}

// GradeSubmission carries manual marks for a written/file submission.
// Marks are taken as entered; no bounds are applied.
type GradeSubmission struct {
	Marks    int    `json:"marks"`
	Feedback string `json:"feedback"`
}

func (gs GradeSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(gs)
}

// GradeQuiz carries per-question marks keyed by question ID; questions
// without an entry default to zero.
type GradeQuiz struct {
	Marks    map[string]int `json:"marks"`
	Feedback string         `json:"feedback"`
}

func (gq GradeQuiz) Validate(validate *validator.Validate) error {
	return validate.Struct(gq)
}

// FeedbackEntry is one line of a student's feedback report.
type FeedbackEntry struct {
	AssignmentTitle string      `json:"assignment_title"`
	SubmittedAt     time.Time   `json:"submitted_at"`
	Status          string      `json:"status"`
	FinalMarks      null.Int    `json:"final_marks"`
	Feedback        null.String `json:"feedback"`
}

// FeedbackReport is a student's feedback records plus parallel label/mark
// slices for chart rendering; missing marks chart as 0.
type FeedbackReport struct {
	Records     []FeedbackEntry `json:"records"`
	ChartLabels []string        `json:"chart_labels"`
	ChartMarks  []int           `json:"chart_marks"`
}
