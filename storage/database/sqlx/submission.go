package sqlxrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/submission"
)

var (
	byLatestSubmitted  = core.DBOrdering{Field: "s.submitted_at"}
	byOldestSubmitted  = core.DBOrdering{Field: "s.submitted_at", Ascending: true}
	byQuestionPosition = core.DBOrdering{Field: "q.position", Ascending: true}
)

type submissionRow struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	FileURL      null.String `db:"file_url"`
	Status       string      `db:"status"`
	Marks        null.Int    `db:"marks"`
	TotalMarks   null.Int    `db:"total_marks"`
	Feedback     null.String `db:"feedback"`
	SubmittedAt  time.Time   `db:"submitted_at"`

	StudentName string `db:"student_name"`
}

func (row submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		FileURL:      row.FileURL,
		Status:       row.Status,
		Marks:        row.Marks,
		TotalMarks:   row.TotalMarks,
		Feedback:     row.Feedback,
		SubmittedAt:  row.SubmittedAt,
		StudentName:  row.StudentName,
	}
}

type reviewAnswerRow struct {
	QuestionID    string      `db:"question_id"`
	QuestionText  string      `db:"question_text"`
	CorrectAnswer string      `db:"correct_answer"`
	AnswerText    null.String `db:"answer_text"`
	Marks         null.Int    `db:"marks"`
}

type feedbackEntryRow struct {
	AssignmentTitle string      `db:"assignment_title"`
	SubmittedAt     time.Time   `db:"submitted_at"`
	Status          string      `db:"status"`
	FinalMarks      null.Int    `db:"final_marks"`
	Feedback        null.String `db:"feedback"`
}

type SubmissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*SubmissionRepository)(nil)

func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (repo *SubmissionRepository) ReplaceSubmission(
	ctx context.Context,
	sub submission.Submission,
	answers []submission.QuizAnswer,
) (submission.Submission, error) {
	sub.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	// drop any prior submission by this student for this assignment
	query := `
		DELETE FROM quiz_answers WHERE submission_id IN (
			SELECT id FROM submissions WHERE assignment_id = $1 AND student_id = $2
		)`
	if _, err = tx.ExecContext(ctx, query, sub.AssignmentID, sub.StudentID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "deleting prior quiz answers")
	}
	query = "DELETE FROM submissions WHERE assignment_id = $1 AND student_id = $2"
	if _, err = tx.ExecContext(ctx, query, sub.AssignmentID, sub.StudentID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "deleting prior submission")
	}

	query = `
		INSERT INTO submissions (id, assignment_id, student_id, file_url, status, marks, total_marks, feedback, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, query,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.FileURL, sub.Status,
		sub.Marks, sub.TotalMarks, sub.Feedback, sub.SubmittedAt,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "creating submission")
	}

	query = `
		INSERT INTO quiz_answers (id, submission_id, question_id, student_id, answer_text, marks)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range answers {
		answers[i].ID = uuid.New().String()
		answers[i].SubmissionID = sub.ID
		ans := answers[i]
		_, err = tx.ExecContext(ctx, query,
			ans.ID, ans.SubmissionID, ans.QuestionID, ans.StudentID, ans.AnswerText, ans.Marks,
		)
		if err != nil {
			return submission.Submission{}, errors.Wrap(err, "creating quiz answer")
		}
	}

	if err = tx.Commit(); err != nil {
		return submission.Submission{}, errors.Wrap(err, "committing tx")
	}
	return sub, nil
}

func (repo *SubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (submission.Submission, error) {
	var row submissionRow
	query := "SELECT *, '' AS student_name FROM submissions WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.submission(), nil
}

func (repo *SubmissionRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	var row submissionRow
	query := "SELECT *, '' AS student_name FROM submissions WHERE assignment_id = $1 AND student_id = $2"
	if err := repo.db.GetContext(ctx, &row, query, assignmentID, studentID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "getting student submission")
	}
	return row.submission(), nil
}

func (repo *SubmissionRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]submission.Submission, error) {
	var rows []submissionRow
	query := `
		SELECT s.*, u.name AS student_name
		FROM submissions s
		JOIN users u ON u.id = s.student_id
		WHERE s.assignment_id = $1
		ORDER BY ` + byLatestSubmitted.String()
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (repo *SubmissionRepository) QuerySubmittedAssignmentIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	query := "SELECT assignment_id FROM submissions WHERE student_id = $1"
	if err := repo.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying submitted assignment IDs")
	}
	return ids, nil
}

func (repo *SubmissionRepository) QueryReviewAnswers(ctx context.Context, submissionID string) ([]submission.ReviewAnswer, error) {
	var rows []reviewAnswerRow
	query := `
		SELECT q.id AS question_id, q.text AS question_text, q.correct_answer, a.answer_text, a.marks
		FROM quiz_answers a
		JOIN quiz_questions q ON q.id = a.question_id
		WHERE a.submission_id = $1
		ORDER BY ` + byQuestionPosition.String()
	if err := repo.db.SelectContext(ctx, &rows, query, submissionID); err != nil {
		return nil, errors.Wrap(err, "querying review answers")
	}

	answers := make([]submission.ReviewAnswer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, submission.ReviewAnswer{
			QuestionID:    row.QuestionID,
			QuestionText:  row.QuestionText,
			CorrectAnswer: row.CorrectAnswer,
			AnswerText:    row.AnswerText,
			Marks:         row.Marks,
		})
	}
	return answers, nil
}

func (repo *SubmissionRepository) GradeSubmission(ctx context.Context, id string, marks int, feedback string) (submission.Submission, error) {
	query := `
		UPDATE submissions
		SET marks = $2, feedback = $3, status = $4
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, marks, feedback, submission.StatusReviewed)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "grading submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return repo.GetSubmissionByID(ctx, id)
}

func (repo *SubmissionRepository) GradeQuiz(
	ctx context.Context,
	id string,
	marks map[string]int,
	total int,
	feedback string,
) (submission.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := "UPDATE quiz_answers SET marks = $3 WHERE submission_id = $1 AND question_id = $2"
	for questionID, mark := range marks {
		if _, err = tx.ExecContext(ctx, query, id, questionID, mark); err != nil {
			return submission.Submission{}, errors.Wrap(err, "grading quiz answer")
		}
	}

	query = `
		UPDATE submissions
		SET total_marks = $2, feedback = $3, status = $4
		WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, id, total, feedback, submission.StatusReviewed)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "grading quiz")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}

	if err = tx.Commit(); err != nil {
		return submission.Submission{}, errors.Wrap(err, "committing tx")
	}
	return repo.GetSubmissionByID(ctx, id)
}

func (repo *SubmissionRepository) QueryStudentFeedback(ctx context.Context, studentID string) ([]submission.FeedbackEntry, error) {
	var rows []feedbackEntryRow
	// total_marks wins for quizzes, then manual marks, then the legacy
	// feedback table populated by the system this one replaced.
	query := `
		SELECT a.title AS assignment_title, s.submitted_at, s.status,
		       COALESCE(s.total_marks, s.marks, f.marks) AS final_marks, s.feedback
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		LEFT JOIN feedback f ON f.submission_id = s.id
		WHERE s.student_id = $1
		ORDER BY ` + byOldestSubmitted.String()
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student feedback")
	}

	entries := make([]submission.FeedbackEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, submission.FeedbackEntry{
			AssignmentTitle: row.AssignmentTitle,
			SubmittedAt:     row.SubmittedAt,
			Status:          row.Status,
			FinalMarks:      row.FinalMarks,
			Feedback:        row.Feedback,
		})
	}
	return entries, nil
}
