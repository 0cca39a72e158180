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
	"github.com/trezcool/kazi/core/assignment"
)

var (
	byNewestCreated  = core.DBOrdering{Field: "created_at"}
	byLatestDeadline = core.DBOrdering{Field: "a.deadline"}
	byPosition       = core.DBOrdering{Field: "position", Ascending: true}
)

type assignmentRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Deadline    time.Time   `db:"deadline"`
	CreatedBy   string      `db:"created_by"`
	Kind        string      `db:"kind"`
	Attachment  null.String `db:"attachment"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`

	CreatedByName string `db:"created_by_name"`
}

func (row assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:            row.ID,
		Title:         row.Title,
		Description:   row.Description,
		Deadline:      row.Deadline,
		CreatedBy:     row.CreatedBy,
		Kind:          row.Kind,
		Attachment:    row.Attachment,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		CreatedByName: row.CreatedByName,
	}
}

type quizQuestionRow struct {
	ID            string `db:"id"`
	AssignmentID  string `db:"assignment_id"`
	Text          string `db:"text"`
	OptionA       string `db:"option_a"`
	OptionB       string `db:"option_b"`
	OptionC       string `db:"option_c"`
	OptionD       string `db:"option_d"`
	CorrectAnswer string `db:"correct_answer"`
	Position      int    `db:"position"`
}

func (row quizQuestionRow) question() assignment.QuizQuestion {
	return assignment.QuizQuestion{
		ID:            row.ID,
		AssignmentID:  row.AssignmentID,
		Text:          row.Text,
		OptionA:       row.OptionA,
		OptionB:       row.OptionB,
		OptionC:       row.OptionC,
		OptionD:       row.OptionD,
		CorrectAnswer: row.CorrectAnswer,
		Position:      row.Position,
	}
}

type AssignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*AssignmentRepository)(nil)

func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (repo *AssignmentRepository) CreateAssignment(
	ctx context.Context,
	asg assignment.Assignment,
	questions []assignment.QuizQuestion,
) (assignment.Assignment, error) {
	asg.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO assignments (id, title, description, deadline, created_by, kind, attachment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, query,
		asg.ID, asg.Title, asg.Description, asg.Deadline, asg.CreatedBy, asg.Kind,
		asg.Attachment, asg.CreatedAt, asg.UpdatedAt,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "creating assignment")
	}

	query = `
		INSERT INTO quiz_questions (id, assignment_id, text, option_a, option_b, option_c, option_d, correct_answer, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i := range questions {
		questions[i].ID = uuid.New().String()
		questions[i].AssignmentID = asg.ID
		q := questions[i]
		_, err = tx.ExecContext(ctx, query,
			q.ID, q.AssignmentID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Position,
		)
		if err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "creating quiz question")
		}
	}

	if err = tx.Commit(); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "committing tx")
	}
	return asg, nil
}

func (repo *AssignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	query := "SELECT *, '' AS created_by_name FROM assignments WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.assignment(), nil
}

func (repo *AssignmentRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	query := "SELECT *, '' AS created_by_name FROM assignments WHERE created_by = $1 ORDER BY " + byNewestCreated.String()
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.assignment())
	}
	return asgs, nil
}

func (repo *AssignmentRepository) QueryAllAssignments(ctx context.Context) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	query := `
		SELECT a.*, u.name AS created_by_name
		FROM assignments a
		JOIN users u ON u.id = a.created_by
		ORDER BY ` + byLatestDeadline.String()
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.assignment())
	}
	return asgs, nil
}

func (repo *AssignmentRepository) QueryQuizQuestions(ctx context.Context, assignmentID string) ([]assignment.QuizQuestion, error) {
	var rows []quizQuestionRow
	query := "SELECT * FROM quiz_questions WHERE assignment_id = $1 ORDER BY " + byPosition.String()
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying quiz questions")
	}

	questions := make([]assignment.QuizQuestion, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	// dependent rows first; FKs have no ON DELETE CASCADE
	queries := []string{
		"DELETE FROM feedback WHERE submission_id IN (SELECT id FROM submissions WHERE assignment_id = $1)",
		"DELETE FROM quiz_answers WHERE submission_id IN (SELECT id FROM submissions WHERE assignment_id = $1)",
		"DELETE FROM quiz_questions WHERE assignment_id = $1",
		"DELETE FROM submissions WHERE assignment_id = $1",
		"DELETE FROM assignments WHERE id = $1",
	}
	for _, query := range queries {
		if _, err = tx.ExecContext(ctx, query, id); err != nil {
			return errors.Wrap(err, "deleting assignment")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing tx")
	}
	return nil
}
