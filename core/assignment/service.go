package assignment

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("assignment not found")
	ErrDeadlinePassed   = errors.New("deadline has passed")
	ErrPermissionDenied = errors.New("permission denied")
)

type (
	Repository interface {
		// CreateAssignment inserts the assignment and its quiz questions in a
		// single transaction.
		CreateAssignment(ctx context.Context, asg Assignment, questions []QuizQuestion) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		// QueryAssignmentsByTeacher returns a teacher's own assignments, most
		// recently created first.
		QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]Assignment, error)
		// QueryAllAssignments returns all assignments with their creator's
		// name, furthest deadline first.
		QueryAllAssignments(ctx context.Context) ([]Assignment, error)
		QueryQuizQuestions(ctx context.Context, assignmentID string) ([]QuizQuestion, error)
		// DeleteAssignment removes the assignment and all dependent rows
		// (legacy feedback, quiz answers, quiz questions, submissions) in a
		// single transaction. Deleting an unknown ID is not an error.
		DeleteAssignment(ctx context.Context, id string) error
	}

	Service interface {
		Create(teacher user.User, na NewAssignment, attachment *core.Upload) (Assignment, error)
		Get(id string) (Assignment, error)
		QueryOwn(teacherID string) ([]Assignment, error)
		QueryAll() ([]Assignment, error)
		Questions(assignmentID string) ([]QuizQuestion, error)
		// StartQuiz returns the assignment and its questions redacted for a
		// student, gated on the deadline.
		StartQuiz(assignmentID string) (Assignment, []StudentQuizQuestion, error)
		Delete(id string, requester user.User) error
	}

	service struct {
		repo      Repository
		fileStore core.FileStorage
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, fileStore core.FileStorage) Service {
	return &service{
		repo:      repo,
		fileStore: fileStore,
	}
}

func (svc *service) Create(teacher user.User, na NewAssignment, attachment *core.Upload) (Assignment, error) {
	ctx := context.Background()
	now := core.NowFunc().UTC()
	asg := Assignment{
		Title:       na.Title,
		Description: na.Description,
		Deadline:    na.Deadline.UTC(),
		CreatedBy:   teacher.ID,
		Kind:        na.Kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if na.Kind == KindFile && attachment != nil {
		key := "assignments/" + uuid.New().String() + "/" + filepath.Base(attachment.Filename)
		key, err := svc.fileStore.Save(ctx, key, attachment.Content)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "storing attachment")
		}
		asg.Attachment = null.StringFrom(key)
	}

	questions := make([]QuizQuestion, 0, len(na.Questions))
	if na.Kind == KindQuiz {
		for i, nq := range na.Questions {
			questions = append(questions, QuizQuestion{
				Text:          nq.Text,
				OptionA:       nq.OptionA,
				OptionB:       nq.OptionB,
				OptionC:       nq.OptionC,
				OptionD:       nq.OptionD,
				CorrectAnswer: nq.CorrectAnswer,
				Position:      i,
			})
		}
	}
	return svc.repo.CreateAssignment(ctx, asg, questions)
}

func (svc *service) Get(id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(context.Background(), id)
}

func (svc *service) QueryOwn(teacherID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByTeacher(context.Background(), teacherID)
}

func (svc *service) QueryAll() ([]Assignment, error) {
	return svc.repo.QueryAllAssignments(context.Background())
}

func (svc *service) Questions(assignmentID string) ([]QuizQuestion, error) {
	return svc.repo.QueryQuizQuestions(context.Background(), assignmentID)
}

func (svc *service) StartQuiz(assignmentID string) (Assignment, []StudentQuizQuestion, error) {
	asg, err := svc.Get(assignmentID)
	if err != nil {
		return Assignment{}, nil, err
	}
	if asg.DeadlinePassed() {
		return Assignment{}, nil, ErrDeadlinePassed
	}

	questions, err := svc.Questions(assignmentID)
	if err != nil {
		return Assignment{}, nil, err
	}
	redacted := make([]StudentQuizQuestion, 0, len(questions))
	for _, q := range questions {
		redacted = append(redacted, q.StudentView())
	}
	return asg, redacted, nil
}

func (svc *service) Delete(id string, requester user.User) error {
	asg, err := svc.Get(id)
	if err != nil {
		return err
	}
	if asg.CreatedBy != requester.ID && !requester.IsAdmin() {
		return ErrPermissionDenied
	}
	return svc.repo.DeleteAssignment(context.Background(), id)
}
