package submission

import (
	"context"
	"fmt"
	"net/mail"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("submission not found")
)

type (
	Repository interface {
		// ReplaceSubmission inserts the submission and its quiz answers,
		// first deleting any prior submission by the same student for the
		// same assignment, all in a single transaction.
		ReplaceSubmission(ctx context.Context, sub Submission, answers []QuizAnswer) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		// GetStudentSubmission returns the student's submission for the
		// assignment, ErrNotFound when none exists.
		GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		// QuerySubmissionsByAssignment returns submissions with their
		// student's name, most recently submitted first.
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		QuerySubmittedAssignmentIDs(ctx context.Context, studentID string) ([]string, error)
		QueryReviewAnswers(ctx context.Context, submissionID string) ([]ReviewAnswer, error)
		GradeSubmission(ctx context.Context, id string, marks int, feedback string) (Submission, error)
		// GradeQuiz updates each answer's marks and the submission's total,
		// status and feedback in a single transaction.
		GradeQuiz(ctx context.Context, id string, marks map[string]int, total int, feedback string) (Submission, error)
		// QueryStudentFeedback joins the student's submissions with their
		// assignment titles, oldest first; resolved marks fall back to the
		// legacy feedback table when total_marks is absent.
		QueryStudentFeedback(ctx context.Context, studentID string) ([]FeedbackEntry, error)
	}

	Service interface {
		SubmitFile(student user.User, assignmentID string, up core.Upload) (Submission, error)
		SubmitQuiz(student user.User, assignmentID string, nq NewQuizSubmission) (Submission, error)
		Get(id string) (Submission, error)
		QueryByAssignment(assignmentID string) ([]Submission, error)
		SubmittedAssignmentIDs(studentID string) ([]string, error)
		Answers(submissionID string) ([]ReviewAnswer, error)
		Grade(submissionID string, gs GradeSubmission) (Submission, error)
		GradeQuiz(submissionID string, gq GradeQuiz) (Submission, error)
		StudentFeedback(studentID string) (FeedbackReport, error)
	}

	service struct {
		repo      Repository
		asgSvc    assignment.Service
		usrSvc    user.Service
		fileStore core.FileStorage
		mailSvc   core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	asgSvc assignment.Service,
	usrSvc user.Service,
	fileStore core.FileStorage,
	mailSvc core.EmailService,
) Service {
	return &service{
		repo:      repo,
		asgSvc:    asgSvc,
		usrSvc:    usrSvc,
		fileStore: fileStore,
		mailSvc:   mailSvc,
	}
}

// getOpenAssignment loads the assignment and gates on its deadline before
// any write happens.
func (svc *service) getOpenAssignment(assignmentID string) (assignment.Assignment, error) {
	asg, err := svc.asgSvc.Get(assignmentID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if asg.DeadlinePassed() {
		return assignment.Assignment{}, assignment.ErrDeadlinePassed
	}
	return asg, nil
}

func (svc *service) SubmitFile(student user.User, assignmentID string, up core.Upload) (Submission, error) {
	ctx := context.Background()
	asg, err := svc.getOpenAssignment(assignmentID)
	if err != nil {
		return Submission{}, err
	}

	priorKey, err := svc.priorFileKey(ctx, asg.ID, student.ID)
	if err != nil {
		return Submission{}, err
	}

	key := "submissions/" + uuid.New().String() + "/" + filepath.Base(up.Filename)
	key, err = svc.fileStore.Save(ctx, key, up.Content)
	if err != nil {
		return Submission{}, errors.Wrap(err, "storing submission file")
	}

	sub := Submission{
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		FileURL:      null.StringFrom(key),
		Status:       StatusSubmitted,
		SubmittedAt:  core.NowFunc().UTC(),
	}
	sub, err = svc.repo.ReplaceSubmission(ctx, sub, nil)
	if err != nil {
		// the blob has no row pointing at it anymore
		_ = svc.fileStore.Delete(ctx, key)
		return Submission{}, err
	}
	if priorKey != "" {
		_ = svc.fileStore.Delete(ctx, priorKey)
	}
	return sub, nil
}

// priorFileKey returns the file key of the student's existing submission for
// the assignment, "" when there is none.
func (svc *service) priorFileKey(ctx context.Context, assignmentID, studentID string) (string, error) {
	prior, err := svc.repo.GetStudentSubmission(ctx, assignmentID, studentID)
	switch {
	case err == nil:
		return prior.FileURL.String, nil
	case errors.Cause(err) == ErrNotFound:
		return "", nil
	default:
		return "", err
	}
}

func (svc *service) SubmitQuiz(student user.User, assignmentID string, nq NewQuizSubmission) (Submission, error) {
	ctx := context.Background()
	asg, err := svc.getOpenAssignment(assignmentID)
	if err != nil {
		return Submission{}, err
	}

	questions, err := svc.asgSvc.Questions(asg.ID)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		FileURL:      null.StringFrom(""),
		Status:       StatusSubmitted,
		SubmittedAt:  core.NowFunc().UTC(),
	}

	// one answer row per question of the assignment; skipped questions are
	// stored with a null answer.
	answers := make([]QuizAnswer, 0, len(questions))
	for _, q := range questions {
		ans := QuizAnswer{
			QuestionID: q.ID,
			StudentID:  student.ID,
		}
		if text, ok := nq.Answers[q.ID]; ok && text != "" {
			ans.AnswerText = null.StringFrom(text)
		}
		answers = append(answers, ans)
	}
	return svc.repo.ReplaceSubmission(ctx, sub, answers)
}

func (svc *service) Get(id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(context.Background(), id)
}

func (svc *service) QueryByAssignment(assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignment(context.Background(), assignmentID)
}

func (svc *service) SubmittedAssignmentIDs(studentID string) ([]string, error) {
	return svc.repo.QuerySubmittedAssignmentIDs(context.Background(), studentID)
}

func (svc *service) Answers(submissionID string) ([]ReviewAnswer, error) {
	if _, err := svc.Get(submissionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryReviewAnswers(context.Background(), submissionID)
}

func (svc *service) Grade(submissionID string, gs GradeSubmission) (Submission, error) {
	ctx := context.Background()
	if _, err := svc.Get(submissionID); err != nil {
		return Submission{}, err
	}
	sub, err := svc.repo.GradeSubmission(ctx, submissionID, gs.Marks, gs.Feedback)
	if err != nil {
		return Submission{}, err
	}
	svc.sendGradedMail(sub)
	return sub, nil
}

func (svc *service) GradeQuiz(submissionID string, gq GradeQuiz) (Submission, error) {
	ctx := context.Background()
	if _, err := svc.Get(submissionID); err != nil {
		return Submission{}, err
	}
	answers, err := svc.repo.QueryReviewAnswers(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	// marks without a matching question are ignored; questions without
	// marks default to zero.
	marks := make(map[string]int, len(answers))
	var total int
	for _, ans := range answers {
		mark := gq.Marks[ans.QuestionID]
		marks[ans.QuestionID] = mark
		total += mark
	}

	sub, err := svc.repo.GradeQuiz(ctx, submissionID, marks, total, gq.Feedback)
	if err != nil {
		return Submission{}, err
	}
	svc.sendGradedMail(sub)
	return sub, nil
}

func (svc *service) StudentFeedback(studentID string) (FeedbackReport, error) {
	records, err := svc.repo.QueryStudentFeedback(context.Background(), studentID)
	if err != nil {
		return FeedbackReport{}, err
	}

	report := FeedbackReport{
		Records:     records,
		ChartLabels: make([]string, 0, len(records)),
		ChartMarks:  make([]int, 0, len(records)),
	}
	for _, rec := range records {
		report.ChartLabels = append(report.ChartLabels, rec.AssignmentTitle)
		report.ChartMarks = append(report.ChartMarks, rec.FinalMarks.Int) // 0 when absent
	}
	return report, nil
}

func (svc *service) sendGradedMail(sub Submission) {
	student, err := svc.usrSvc.GetByID(sub.StudentID)
	if err != nil {
		return
	}
	asg, err := svc.asgSvc.Get(sub.AssignmentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      fmt.Sprintf("%q has been graded", asg.Title),
		TemplateName: "submission-graded",
		TemplateData: struct {
			Student    user.User
			Assignment assignment.Assignment
			Submission Submission
		}{student, asg, sub},
	})
}
