package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core/submission"
)

type SubmissionRepository struct {
	db *DB
}

var _ submission.Repository = (*SubmissionRepository)(nil)

func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (repo *SubmissionRepository) ReplaceSubmission(
	_ context.Context,
	sub submission.Submission,
	answers []submission.QuizAnswer,
) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for subID, prior := range repo.db.submissions {
		if prior.AssignmentID == sub.AssignmentID && prior.StudentID == sub.StudentID {
			for ansID, ans := range repo.db.answers {
				if ans.SubmissionID == subID {
					delete(repo.db.answers, ansID)
				}
			}
			delete(repo.db.submissions, subID)
		}
	}

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = sub
	for _, ans := range answers {
		ans.ID = uuid.New().String()
		ans.SubmissionID = sub.ID
		repo.db.answers[ans.ID] = ans
	}
	return sub, nil
}

func (repo *SubmissionRepository) GetSubmissionByID(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *SubmissionRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub, nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *SubmissionRepository) QuerySubmissionsByAssignment(_ context.Context, assignmentID string) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var subs []submission.Submission
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID != assignmentID {
			continue
		}
		if student, ok := repo.db.users[sub.StudentID]; ok {
			sub.StudentName = student.Name
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *SubmissionRepository) QuerySubmittedAssignmentIDs(_ context.Context, studentID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID {
			ids = append(ids, sub.AssignmentID)
		}
	}
	return ids, nil
}

func (repo *SubmissionRepository) QueryReviewAnswers(_ context.Context, submissionID string) ([]submission.ReviewAnswer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	type positioned struct {
		answer   submission.ReviewAnswer
		position int
	}
	var rows []positioned
	for _, ans := range repo.db.answers {
		if ans.SubmissionID != submissionID {
			continue
		}
		q, ok := repo.db.questions[ans.QuestionID]
		if !ok {
			continue
		}
		rows = append(rows, positioned{
			answer: submission.ReviewAnswer{
				QuestionID:    ans.QuestionID,
				QuestionText:  q.Text,
				CorrectAnswer: q.CorrectAnswer,
				AnswerText:    ans.AnswerText,
				Marks:         ans.Marks,
			},
			position: q.Position,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].position < rows[j].position })

	answers := make([]submission.ReviewAnswer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.answer)
	}
	return answers, nil
}

func (repo *SubmissionRepository) GradeSubmission(_ context.Context, id string, marks int, feedback string) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	sub.Marks = null.IntFrom(marks)
	sub.Feedback = null.StringFrom(feedback)
	sub.Status = submission.StatusReviewed
	repo.db.submissions[id] = sub
	return sub, nil
}

func (repo *SubmissionRepository) GradeQuiz(
	_ context.Context,
	id string,
	marks map[string]int,
	total int,
	feedback string,
) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}

	for ansID, ans := range repo.db.answers {
		if ans.SubmissionID != id {
			continue
		}
		if mark, ok := marks[ans.QuestionID]; ok {
			ans.Marks = null.IntFrom(mark)
			repo.db.answers[ansID] = ans
		}
	}

	sub.TotalMarks = null.IntFrom(total)
	sub.Feedback = null.StringFrom(feedback)
	sub.Status = submission.StatusReviewed
	repo.db.submissions[id] = sub
	return sub, nil
}

func (repo *SubmissionRepository) QueryStudentFeedback(_ context.Context, studentID string) ([]submission.FeedbackEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var entries []submission.FeedbackEntry
	for subID, sub := range repo.db.submissions {
		if sub.StudentID != studentID {
			continue
		}
		entry := submission.FeedbackEntry{
			SubmittedAt: sub.SubmittedAt,
			Status:      sub.Status,
			Feedback:    sub.Feedback,
		}
		if asg, ok := repo.db.assignments[sub.AssignmentID]; ok {
			entry.AssignmentTitle = asg.Title
		}
		switch {
		case sub.TotalMarks.Valid:
			entry.FinalMarks = sub.TotalMarks
		case sub.Marks.Valid:
			entry.FinalMarks = sub.Marks
		default:
			if legacy, ok := repo.db.legacyMarks[subID]; ok {
				entry.FinalMarks = null.IntFrom(legacy)
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SubmittedAt.Before(entries[j].SubmittedAt) })
	return entries, nil
}
