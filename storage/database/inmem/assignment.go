package inmem

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/kazi/core/assignment"
)

type AssignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*AssignmentRepository)(nil)

func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (repo *AssignmentRepository) CreateAssignment(
	_ context.Context,
	asg assignment.Assignment,
	questions []assignment.QuizQuestion,
) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignments[asg.ID] = asg
	for _, q := range questions {
		q.ID = uuid.New().String()
		q.AssignmentID = asg.ID
		repo.db.questions[q.ID] = q
	}
	return asg, nil
}

func (repo *AssignmentRepository) GetAssignmentByID(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *AssignmentRepository) QueryAssignmentsByTeacher(_ context.Context, teacherID string) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var asgs []assignment.Assignment
	for _, asg := range repo.db.assignments {
		if asg.CreatedBy == teacherID {
			asgs = append(asgs, asg)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.After(asgs[j].CreatedAt) })
	return asgs, nil
}

func (repo *AssignmentRepository) QueryAllAssignments(_ context.Context) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var asgs []assignment.Assignment
	for _, asg := range repo.db.assignments {
		if creator, ok := repo.db.users[asg.CreatedBy]; ok {
			asg.CreatedByName = creator.Name
		}
		asgs = append(asgs, asg)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].Deadline.After(asgs[j].Deadline) })
	return asgs, nil
}

func (repo *AssignmentRepository) QueryQuizQuestions(_ context.Context, assignmentID string) ([]assignment.QuizQuestion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var questions []assignment.QuizQuestion
	for _, q := range repo.db.questions {
		if q.AssignmentID == assignmentID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return questions, nil
}

func (repo *AssignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID != id {
			continue
		}
		delete(repo.db.legacyMarks, subID)
		for ansID, ans := range repo.db.answers {
			if ans.SubmissionID == subID {
				delete(repo.db.answers, ansID)
			}
		}
		delete(repo.db.submissions, subID)
	}
	for qID, q := range repo.db.questions {
		if q.AssignmentID == id {
			delete(repo.db.questions, qID)
		}
	}
	delete(repo.db.assignments, id)
	return nil
}
