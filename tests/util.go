package testutil

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/storage/files"
)

// FileStore is an in-memory core.FileStorage for tests.
type FileStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ core.FileStorage = (*FileStore)(nil)

func NewFileStore() *FileStore {
	return &FileStore{blobs: make(map[string][]byte)}
}

func (fs *FileStore) Save(_ context.Context, key string, r io.Reader) (string, error) {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	fs.mu.Lock()
	fs.blobs[key] = content
	fs.mu.Unlock()
	return key, nil
}

func (fs *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if content, ok := fs.blobs[key]; ok {
		return ioutil.NopCloser(bytes.NewReader(content)), nil
	}
	return nil, files.ErrNotFound
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	delete(fs.blobs, key)
	fs.mu.Unlock()
	return nil
}

// Keys returns the stored keys.
func (fs *FileStore) Keys() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	keys := make([]string, 0, len(fs.blobs))
	for key := range fs.blobs {
		keys = append(keys, key)
	}
	return keys
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	title, kind, teacherID string,
	deadline time.Time,
	questions ...assignment.QuizQuestion,
) assignment.Assignment {
	t.Helper()

	now := time.Now().UTC()
	asg := assignment.Assignment{
		Title:     title,
		Kind:      kind,
		CreatedBy: teacherID,
		Deadline:  deadline.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	asg, err := repo.CreateAssignment(context.Background(), asg, questions)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	assignmentID, studentID, fileURL string,
	submittedAt time.Time,
	answers ...submission.QuizAnswer,
) submission.Submission {
	t.Helper()

	sub := submission.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FileURL:      null.StringFrom(fileURL),
		Status:       submission.StatusSubmitted,
		SubmittedAt:  submittedAt.UTC(),
	}
	sub, err := repo.ReplaceSubmission(context.Background(), sub, answers)
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}
