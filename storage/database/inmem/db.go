// Package inmem provides in-memory repository implementations used by
// tests and local development without a database.
package inmem

import (
	"sync"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

// DB holds all in-memory tables behind a single lock so multi-table
// writes stay atomic like their SQL counterparts.
type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	assignments map[string]assignment.Assignment
	questions   map[string]assignment.QuizQuestion
	submissions map[string]submission.Submission
	answers     map[string]submission.QuizAnswer
	legacyMarks map[string]int // legacy feedback table: submission ID to marks
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]user.User),
		assignments: make(map[string]assignment.Assignment),
		questions:   make(map[string]assignment.QuizQuestion),
		submissions: make(map[string]submission.Submission),
		answers:     make(map[string]submission.QuizAnswer),
		legacyMarks: make(map[string]int),
	}
}

// SetLegacyMarks seeds the legacy feedback table for reporting tests.
func (db *DB) SetLegacyMarks(submissionID string, marks int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.legacyMarks[submissionID] = marks
}
