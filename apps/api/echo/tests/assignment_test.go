package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	echoapi "github.com/trezcool/kazi/apps/api/echo"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/user"
	testutil "github.com/trezcool/kazi/tests"
)

func newQuizQuestions(n int) []assignment.NewQuizQuestion {
	questions := make([]assignment.NewQuizQuestion, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, assignment.NewQuizQuestion{
			Text:          "Question",
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectAnswer: "A",
		})
	}
	return questions
}

func Test_assignmentApi_create(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacherToken := getToken(t, teacher)

	deadline := time.Now().Add(24 * time.Hour).UTC()
	reqMsg := "this field is required"

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": reqMsg, "kind": reqMsg, "deadline": reqMsg}),
		},
		{
			name: "invalid kind", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assignment.NewAssignment{Title: "Quiz", Kind: "lol", Deadline: deadline}),
			wantData: marchallObj(t, map[string]string{
				"kind": "kind must be one of [written file quiz]",
			}),
		},
		{
			name: "past deadline", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assignment.NewAssignment{
				Title: "Quiz", Kind: assignment.KindWritten, Deadline: time.Now().Add(-time.Hour),
			}),
			wantData: marchallObj(t, map[string]string{"deadline": "must be a date in the future"}),
		},
		{
			name: "quiz without questions", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assignment.NewAssignment{
				Title: "Quiz", Kind: assignment.KindQuiz, Deadline: deadline,
			}),
			wantData: marchallObj(t, map[string]string{"questions": "a quiz assignment requires at least one question"}),
		},
		{
			name: "questions on a written assignment", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assignment.NewAssignment{
				Title: "Essay", Kind: assignment.KindWritten, Deadline: deadline, Questions: newQuizQuestions(1),
			}),
			wantData: marchallObj(t, map[string]string{"questions": "only quiz assignments may carry questions"}),
		},
		{
			name: "invalid question", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assignment.NewAssignment{
				Title: "Quiz", Kind: assignment.KindQuiz, Deadline: deadline,
				Questions: []assignment.NewQuizQuestion{{
					Text: "Q1", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "E",
				}},
			}),
			wantData: marchallObj(t, map[string]string{"correct_answer": "correct_answer must be one of [A B C D]"}),
		},
		{
			name: "created", token: teacherToken, wantCode: http.StatusCreated,
			body: marchallObj(t, assignment.NewAssignment{
				Title: "Quiz 1", Kind: assignment.KindQuiz, Deadline: deadline, Questions: newQuizQuestions(2),
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/assignments"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var asg assignment.Assignment
				if err := json.Unmarshal(rec.Body.Bytes(), &asg); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if asg.ID == "" {
					t.Error("failed! empty assignment ID")
				}
				if asg.CreatedBy != teacher.ID {
					t.Errorf("failed! CreatedBy = %s; want %s", asg.CreatedBy, teacher.ID)
				}
				questions, err := app.asgSvc.Questions(asg.ID)
				if err != nil {
					t.Fatalf("Questions() failed: %v", err)
				}
				if len(questions) != 2 {
					t.Errorf("failed! len(questions) = %d; want 2", len(questions))
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("created with attachment", func(t *testing.T) {
		fields := map[string]string{
			"title":    "Homework",
			"kind":     assignment.KindFile,
			"deadline": deadline.Format(time.RFC3339),
		}
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/assignments", teacherToken, fields, "attachment", "brief.pdf", "pdf bytes")
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var asg assignment.Assignment
		if err := json.Unmarshal(rec.Body.Bytes(), &asg); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !asg.Attachment.Valid {
			t.Fatal("failed! attachment not stored")
		}
		if !strings.HasPrefix(asg.Attachment.String, "assignments/") || !strings.HasSuffix(asg.Attachment.String, "/brief.pdf") {
			t.Errorf("failed! attachment key = %s", asg.Attachment.String)
		}
		if len(app.fileStore.Keys()) != 1 {
			t.Errorf("failed! stored %d files; want 1", len(app.fileStore.Keys()))
		}
	})
}

func Test_assignmentApi_queryOwn(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	idle := testutil.CreateUser(t, app.usrRepo, "Idle", "idle@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	mkAsg := func(usr user.User, title string, deadline time.Time) assignment.Assignment {
		asg, err := app.asgSvc.Create(usr, assignment.NewAssignment{
			Title: title, Kind: assignment.KindWritten, Deadline: deadline,
		}, nil)
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		return asg
	}
	now := time.Now()
	a1 := mkAsg(teacher, "A1", now.Add(time.Hour))
	a2 := mkAsg(teacher, "A2", now.Add(2*time.Hour))
	mkAsg(other, "A3", now.Add(3*time.Hour))

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		// most recently created first
		{name: "own assignments only", token: getToken(t, teacher), wantCode: http.StatusOK, wantData: marchallList(t, a2, a1)},
		{name: "no assignments", token: getToken(t, idle), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/assignments/own"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_query(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	a1, err := app.asgSvc.Create(teacher, assignment.NewAssignment{
		Title: "Essay", Kind: assignment.KindWritten, Deadline: now.Add(time.Hour),
	}, nil)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	a2, err := app.asgSvc.Create(teacher, assignment.NewAssignment{
		Title: "Quiz", Kind: assignment.KindQuiz, Deadline: now.Add(2 * time.Hour), Questions: newQuizQuestions(1),
	}, nil)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// the student has already submitted for a1
	testutil.CreateSubmission(t, app.subRepo, a1.ID, student.ID, "submissions/x/essay.txt", now)

	a1.CreatedByName = teacher.Name
	a2.CreatedByName = teacher.Name
	// furthest deadline first, with the student's submission state
	wantData := marchallList(t,
		assignment.StudentAssignment{Assignment: a2, Submitted: false},
		assignment.StudentAssignment{Assignment: a1, Submitted: true},
	)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Student required", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "assignments with submission state", token: getToken(t, student), wantCode: http.StatusOK, wantData: wantData},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/assignments"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_startQuiz(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	now := time.Now()
	quiz, err := app.asgSvc.Create(teacher, assignment.NewAssignment{
		Title: "Quiz", Kind: assignment.KindQuiz, Deadline: now.Add(time.Hour), Questions: newQuizQuestions(3),
	}, nil)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	closedQuiz := testutil.CreateAssignment(t, app.asgRepo, "Old Quiz", assignment.KindQuiz, teacher.ID, now.Add(-time.Hour))

	tests := []httpTest{
		{name: "Auth required", path: "/v1/assignments/" + quiz.ID + "/quiz", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", path: "/v1/assignments/" + quiz.ID + "/quiz", token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown assignment", path: "/v1/assignments/nope/quiz", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "deadline passed", path: "/v1/assignments/" + closedQuiz.ID + "/quiz", token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "deadline has passed"}),
		},
		{name: "quiz started", path: "/v1/assignments/" + quiz.ID + "/quiz", token: studentToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				// the correct answers must never reach a student
				if strings.Contains(rec.Body.String(), "correct_answer") {
					t.Error("failed! response leaks correct answers")
				}
				var respData echoapi.StartQuizResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Assignment.ID != quiz.ID {
					t.Errorf("failed! assignment ID = %s; want %s", respData.Assignment.ID, quiz.ID)
				}
				if len(respData.Questions) != 3 {
					t.Errorf("failed! len(questions) = %d; want 3", len(respData.Questions))
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_destroy(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin@test.cd", "", user.AllRoles, true)

	now := time.Now()
	asg1 := testutil.CreateAssignment(t, app.asgRepo, "A1", assignment.KindWritten, teacher.ID, now.Add(time.Hour))
	asg2 := testutil.CreateAssignment(t, app.asgRepo, "A2", assignment.KindWritten, teacher.ID, now.Add(time.Hour))

	tests := []httpTest{
		{name: "Auth required", path: "/v1/assignments/" + asg1.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "owner required", path: "/v1/assignments/" + asg1.ID, token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown assignment", path: "/v1/assignments/nope", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "deleted by owner", path: "/v1/assignments/" + asg1.ID, token: getToken(t, teacher), wantCode: http.StatusNoContent},
		{name: "deleted by admin", path: "/v1/assignments/" + asg2.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	if _, err := app.asgSvc.Get(asg1.ID); err != assignment.ErrNotFound {
		t.Errorf("Get() after delete error = %v; want %v", err, assignment.ErrNotFound)
	}
}
