package echoapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

type assignmentApi struct {
	svc      assignment.Service
	subSvc   submission.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := assignmentApi{
		svc:      deps.AssignmentSvc,
		subSvc:   deps.SubmissionSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/assignments", jwt)

	ag.POST("", api.create, teacherMiddleware())
	ag.GET("/own", api.queryOwn, teacherMiddleware())
	ag.DELETE("/:id", api.destroy, teacherMiddleware())
	ag.GET("/:id/submissions", api.querySubmissions, teacherMiddleware())

	ag.GET("", api.query, studentMiddleware())
	ag.GET("/:id/quiz", api.startQuiz, studentMiddleware())
	ag.POST("/:id/submissions", api.submitFile, studentMiddleware())
	ag.POST("/:id/quiz-submissions", api.submitQuiz, studentMiddleware())
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	data, fh, err := bindNewAssignment(ctx)
	if err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	teacher, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var upload *core.Upload
	if fh != nil {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening attachment")
		}
		defer f.Close()
		upload = &core.Upload{Filename: fh.Filename, Content: f}
	}

	asg, err := api.svc.Create(teacher, data, upload)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

// bindNewAssignment reads a NewAssignment from either a JSON body or a
// multipart form. The multipart form carries an optional "attachment" file
// and its "questions" field is a JSON array. The attachment's header is
// returned unopened; the caller owns the handle's lifetime.
func bindNewAssignment(ctx echo.Context) (assignment.NewAssignment, *multipart.FileHeader, error) {
	var data assignment.NewAssignment

	if _, err := ctx.MultipartForm(); err != nil {
		// not multipart; fall back to JSON binding
		if err = ctx.Bind(&data); err != nil {
			return data, nil, errors.Wrap(err, "binding to NewAssignment")
		}
		return data, nil, nil
	}

	data.Title = ctx.FormValue("title")
	data.Description = ctx.FormValue("description")
	data.Kind = ctx.FormValue("kind")
	if raw := ctx.FormValue("deadline"); raw != "" {
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return data, nil, core.NewValidationError(nil, core.FieldError{Field: "deadline", Error: "invalid deadline"})
		}
		data.Deadline = deadline
	}
	if raw := ctx.FormValue("questions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data.Questions); err != nil {
			return data, nil, core.NewValidationError(nil, core.FieldError{Field: "questions", Error: "invalid questions"})
		}
	}

	fh, err := ctx.FormFile("attachment")
	if err != nil {
		return data, nil, nil // no attachment
	}
	return data, fh, nil
}

func (api *assignmentApi) queryOwn(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asgs, err := api.svc.QueryOwn(teacher.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asgs, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	submittedIDs, err := api.subSvc.SubmittedAssignmentIDs(student.ID)
	if err != nil {
		return errors.Wrap(err, "querying submitted assignment IDs")
	}

	submitted := make(map[string]struct{}, len(submittedIDs))
	for _, id := range submittedIDs {
		submitted[id] = struct{}{}
	}
	res := make([]assignment.StudentAssignment, 0, len(asgs))
	for _, asg := range asgs {
		_, done := submitted[asg.ID]
		res = append(res, assignment.StudentAssignment{Assignment: asg, Submitted: done})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) startQuiz(ctx echo.Context) error {
	asg, questions, err := api.svc.StartQuiz(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting quiz")
	}
	return ctx.JSON(http.StatusOK, StartQuizResponse{Assignment: asg, Questions: questions})
}

func (api *assignmentApi) submitFile(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer f.Close()

	sub, err := api.subSvc.SubmitFile(student, ctx.Param("id"), core.Upload{Filename: fh.Filename, Content: f})
	if err != nil {
		return errors.Wrap(err, "submitting file")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) submitQuiz(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data submission.NewQuizSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuizSubmission")
	}

	sub, err := api.subSvc.SubmitQuiz(student, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	if _, err := api.svc.Get(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting assignment")
	}

	subs, err := api.subSvc.QueryByAssignment(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	requester, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Param("id"), requester); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type StartQuizResponse struct {
	Assignment assignment.Assignment            `json:"assignment"`
	Questions  []assignment.StudentQuizQuestion `json:"questions"`
}
