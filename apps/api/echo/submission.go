package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

type submissionApi struct {
	svc      submission.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{
		svc:      deps.SubmissionSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/submissions", jwt)
	sg.GET("/:id/answers", api.queryAnswers, teacherMiddleware())
	sg.POST("/:id/grade", api.grade, teacherMiddleware())
	sg.POST("/:id/grade-quiz", api.gradeQuiz, teacherMiddleware())

	mg := g.Group("/me", jwt)
	mg.GET("/feedback", api.feedback, studentMiddleware())
}

// Handlers

func (api *submissionApi) queryAnswers(ctx echo.Context) error {
	answers, err := api.svc.Answers(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying answers")
	}
	if answers == nil {
		answers = []submission.ReviewAnswer{}
	}
	return ctx.JSON(http.StatusOK, answers)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	var data submission.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) gradeQuiz(ctx echo.Context) error {
	var data submission.GradeQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.GradeQuiz(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading quiz")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) feedback(ctx echo.Context) error {
	student, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	report, err := api.svc.StudentFeedback(student.ID)
	if err != nil {
		return errors.Wrap(err, "querying student feedback")
	}
	return ctx.JSON(http.StatusOK, report)
}
