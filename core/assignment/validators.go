package assignment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
)

var (
	quizQuestionsTag  = "quizquestions"
	quizQuestionsText = "a quiz assignment requires at least one question"

	noQuestionsTag  = "noquestions"
	noQuestionsText = "only quiz assignments may carry questions"
)

// InitValidators registers assignment-specific validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newAssignmentStructValidation, NewAssignment{})
	core.RegisterCustomTranslation(validate, translator, quizQuestionsTag, quizQuestionsText)
	core.RegisterCustomTranslation(validate, translator, noQuestionsTag, noQuestionsText)
}

// newAssignmentStructValidation ties the question list to the quiz kind.
func newAssignmentStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAssignment)
	if !ok {
		return
	}
	switch na.Kind {
	case KindQuiz:
		if len(na.Questions) == 0 {
			sl.ReportError(na.Questions, "questions", "Questions", quizQuestionsTag, "")
		}
	default:
		if len(na.Questions) > 0 {
			sl.ReportError(na.Questions, "questions", "Questions", noQuestionsTag, "")
		}
	}
}
