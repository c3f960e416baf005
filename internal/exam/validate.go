package exam

import (
	"github.com/go-playground/validator/v10"
)

// ValidationError wraps the validator's field errors for an input or a
// store write.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(ruleStructLevel, Rule{})
	v.RegisterStructValidation(questionStructLevel, Question{})
	return v
}

// Validate checks v against its struct tags and the registered struct-level
// rules.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// A fixed rule names one question and nothing else; a dynamic rule never
// names a question.
func ruleStructLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(Rule)
	if !r.Fixed() {
		return
	}
	if *r.QuestionID == "" {
		sl.ReportError(r.QuestionID, "QuestionID", "question_id", "required", "")
	}
	if r.QuestionsCount != 1 {
		sl.ReportError(r.QuestionsCount, "QuestionsCount", "questions_count", "eq", "1")
	}
	if r.QuestionType != nil {
		sl.ReportError(r.QuestionType, "QuestionType", "question_type", "excluded_with", "QuestionID")
	}
	if len(r.CategoryIDs) > 0 {
		sl.ReportError(r.CategoryIDs, "CategoryIDs", "category_ids", "excluded_with", "QuestionID")
	}
}

func questionStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	switch q.Type {
	case TypeOptions:
		if len(q.CorrectOptionIDs()) == 0 {
			sl.ReportError(q.Options, "Options", "options", "one_correct", "")
		}
		if q.MaxLength != nil {
			sl.ReportError(q.MaxLength, "MaxLength", "max_length", "excluded_if", "Type options")
		}
	case TypeDiscursive:
		if len(q.Options) > 0 {
			sl.ReportError(q.Options, "Options", "options", "excluded_if", "Type discursive")
		}
	}
}
