package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/workflow"
)

// defaultMaxRetries applies when a start request omits max_retries.
const defaultMaxRetries = 2

// maxRequestBody caps decoded request bodies.
const maxRequestBody = 1 << 20

// StartRunRequest is the body of POST /autonomous/runs.
type StartRunRequest struct {
	JobIDs              []string `json:"job_ids" validate:"required,min=1,max=100,dive,required,uuid"`
	ResumeID            *string  `json:"resume_id,omitempty" validate:"omitempty,uuid"`
	MinScore            *float64 `json:"min_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	SafeMode            bool     `json:"safe_mode"`
	RequireConfirmation bool     `json:"require_confirmation"`
	MaxRetries          *int     `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// BlockerAnswersRequest is the body of POST /applications/{id}/blockers/answers.
type BlockerAnswersRequest struct {
	Answers             map[string]string `json:"answers" validate:"max=50,dive,keys,max=100,endkeys,max=1000"`
	SaveToProfile       bool              `json:"save_to_profile"`
	RetryNow            bool              `json:"retry_now"`
	ResumeID            *string           `json:"resume_id,omitempty" validate:"omitempty,uuid"`
	SafeMode            bool              `json:"safe_mode"`
	RequireConfirmation bool              `json:"require_confirmation"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeStartRun reads and validates a start request.
func decodeStartRun(r *http.Request) (*StartRunRequest, error) {
	return decodeJSON[StartRunRequest](r)
}

// decodeBlockerAnswers reads and validates a blocker answers request.
func decodeBlockerAnswers(r *http.Request) (*BlockerAnswersRequest, error) {
	return decodeJSON[BlockerAnswersRequest](r)
}

func decodeJSON[T any](r *http.Request) (*T, error) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ErrBadRequest{Message: "request body is empty"}
		}
		return nil, &ErrBadRequest{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// validateRequest runs struct validation and reports the first failure.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ErrValidation{Field: "request", Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i > 0 {
		field = field[:i]
	}
	return &ErrValidation{Field: field, Message: validationMessage(fe)}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "uuid":
		return fmt.Sprintf("%q is not a valid UUID", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ToStartRequest converts a validated request to the workflow form.
func (r *StartRunRequest) ToStartRequest() (workflow.StartRequest, error) {
	jobIDs := make([]uuid.UUID, 0, len(r.JobIDs))
	for _, raw := range r.JobIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return workflow.StartRequest{}, &ErrValidation{Field: "job_ids", Message: fmt.Sprintf("%q is not a valid UUID", raw)}
		}
		jobIDs = append(jobIDs, id)
	}

	req := workflow.StartRequest{
		JobIDs:              jobIDs,
		MinScore:            r.MinScore,
		SafeMode:            r.SafeMode,
		RequireConfirmation: r.RequireConfirmation,
		MaxRetries:          defaultMaxRetries,
	}
	if r.MaxRetries != nil {
		req.MaxRetries = *r.MaxRetries
	}
	if r.ResumeID != nil {
		id, err := uuid.Parse(*r.ResumeID)
		if err != nil {
			return workflow.StartRequest{}, &ErrValidation{Field: "resume_id", Message: fmt.Sprintf("%q is not a valid UUID", *r.ResumeID)}
		}
		req.ResumeID = &id
	}
	return req, nil
}

// ToAnswerRequest converts a validated request to the workflow form.
func (r *BlockerAnswersRequest) ToAnswerRequest(appID uuid.UUID) (workflow.AnswerRequest, error) {
	req := workflow.AnswerRequest{
		ApplicationID:       appID,
		Answers:             r.Answers,
		SaveToProfile:       r.SaveToProfile,
		RetryNow:            r.RetryNow,
		SafeMode:            r.SafeMode,
		RequireConfirmation: r.RequireConfirmation,
	}
	if r.ResumeID != nil {
		id, err := uuid.Parse(*r.ResumeID)
		if err != nil {
			return workflow.AnswerRequest{}, &ErrValidation{Field: "resume_id", Message: fmt.Sprintf("%q is not a valid UUID", *r.ResumeID)}
		}
		req.ResumeID = &id
	}
	return req, nil
}
