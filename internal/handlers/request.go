package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"route-pricing/internal/models"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 16

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return models.ValidatePostalCode(fl.FieldName(), fl.Field().String()) == nil
	})

	return v
}

// PricingRequest is the body of POST /api/pricing
type PricingRequest struct {
	StartPostalCode string   `json:"start_postal_code" validate:"required,max=10,postalcode"`
	EndPostalCode   string   `json:"end_postal_code" validate:"required,max=10,postalcode"`
	Sources         []string `json:"sources" validate:"omitempty,dive,oneof=timocom transeu orders"`
	IncludeDistance *bool    `json:"include_distance" default:"true"`
}

// FieldError is one failed validation rule
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RequestError is returned when a request body cannot be bound
type RequestError struct {
	Fields []FieldError
}

func (e *RequestError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// readPricingRequest decodes, defaults and validates the request body
func readPricingRequest(ctx context.Context, r *http.Request) (*PricingRequest, error) {
	var req PricingRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, &RequestError{Fields: []FieldError{{
			Code:    "ERR_BODY",
			Message: fmt.Sprintf("invalid JSON body: %v", err),
		}}}
	}

	if err := defaults.Set(&req); err != nil {
		return nil, err
	}

	if err := validate.StructCtx(ctx, &req); err != nil {
		return nil, validationErrors(err)
	}

	return &req, nil
}

func validationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return &RequestError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "postalcode":
		return fmt.Sprintf("%s: invalid postal code format, expected country code and digits (e.g. PL50, DE10)", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func (req *PricingRequest) includeDistance() bool {
	return req.IncludeDistance == nil || *req.IncludeDistance
}

func (req *PricingRequest) sources() []models.Source {
	out := make([]models.Source, 0, len(req.Sources))
	for _, s := range req.Sources {
		out = append(out, models.Source(s))
	}
	return out
}
