// Package inputval decodes and validates JSON request bodies and path/query
// identifiers. Failures are returned as apperr VALIDATION_ERROR values with
// a per-field details map keyed by the JSON field name.
package inputval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxBodyBytes bounds request bodies; assignment payloads are tiny.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || IsValidObjectID(s)
	})
	return v
}

// DecodeJSON decodes r's body into dest and runs struct validation.
func DecodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	return Struct(dest)
}

// Struct validates v using its `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fe := range errs {
			details[fe.Field()] = message(fe)
		}
		return apperr.Validation("validation failed").WithDetails(details)
	}
	return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "objectid":
		return "must be a 24-character hex id"
	case "oneof":
		return "must be one of " + fe.Param()
	case "required_without":
		return "is required when " + fe.Param() + " is absent"
	case "excluded_with":
		return "must not be set together with " + fe.Param()
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

// IsValidObjectID reports whether s is a hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// ObjectID parses a required identifier named field.
func ObjectID(s, field string) (primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return primitive.NilObjectID, apperr.Validation(field + " is required").
			WithDetails(map[string]string{field: "is required"})
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + field).
			WithDetails(map[string]string{field: "must be a 24-character hex id"})
	}
	return oid, nil
}

// OptionalObjectID parses an identifier that may be empty.
func OptionalObjectID(s, field string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	oid, err := ObjectID(s, field)
	if err != nil {
		return nil, err
	}
	return &oid, nil
}
