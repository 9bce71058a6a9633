// Package respond writes the JSON envelopes every API handler returns:
//
//	{"data": ...}                                   on success
//	{"error": {"code": "...", "message": "..."}}    on failure
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"go.uber.org/zap"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// OK writes data with 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes data with 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// JSON writes data wrapped in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, successEnvelope{Data: data})
}

// Error maps err onto its HTTP status and writes the error envelope.
// Untyped errors become INTERNAL_ERROR and their text is not exposed.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if typed.Code() != apperr.CodeInternal && typed.Message() != "" {
		msg = typed.Message()
	}

	payload := errorEnvelope{Error: apiError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if log != nil {
		if meta.HTTPStatus >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("error_code", string(typed.Code())), zap.Error(err))
		} else {
			log.Debug("request rejected", zap.String("error_code", string(typed.Code())), zap.Error(err))
		}
	}

	write(w, meta.HTTPStatus, payload)
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
