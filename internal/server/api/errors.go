package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
)

const internalErrorMessage = "Internal server error"

// StatusFor maps an error to an HTTP status. The outermost common.Error
// decides; errors outside the taxonomy are internal failures.
func StatusFor(err error) int {
	var e *common.Error
	kind := err
	if errors.As(err, &e) {
		kind = e.Kind
	}

	switch kind {
	case common.ErrorInvalidInput,
		common.ErrorAlreadyExists,
		common.ErrorMissingDependency,
		common.ErrorUnauthorized,
		common.ErrTokenExpired,
		common.ErrorLimitExceeded:
		return http.StatusBadRequest
	case common.ErrorForbidden:
		return http.StatusForbidden
	case common.ErrorNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Fail builds the Result for err. Internal failures are logged; their
// payload only carries the caller-facing message.
func Fail(ctx context.Context, log logging.Logger, err error) Result {
	status := StatusFor(err)

	msg := internalErrorMessage
	var e *common.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", "status", status, "error", err)
	}
	return Result{StatusCode: status, Payload: ErrorPayload{Error: msg}}
}

// OK is a 200 Result carrying payload, which may be nil.
func OK(payload any) Result {
	return Result{StatusCode: http.StatusOK, Payload: payload}
}

// decodeBody unmarshals the command body into v. Type mismatches name the
// offending field.
func decodeBody(body json.RawMessage, v any) error {
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return common.WrapError(common.ErrorInvalidInput, "request body must be a JSON object", err)
		}
		return common.WrapError(common.ErrorInvalidInput,
			fmt.Sprintf("%s must be of type %s", typeErr.Field, jsonType(typeErr.Type.String())), err)
	}
	return common.WrapError(common.ErrorInvalidInput, "malformed request body", err)
}

func jsonType(goType string) string {
	switch goType {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "int", "int64", "float64":
		return "number"
	case "[]int":
		return "array of numbers"
	default:
		return goType
	}
}
