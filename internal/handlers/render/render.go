package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/todoapi/internal/apperrors"
)

const maxBodySize = 1 << 20

var validate = validator.New()

func init() {
	// Return on 'TagName' json tag instead of struct name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		// skip if tag key says it should be ignored
		if name == "-" {
			return ""
		}
		return name
	})
}

type Struct any

type logger interface {
	Error(msg string, args ...any)
}

// Every response has the same envelope
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Details any    `json:"details"`
}

const (
	internalMessage = "Something went wrong!"
	internalDetails = "Please try again later or contact support."
)

var statusByCode = map[string]int{
	apperrors.CodeDuplicateEmail:         http.StatusConflict,
	apperrors.CodeInvalidCredentials:     http.StatusUnauthorized,
	apperrors.CodeInvalidOrExpiredToken:  http.StatusUnauthorized,
	apperrors.CodeInvalidToken:           http.StatusUnauthorized,
	apperrors.CodeTokenExpired:           http.StatusUnauthorized,
	apperrors.CodeUnauthenticated:        http.StatusUnauthorized,
	apperrors.CodeUserNotFound:           http.StatusUnauthorized,
	apperrors.CodeUserDeactivated:        http.StatusUnauthorized,
	apperrors.CodeNotFound:               http.StatusNotFound,
	apperrors.CodeValidation:             http.StatusBadRequest,
	apperrors.CodeDecoding:               http.StatusBadRequest,
	apperrors.CodeDuplicateField:         http.StatusConflict,
	apperrors.CodeRecordNotFound:         http.StatusNotFound,
	apperrors.CodeInvalidReference:       http.StatusBadRequest,
	apperrors.CodeDatabase:               http.StatusInternalServerError,
	apperrors.CodeCacheConnectionRefused: http.StatusServiceUnavailable,
	apperrors.CodeCacheConnectionClosed:  http.StatusServiceUnavailable,
	apperrors.CodeCache:                  http.StatusServiceUnavailable,
}

// HTTP status for the error code; unknown codes are internal errors
func StatusOf(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Render raw data as json with status
func JSON(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

// Render successful response
func Success(w http.ResponseWriter, code int, message string, data any) {
	jsonWithStatus(w, Response{Success: true, Message: message, Data: data}, code)
}

// Render error
// Operational errors are shown as is; anything else is logged and hidden behind generic message
func Error(w http.ResponseWriter, l logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		l.Error("Unexpected error", "error", err)
		renderError(w, http.StatusInternalServerError, internalMessage, apperrors.CodeInternal, internalDetails)
		return
	}

	status := StatusOf(appErr.Code)
	if status >= http.StatusInternalServerError {
		l.Error("Service error", "code", appErr.Code, "error", err)
	}

	renderError(w, status, appErr.Message, appErr.Code, appErr.Message)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	var message string

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &maxBytesErr):
		message = fmt.Sprintf("Request body is too large (maximum %d bytes)", maxBytesErr.Limit)
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	renderError(w, http.StatusBadRequest, "Invalid request body", apperrors.CodeDecoding, message)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Invalid email address"
		default:
			message = "Invalid value"
		}

		fields[fieldError.Field()] = message
	}

	renderError(w, http.StatusBadRequest, "Request validation failed", apperrors.CodeValidation, fields)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

func renderError(w http.ResponseWriter, status int, message string, code string, details any) {
	jsonWithStatus(w, Response{
		Success: false,
		Message: message,
		Data:    nil,
		Error:   &ErrorBody{Code: code, Details: details},
	}, status)
}

// jsonWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
