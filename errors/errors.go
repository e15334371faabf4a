package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for logging and the client-facing payload.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeNotFound            Code = "NOT_FOUND"
	CodeNoCaptions          Code = "NO_CAPTIONS"
	CodeAudioUnavailable    Code = "AUDIO_UNAVAILABLE"
	CodeTranscriptionFailed Code = "TRANSCRIPTION_FAILED"
	CodeCacheUnavailable    Code = "CACHE_UNAVAILABLE"
	CodeTimeout             Code = "TIMEOUT"
	CodeInternal            Code = "INTERNAL_ERROR"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNoCaptions, CodeAudioUnavailable, CodeTranscriptionFailed:
		return http.StatusBadGateway
	case CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, op string, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return New(CodeValidation, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return New(CodeNotFound, op, err, message)
}

func NoCaptions(op string, err error, message string) *AppError {
	return New(CodeNoCaptions, op, err, message)
}

func AudioUnavailable(op string, err error, message string) *AppError {
	return New(CodeAudioUnavailable, op, err, message)
}

func TranscriptionFailed(op string, err error, message string) *AppError {
	return New(CodeTranscriptionFailed, op, err, message)
}

func CacheUnavailable(op string, err error, message string) *AppError {
	return New(CodeCacheUnavailable, op, err, message)
}

func Timeout(op string, err error, message string) *AppError {
	return New(CodeTimeout, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return New(CodeInternal, op, err, message)
}

// GetCode returns the classification of err, or CodeInternal for
// errors that did not originate from this package.
func GetCode(err error) Code {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

func IsNoCaptions(err error) bool {
	return IsCode(err, CodeNoCaptions)
}
