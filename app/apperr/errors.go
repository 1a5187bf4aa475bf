package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindFeed       Kind = "FeedError"
	KindExtraction Kind = "ExtractionError"
	KindGeneration Kind = "GenerationError"
	KindValidation Kind = "ValidationError"
	KindDelivery   Kind = "DeliveryError"
)

type Code string

const (
	CodeEmptyFeed  Code = "EMPTY_FEED"
	CodeFetchError Code = "FETCH_ERROR"
	CodeParseError Code = "PARSE_ERROR"
	CodeHTTPError  Code = "HTTP_ERROR"

	CodeExtractionFailed Code = "EXTRACTION_FAILED"

	CodeAPIError        Code = "API_ERROR"
	CodeNoCandidates    Code = "NO_CANDIDATES"
	CodeNoContent       Code = "NO_CONTENT"
	CodeURLContextFail  Code = "URL_CONTEXT_FAIL"
	CodeHTMLContentFail Code = "HTML_CONTENT_FAIL"
	CodeInvalidResponse Code = "INVALID_RESPONSE"

	CodeMissingTitle Code = "MISSING_TITLE"
	CodeMissingLink  Code = "MISSING_LINK"
	CodeInvalidURL   Code = "INVALID_URL"

	CodeDeliveryFailed  Code = "DELIVERY_FAILED"
	CodeProcessingError Code = "PROCESSING_ERROR"
)

// Error carries a machine-readable kind and code alongside the usual message
// and wrapped cause.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func New(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, code Code, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s(%s)", e.Kind, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind and code so callers can compare against a template
// built with New.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain, or
// PROCESSING_ERROR when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeProcessingError
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
