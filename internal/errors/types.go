// Package errors defines the error taxonomy shared by the crawler.
//
// Network and parse failures are contained to the branch of the crawl that
// produced them; only registry exhaustion ends a stream. Callers classify
// errors with the Is* helpers rather than by inspecting messages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeExhausted  ErrorType = "exhausted"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is a structured error type with context.
type Error struct {
	Type        ErrorType
	Code        string
	Message     string
	URL         string
	StatusCode  int
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	if e.URL != "" {
		location := e.URL
		if e.StatusCode > 0 {
			location += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
		}
		parts = append(parts, location)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component

	return e
}

// Error creation functions

// NewNetworkError creates a transport or non-success response error.
// statusCode is zero for transport failures.
func NewNetworkError(code, url string, statusCode int, cause error) *Error {
	msg := "request failed"
	if statusCode > 0 {
		msg = "unexpected response"
	}

	return &Error{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     msg,
		URL:         url,
		StatusCode:  statusCode,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewParseError creates an error for a page whose expected structure is absent.
func NewParseError(code, url, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeParse,
		Code:        code,
		Message:     message,
		URL:         url,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewExhaustionError creates the terminal error raised when the registry stops
// yielding usable pages.
func NewExhaustionError(lastPage, emptyPages int) *Error {
	return &Error{
		Type:    ErrorTypeExhausted,
		Code:    ErrCodeRegistryExhausted,
		Message: fmt.Sprintf("registry exhausted after %d consecutive empty pages", emptyPages),
		Context: map[string]interface{}{
			"last_page":   lastPage,
			"empty_pages": emptyPages,
		},
		Recoverable: false,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}

	return false
}

// IsNetwork reports whether err is a transport or HTTP status failure.
func IsNetwork(err error) bool {
	return HasErrorType(err, ErrorTypeNetwork)
}

// IsParse reports whether err is a missing-structure failure.
func IsParse(err error) bool {
	return HasErrorType(err, ErrorTypeParse)
}

// IsExhausted reports whether err signals the end of the registry.
func IsExhausted(err error) bool {
	return HasErrorType(err, ErrorTypeExhausted)
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}

	return 0
}

// ErrorHandler provides centralized logging of contained errors.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its type. Recoverable errors are
// warnings because the crawl carries on past them.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error(ctx, err, "Unhandled error occurred", fields...)
		return
	}

	fields = append(fields, "type", e.Type, "code", e.Code)
	if e.URL != "" {
		fields = append(fields, "url", e.URL)
	}

	switch e.Type {
	case ErrorTypeNetwork:
		if e.StatusCode > 0 {
			fields = append(fields, "status", e.StatusCode)
		}
		h.logger.Warn(ctx, err, "Network error, skipping branch", fields...)
	case ErrorTypeParse:
		h.logger.Warn(ctx, err, "Unexpected page structure, skipping branch", fields...)
	case ErrorTypeExhausted:
		h.logger.Warn(ctx, err, "Registry exhausted", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeTransport         = "ERR_TRANSPORT"
	ErrCodeHTTPStatus        = "ERR_HTTP_STATUS"
	ErrCodeBodyTooLarge      = "ERR_BODY_TOO_LARGE"
	ErrCodeMalformedJSON     = "ERR_MALFORMED_JSON"
	ErrCodeMalformedHTML     = "ERR_MALFORMED_HTML"
	ErrCodeInvalidURL        = "ERR_INVALID_URL"
	ErrCodeRegistryExhausted = "ERR_REGISTRY_EXHAUSTED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
	Suggestions() []string
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// Suggestions returns helpful suggestions for fixing the error.
func (fve *FieldValidationError) Suggestions() []string {
	return fve.HelpText
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	msgs := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		msgs = append(msgs, err.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(msgs, "; "))
}

// Add adds a validation error to the collection.
func (vec *ValidationErrorCollection) Add(err ValidationError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Add(NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ErrorOrNil returns the collection as an error, or nil when it is empty.
func (vec *ValidationErrorCollection) ErrorOrNil() error {
	if !vec.HasErrors() {
		return nil
	}

	return vec
}
