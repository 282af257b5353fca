package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating an *Error if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	// Keep the location details of an existing *Error
	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Type:        errType,
			Code:        code,
			Message:     message,
			URL:         e.URL,
			StatusCode:  e.StatusCode,
			Cause:       e,
			Context:     e.Context,
			Component:   e.Component,
			Recoverable: e.Recoverable,
		}
	}

	return &Error{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeNetwork || errType == ErrorTypeParse,
	}
}

// GetErrorChain returns all errors in the chain from outermost to innermost
func GetErrorChain(err error) []error {
	var chain []error
	for err != nil {
		chain = append(chain, err)
		err = errors.Unwrap(err)
	}
	return chain
}

// GetRootCause returns the deepest underlying error in the chain
func GetRootCause(err error) error {
	chain := GetErrorChain(err)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// HasErrorCode checks if any error in the chain has the specified code
func HasErrorCode(err error, code string) bool {
	for _, e := range GetErrorChain(err) {
		if te, ok := e.(*Error); ok && te.Code == code {
			return true
		}
	}
	return false
}

// HasErrorType checks if any error in the chain has the specified type
func HasErrorType(err error, errType ErrorType) bool {
	for _, e := range GetErrorChain(err) {
		if te, ok := e.(*Error); ok && te.Type == errType {
			return true
		}
	}
	return false
}
