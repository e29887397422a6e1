package pkgerrors

import (
	"errors"
	"fmt"
)

const (
	CodeDuplicateKey      = -1001
	CodeNotFound          = -1002
	CodeConflict          = -1003
	CodeInsufficientFunds = -1004
	CodeJSONParsing       = -1005
	CodeUnknown           = -9999
)

type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

var (
	ErrDuplicateKey      = &AppError{Code: CodeDuplicateKey, Message: "duplicate key violation"}
	ErrNotFound          = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrConflict          = &AppError{Code: CodeConflict, Message: "conflict"}
	ErrInsufficientFunds = &AppError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
)

func NewDuplicateKeyError(err error) *AppError {
	return &AppError{
		Code:    CodeDuplicateKey,
		Message: "duplicate key violation",
		Err:     err,
	}
}

func NewNotFoundError(err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: "not found",
		Err:     err,
	}
}

func NewConflictError(err error) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: "conflict",
		Err:     err,
	}
}

func NewJSONParsingError(err error) *AppError {
	return &AppError{
		Code:    CodeJSONParsing,
		Message: "failed to parse JSON",
		Err:     err,
	}
}

func isCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsDuplicateKeyError(err error) bool { return isCode(err, CodeDuplicateKey) }

func IsNotFoundError(err error) bool { return isCode(err, CodeNotFound) }

func IsConflictError(err error) bool { return isCode(err, CodeConflict) }

func GetErrorCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
