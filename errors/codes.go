package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the stable wire representation of a failure.
type Code string

const (
	CodeInvalidIdentity  Code = "INVALID_IDENTITY"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeEmptyMessage     Code = "EMPTY_MESSAGE"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"
	CodeNotConnected     Code = "NOT_CONNECTED"
	CodeInternal         Code = "INTERNAL"
)

var wireCodes = []struct {
	code Code
	err  error
}{
	{CodeInvalidIdentity, ErrInvalidIdentity},
	{CodeInvalidRequest, ErrInvalidRequest},
	{CodeEmptyMessage, ErrEmptyMessage},
	{CodeRateLimited, ErrRateLimited},
	{CodeUnknownOperation, ErrUnknownOperation},
	{CodeNotConnected, ErrNotConnected},
}

// CodeOf returns the wire code of err, CodeInternal when it is not a known sentinel.
func CodeOf(err error) Code {
	for _, c := range wireCodes {
		if stderrors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode rebuilds an error on the receiving side so that errors.Is keeps working
// across the transport boundary.
func FromCode(code Code, message string) error {
	for _, c := range wireCodes {
		if c.code == code {
			if message == "" || message == c.err.Error() {
				return c.err
			}
			return fmt.Errorf("%w: %s", c.err, message)
		}
	}
	return fmt.Errorf("%s: %s", code, message)
}
