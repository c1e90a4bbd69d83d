package errs

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the error currency of the gateway. The code identifies the
// failure class; Detail accumulates call-site context.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap attaches a stack to the error.
func (e *CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg clones the error with extra detail and attaches a stack.
func (e *CodeError) WrapMsg(msg string) error {
	return errors.WithStack(e.WithDetail(msg))
}

// Is matches by code, so errors.Is works across Wrap/WrapMsg clones.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !stderrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Code extracts the failure class from an error chain; 0 if none.
func Code(err error) int {
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func New(msg string) error {
	return errors.New(msg)
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, msg)
}
