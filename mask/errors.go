package mask

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned when a step is configured with an out-of-range value.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParamError describes the rejected parameter.
type ParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrInvalidParameter, e.Param, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidParameter.
func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

func paramError(param string, value any, reason string) error {
	return &ParamError{Param: param, Value: fmt.Sprint(value), Reason: reason}
}
