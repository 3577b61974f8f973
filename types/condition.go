package types

import (
	"context"
	"errors"
	"net/http"
)

// Condition is the failure code exposed at the request boundary.
type Condition string

const (
	ConditionNotReady         Condition = "not_ready"
	ConditionInvalidInput     Condition = "invalid_input"
	ConditionUpstreamTimeout  Condition = "upstream_timeout"
	ConditionRoutingExhausted Condition = "routing_exhausted"
)

// ConditionOf maps any error onto the fixed boundary condition set.
// Everything that is not caller input, a deadline, or a routing loop
// is reported as not_ready so the caller retries later.
func ConditionOf(err error) Condition {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ConditionUpstreamTimeout
	}
	switch GetErrorCode(err) {
	case ErrInvalidInput:
		return ConditionInvalidInput
	case ErrUpstreamTimeout:
		return ConditionUpstreamTimeout
	case ErrRoutingExhausted:
		return ConditionRoutingExhausted
	default:
		return ConditionNotReady
	}
}

// HTTPStatus returns the status code used for the condition.
func (c Condition) HTTPStatus() int {
	switch c {
	case ConditionInvalidInput:
		return http.StatusBadRequest
	case ConditionUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ConditionRoutingExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}
