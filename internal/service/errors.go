package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessages      = errors.New("messages must not be empty")
	ErrMissingPageContext = errors.New("pageContext is required")
	ErrInvalidStatus      = errors.New("unknown run status")
	ErrMissingUserId      = errors.New("user id is required")
)

// ModelInvocationError is returned when the model failed in a way no guidance covers.
type ModelInvocationError struct {
	Err error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("Failed to generate AI response: %v", e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}
