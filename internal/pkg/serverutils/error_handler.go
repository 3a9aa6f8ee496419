package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError is an error with the HTTP status it should be answered with.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func BadRequest(message string, err error) *AppError {
	return NewAppError(fiber.StatusBadRequest, message, err)
}

func NotFound(message string, err error) *AppError {
	return NewAppError(fiber.StatusNotFound, message, err)
}

// ErrorHandler answers every returned error as {"error": message}.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return ctx.Status(code).JSON(fiber.Map{"error": message})
}
