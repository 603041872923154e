package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-wabridge/core"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// handleError renders every handler error as {error: {code, message}} with
// the status carried by the error envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorResponse{Error: errorBody{
			Code:    fmt.Sprintf("HTTP_%d", fiberErr.Code),
			Message: fiberErr.Message,
		}})
	}

	mapped := core.MapError(err)
	status := mapped.Code
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"code", mapped.TextCode,
			"error", err.Error(),
		)
	}
	return c.Status(status).JSON(errorResponse{Error: errorBody{
		Code:    mapped.TextCode,
		Message: mapped.Message,
	}})
}

func badInput(field string, message string) error {
	return core.NewBadInputError(field, message)
}
