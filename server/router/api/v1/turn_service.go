package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AVas112/MainBot/plugin/assistant"
)

type TurnRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

type TurnResponse struct {
	Reply    string                       `json:"reply"`
	Contacts []assistant.ExtractedContact `json:"contacts,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *APIV1Service) handleTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if req.UserID == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "user_id and text are required"})
	}

	reply, err := s.Turns.HandleTurn(c.Request().Context(), req.UserID, req.Username, req.Text)
	if err != nil {
		status, category := turnErrorStatus(err)
		slog.Warn("turn failed", "user_id", req.UserID, "category", category, "error", err)
		return c.JSON(status, errorResponse{Error: category})
	}

	return c.JSON(http.StatusOK, TurnResponse{
		Reply:    reply.Text,
		Contacts: reply.Contacts,
	})
}

// turnErrorStatus maps turn failure categories onto HTTP statuses: a busy
// session is a conflict, exhausted budgets are a gateway timeout, and
// remote or tool failures are a bad gateway.
func turnErrorStatus(err error) (int, string) {
	turnError, ok := assistant.AsTurnError(err)
	if !ok {
		return http.StatusInternalServerError, "internal"
	}

	switch turnError.Category {
	case assistant.TurnErrorBusy:
		return http.StatusConflict, turnError.Category.String()
	case assistant.TurnErrorTimeout:
		return http.StatusGatewayTimeout, turnError.Category.String()
	case assistant.TurnErrorRemoteFatal, assistant.TurnErrorToolFailure:
		return http.StatusBadGateway, turnError.Category.String()
	default:
		return http.StatusInternalServerError, "internal"
	}
}
