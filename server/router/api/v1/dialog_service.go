package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/AVas112/MainBot/store"
)

type DialogMessage struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"created_ts"`
}

type CapturedContact struct {
	UID       string `json:"uid"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	CreatedTs int64  `json:"created_ts"`
}

func (s *APIV1Service) listDialogs(c echo.Context) error {
	find := &store.FindDialogMessage{}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
		find.Limit = &limit
	}

	return s.renderDialogs(c, find)
}

func (s *APIV1Service) getDialog(c echo.Context) error {
	userID := c.Param("userID")
	return s.renderDialogs(c, &store.FindDialogMessage{UserID: &userID})
}

func (s *APIV1Service) renderDialogs(c echo.Context, find *store.FindDialogMessage) error {
	messages, err := s.Store.ListDialogMessages(c.Request().Context(), find)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load dialogs"})
	}

	list := make([]DialogMessage, 0, len(messages))
	for _, m := range messages {
		list = append(list, DialogMessage{
			UserID:    m.UserID,
			Username:  m.Username,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedTs: m.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, list)
}

func (s *APIV1Service) listContacts(c echo.Context) error {
	contacts, err := s.Store.ListCapturedContacts(c.Request().Context(), &store.FindCapturedContact{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load contacts"})
	}

	list := make([]CapturedContact, 0, len(contacts))
	for _, contact := range contacts {
		list = append(list, CapturedContact{
			UID:       contact.UID,
			UserID:    contact.UserID,
			Username:  contact.Username,
			Name:      contact.Name,
			Phone:     contact.Phone,
			Email:     contact.Email,
			CreatedTs: contact.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, list)
}
