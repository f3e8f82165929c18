package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *APIV1Service) getStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Turns.Stats())
}

// evictSession drops a user's resident session. The persisted thread
// binding survives, so the user reattaches on their next message. A
// session with a turn in flight is never evicted.
func (s *APIV1Service) evictSession(c echo.Context) error {
	userID := c.Param("userID")
	if !s.Turns.Evict(userID) {
		return c.JSON(http.StatusConflict, errorResponse{Error: "session is absent or busy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "evicted"})
}

func (s *APIV1Service) runReport(c echo.Context) error {
	if s.Reports == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "reporting is not configured"})
	}
	if err := s.Reports.RunOnce(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "report failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
