package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"maestro/internal/store"
)

func (s *Server) handleListSchedule(c echo.Context) error {
	filter := store.ListEventsFilter{
		FromDate:  c.QueryParam("from_date"),
		ToDate:    c.QueryParam("to_date"),
		EventType: c.QueryParam("event_type"),
	}
	events, err := s.store.ListEvents(c.Request().Context(), s.projectID, filter)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleUpcomingSchedule(c echo.Context) error {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	events, err := s.store.UpcomingEvents(c.Request().Context(), s.projectID, days)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleGetScheduleEvent(c echo.Context) error {
	event, err := s.store.GetEvent(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return errJSON(c, http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, event)
}
