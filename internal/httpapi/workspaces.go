package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleListWorkspaces(c echo.Context) error {
	list, err := s.store.ListWorkspaces(c.Request().Context(), s.projectID)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetWorkspace(c echo.Context) error {
	slug := c.Param("slug")
	detail, err := s.store.GetWorkspace(c.Request().Context(), s.projectID, slug)
	if err != nil {
		return errJSON(c, http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, detail)
}
