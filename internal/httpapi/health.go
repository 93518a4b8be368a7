package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]any{
		"status":     "ok",
		"project_id": s.projectID,
		"time":       time.Now().UTC(),
	}
	if s.engine != nil {
		resp["engine"] = s.engine()
	}
	if s.toolCount != nil {
		resp["tools"] = s.toolCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProject(c echo.Context) error {
	ctx := c.Request().Context()
	proj, err := s.store.GetProject(ctx, s.projectID)
	if err != nil {
		return errJSON(c, http.StatusNotFound, "project not found")
	}

	counts := map[string]any{
		"id":               proj.ID,
		"name":             proj.Name,
		"path":             proj.Path,
		"created_at":       proj.CreatedAt,
		"page_count":       0,
		"pointer_count":    0,
		"discipline_count": 0,
	}
	if s.kb != nil {
		counts["page_count"] = s.kb.PageCount()
		counts["pointer_count"] = s.kb.PointerCount()
		counts["discipline_count"] = s.kb.DisciplineCount()
	}
	return c.JSON(http.StatusOK, counts)
}
