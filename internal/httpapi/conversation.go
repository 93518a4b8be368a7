package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleConversationState(c echo.Context) error {
	ctx := c.Request().Context()
	state, err := s.store.GetConversationState(ctx, s.projectID)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}

	resp := map[string]any{
		"project_id":      state.ProjectID,
		"summary":         state.Summary,
		"total_exchanges": state.TotalExchanges,
		"compactions":     state.Compactions,
		"last_compaction": state.LastCompaction,
		"created_at":      state.CreatedAt,
	}
	if s.conv != nil {
		if stats, err := s.conv.GetStats(ctx); err == nil {
			resp["stats"] = stats
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.store.GetRecentMessages(ctx, s.projectID, limit)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}

	if before := c.QueryParam("before"); before != "" {
		cutoff, cerr := strconv.ParseInt(before, 10, 64)
		if cerr == nil {
			filtered := messages[:0]
			for _, m := range messages {
				if m.ID < cutoff {
					filtered = append(filtered, m)
				}
			}
			messages = filtered
		}
	}

	return c.JSON(http.StatusOK, messages)
}
