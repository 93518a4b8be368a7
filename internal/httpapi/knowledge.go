package httpapi

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"maestro/internal/knowledge"
)

func (s *Server) handleDisciplines(c echo.Context) error {
	return c.JSON(http.StatusOK, knowledge.DisciplineTree())
}

func (s *Server) handleListPages(c echo.Context) error {
	discipline := c.QueryParam("discipline")
	if discipline != "" {
		discipline = knowledge.CanonicalDiscipline(discipline)
	}
	return c.JSON(http.StatusOK, s.kb.ListPages(discipline))
}

func (s *Server) handleGetPage(c echo.Context) error {
	token := c.Param("name")
	name, err := s.kb.Resolve(token)
	if err != nil {
		return resolveErrJSON(c, err)
	}
	page, ok := s.kb.Page(name)
	if !ok {
		return errJSON(c, http.StatusNotFound, "page not found")
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return errJSON(c, http.StatusBadRequest, "q is required")
	}
	return c.JSON(http.StatusOK, s.kb.Search(q))
}

func (s *Server) handlePageThumb(c echo.Context) error {
	token := c.Param("name")
	name, err := s.kb.Resolve(token)
	if err != nil {
		return resolveErrJSON(c, err)
	}
	page, ok := s.kb.Page(name)
	if !ok {
		return errJSON(c, http.StatusNotFound, "page not found")
	}
	if s.thumbs == nil {
		return errJSON(c, http.StatusServiceUnavailable, "thumbnails unavailable")
	}

	width, quality := knowledge.ParseDims(c.QueryParam("w"), c.QueryParam("q"))
	ctx := c.Request().Context()

	if data, ok := s.thumbs.Get(ctx, name, width, quality); ok {
		return c.Blob(http.StatusOK, "image/jpeg", data)
	}

	raw, err := os.ReadFile(filepath.Join(page.Path, "page.png"))
	if err != nil {
		return errJSON(c, http.StatusNotFound, "page image not found")
	}
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, "decoding page image")
	}

	data, err := s.thumbs.Produce(ctx, name, src, width, quality)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

// resolveErrJSON maps Resolve's sentinel errors to the right status: a
// fuzzy miss is a 404, an ambiguous token is a 400 naming the candidates.
func resolveErrJSON(c echo.Context, err error) error {
	var ambiguous knowledge.ErrAmbiguous
	if errors.As(err, &ambiguous) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":      err.Error(),
			"candidates": ambiguous.Candidates,
		})
	}
	return errJSON(c, http.StatusNotFound, err.Error())
}
