package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// mountFrontend serves the built frontend, falling back to index.html for
// client-side routes. Without a frontend dir the bundled page is served.
func (s *Server) mountFrontend(e *echo.Echo) {
	e.GET("/*", func(c echo.Context) error {
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/api") {
			return echo.ErrNotFound
		}

		if dir := s.opts.FrontendDir; dir != "" {
			file := filepath.Join(dir, filepath.Clean("/"+path))
			if info, err := os.Stat(file); err == nil && !info.IsDir() {
				return c.File(file)
			}
			index := filepath.Join(dir, "index.html")
			if _, err := os.Stat(index); err == nil {
				return c.File(index)
			}
		}

		page, err := webFS.ReadFile("web/index.html")
		if err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, page)
	})
}
