package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var appStart = time.Now()

type check struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

// handleHealth pings the database and the vector store.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	db := check{OK: true}
	if s.deps.PingDB != nil {
		if err := s.deps.PingDB(ctx); err != nil {
			db = check{Err: err.Error()}
		}
	}

	vs := check{OK: true}
	var points uint64
	if stats, err := s.deps.VectorStore.Stats(ctx); err != nil {
		vs = check{Err: err.Error()}
	} else {
		points = stats.PointCount
	}

	status := http.StatusOK
	if !db.OK || !vs.OK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{
		"status":     map[string]bool{"ok": status == http.StatusOK},
		"uptime_sec": int(time.Since(appStart).Seconds()),
		"checks": echo.Map{
			"database":     db,
			"vector_store": vs,
		},
		"points": points,
		"time":   time.Now().Format(time.RFC3339),
	})
}
