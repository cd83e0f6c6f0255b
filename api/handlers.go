package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, admin CacheAdmin, hub StreamHub, logger *log.Logger) {
	e.GET("/api/cache/stats", getCacheStats(admin))
	e.POST("/api/cache/clear", postCacheClear(admin, logger))
	e.GET("/api/stream", streamNotifications(hub))
	e.GET("/healthz", healthz())
}

type clearResponse struct {
	Removed int `json:"removed"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getCacheStats(admin CacheAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := admin.CacheStats(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func postCacheClear(admin CacheAdmin, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		removed, err := admin.Clear(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		logger.WithField("removed", removed).Info("cache cleared")
		return c.JSON(http.StatusOK, clearResponse{Removed: removed})
	}
}
