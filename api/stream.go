package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 25 * time.Second

func streamNotifications(hub StreamHub) echo.HandlerFunc {
	return func(c echo.Context) error {
		audiences := parseAudiences(c.QueryParam("audiences"))

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ch, cancel := hub.Register(audiences)
		defer cancel()

		ctx := c.Request().Context()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, open := <-ch:
				if !open {
					return nil
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func parseAudiences(param string) []string {
	if param == "" {
		return []string{"all"}
	}
	parts := strings.Split(param, ",")
	audiences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			audiences = append(audiences, p)
		}
	}
	if len(audiences) == 0 {
		return []string{"all"}
	}
	return audiences
}
