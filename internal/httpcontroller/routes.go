package httpcontroller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/overlay"
)

// APIPrefix is the route prefix of the JSON API.
const APIPrefix = "/api/v1"

func (s *Server) initRoutes() {
	api := s.Echo.Group(APIPrefix)
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/overlay", s.handleOverlay)
	api.GET("/trains", s.handleTrains)
	api.GET("/vehicles", s.handleVehicles)

	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// StatusResponse is the body of /api/v1/status.
type StatusResponse struct {
	Name          string            `json:"name"`
	CameraID      string            `json:"camera_id"`
	StartedAt     time.Time         `json:"started_at"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Live          *overlay.Snapshot `json:"live,omitempty"`
	History       *datastore.Status `json:"history,omitempty"`
	EventBus      *events.BusStats  `json:"event_bus,omitempty"`
}

// OverlayResponse is the body of /api/v1/overlay.
type OverlayResponse struct {
	overlay.Snapshot
	Lines []string `json:"lines"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Name:          s.Settings.Main.Name,
		CameraID:      s.Settings.Camera.ID,
		StartedAt:     s.startedAt,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.overlay != nil {
		snap := s.overlay.Snapshot()
		resp.Live = &snap
	}
	if s.bus != nil {
		stats := s.bus.Stats()
		resp.EventBus = &stats
	}
	if s.DS != nil {
		status, err := s.DS.GetStatus()
		if err != nil {
			s.log.WithContext(c.Request().Context()).Error("status query failed", logger.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "status query failed")
		}
		resp.History = status
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOverlay(c echo.Context) error {
	if s.overlay == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live state unavailable")
	}
	snap := s.overlay.Snapshot()
	return c.JSON(http.StatusOK, OverlayResponse{Snapshot: snap, Lines: snap.Lines()})
}

func (s *Server) handleTrains(c echo.Context) error {
	return s.serveHistory(c, "trains", func(limit int) (any, error) {
		return s.DS.GetTrainEvents(limit)
	})
}

func (s *Server) handleVehicles(c echo.Context) error {
	return s.serveHistory(c, "vehicles", func(limit int) (any, error) {
		return s.DS.GetVehicleEvents(limit)
	})
}

// serveHistory parses ?limit, consults the history cache and runs query
// on a miss.
func (s *Server) serveHistory(c echo.Context, kind string, query func(limit int) (any, error)) error {
	if s.DS == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history storage is disabled")
	}

	limit := datastore.DefaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > datastore.MaxHistoryLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(datastore.MaxHistoryLimit))
		}
		limit = n
	}

	key := kind + ":" + strconv.Itoa(limit)
	if s.history != nil {
		if cached, ok := s.history.Get(key); ok {
			s.recordCacheLookup(true)
			return c.JSON(http.StatusOK, cached)
		}
		s.recordCacheLookup(false)
	}

	rows, err := query(limit)
	if err != nil {
		s.log.WithContext(c.Request().Context()).Error("history query failed", logger.String("kind", kind), logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history query failed")
	}
	if s.history != nil {
		s.history.SetDefault(key, rows)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.HTTP.RecordCacheLookup(hit)
	}
}
