package handler

import (
	"context"
	"time"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/internal/service"
	internalWS "moviesearch-client/internal/websocket"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/searchapi"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// UpstreamChecker probes the retrieval service.
type UpstreamChecker interface {
	Health(ctx context.Context) (*movie.HealthResponse, error)
	Ready(ctx context.Context) (*movie.ReadyResponse, error)
}

type SearchHandler struct {
	upstream       UpstreamChecker
	posters        searchapi.PosterResolver
	recorder       service.IRecorderService
	hub            *internalWS.Hub
	sessions       internalWS.SessionFactory
	revealInterval time.Duration
	logger         logger.ILogger
}

func NewSearchHandler(
	upstream UpstreamChecker,
	posters searchapi.PosterResolver,
	recorder service.IRecorderService,
	hub *internalWS.Hub,
	sessions internalWS.SessionFactory,
	revealInterval time.Duration,
	log logger.ILogger,
) *SearchHandler {
	return &SearchHandler{
		upstream:       upstream,
		posters:        posters,
		recorder:       recorder,
		hub:            hub,
		sessions:       sessions,
		revealInterval: revealInterval,
		logger:         log,
	}
}

func (h *SearchHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Get("/upstream/health", h.UpstreamHealth)
	r.Get("/poster", h.Poster)
	r.Get("/sessions", h.RecentSessions)
	r.Get("/sessions/:id", h.GetSession)
	r.Get("/ws/search", h.ServeWs)
}

func (h *SearchHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"connections": h.hub.Count(),
	})
}

// UpstreamHealth reports liveness and model readiness of the retrieval service.
func (h *SearchHandler) UpstreamHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	health, err := h.upstream.Health(ctx)
	if err != nil {
		h.logger.Warn("SearchHandler", "Upstream health check failed", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"status": "unreachable", "error": err.Error()})
	}

	ready, err := h.upstream.Ready(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": health.Status, "ready": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status":        health.Status,
		"ready":         ready.ModelsLoaded,
		"models_loaded": ready.ModelsLoaded,
		"load_times":    ready.LoadTimes,
	})
}

// Poster resolves ?path=&size= to an image URL.
func (h *SearchHandler) Poster(c *fiber.Ctx) error {
	size := searchapi.ParsePosterSize(c.Query("size"))
	url := h.posters.URL(c.Query("path"), size)
	if c.QueryBool("redirect", false) {
		return c.Redirect(url, fiber.StatusFound)
	}
	return c.JSON(fiber.Map{"url": url, "size": size})
}

func (h *SearchHandler) RecentSessions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 100")
	}
	records := h.recorder.Recent(limit)
	return c.JSON(fiber.Map{"data": records, "total": len(records)})
}

func (h *SearchHandler) GetSession(c *fiber.Ctx) error {
	record, ok := h.recorder.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.JSON(fiber.Map{"data": record})
}

// ServeWs upgrades to a websocket that drives one search session.
func (h *SearchHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SearchHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
			internalWS.ServeWs(h.hub, conn, h.revealInterval, h.sessions, h.logger)
			h.logger.Info("SearchHandler", "WebSocket session ended", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
