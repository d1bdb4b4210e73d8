package bootstrap

import (
	"context"
	"time"

	"moviesearch-client/internal/config"
	"moviesearch-client/internal/handler"
	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/internal/repository/memory"
	"moviesearch-client/internal/service"
	"moviesearch-client/internal/websocket"
	"moviesearch-client/pkg/events"
	"moviesearch-client/pkg/overview"
	"moviesearch-client/pkg/redisbus"
	"moviesearch-client/pkg/search"
	"moviesearch-client/pkg/searchapi"
	"moviesearch-client/pkg/stream"

	pktNats "moviesearch-client/pkg/nats"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Search core
	Client  *searchapi.Client
	Channel *stream.Channel
	Decoder *overview.Decoder
	Posters searchapi.PosterResolver

	// Lifecycle events
	Bus       *events.Bus
	Publisher *events.AsyncPublisher

	// Background Services (Exposed for main.go to run)
	RecorderService service.IRecorderService

	// Relay
	SearchHandler *handler.SearchHandler
	WebSocketHub  *websocket.Hub

	natsPub *pktNats.Publisher
	redis   *redisbus.Bus
}

func NewContainer(cfg *config.Config, sysLogger logger.ILogger) *Container {
	// 1. Search core
	client := searchapi.NewClient(cfg.Search.APIURL, cfg.Search.RequestTimeout, sysLogger)
	channel := stream.NewChannel(client, sysLogger)
	decoder := overview.NewDecoder(sysLogger)
	posters := searchapi.NewPosterResolver(cfg.Search.PosterBaseURL, cfg.Search.PlaceholderPoster)

	// 2. Event Bus
	bus := events.NewBus(cfg.Events.Topic, sysLogger)
	sinks := events.Fanout{bus}

	// 2.5 Optional fan-out transports
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			natsPub = pub
			sinks = append(sinks, pub)
		}
	}

	var redisBus *redisbus.Bus
	if cfg.App.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		rb, err := redisbus.Connect(ctx, cfg.App.RedisURL, sysLogger)
		cancel()
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		} else {
			redisBus = rb
			sinks = append(sinks, rb)
		}
	}

	publisher := events.NewAsync(sinks, 1024, sysLogger)

	// 3. Services
	sessionRepo := memory.NewSessionRepository(cfg.Events.SessionTTL)
	recorder := service.NewRecorderService(bus, sessionRepo, sysLogger)

	c := &Container{
		Config:          cfg,
		Logger:          sysLogger,
		Client:          client,
		Channel:         channel,
		Decoder:         decoder,
		Posters:         posters,
		Bus:             bus,
		Publisher:       publisher,
		RecorderService: recorder,
		natsPub:         natsPub,
		redis:           redisBus,
	}

	// 4. Relay
	wsLogger := logger.NewIsolatedLogger(cfg.App.WebSocketLogPath)
	c.WebSocketHub = websocket.NewHub(wsLogger)
	c.SearchHandler = handler.NewSearchHandler(
		client,
		posters,
		recorder,
		c.WebSocketHub,
		func(listener search.Listener) websocket.Session {
			return c.NewOrchestrator(search.WithListener(listener))
		},
		cfg.Search.RevealInterval,
		wsLogger,
	)

	return c
}

// NewOrchestrator builds a search session owner wired to the container's
// transports and lifecycle publisher.
func (c *Container) NewOrchestrator(opts ...search.Option) *search.Orchestrator {
	base := []search.Option{
		search.WithDefaults(c.Config.Search.ResultCount, c.Config.Search.Alpha),
		search.WithPublisher(c.Publisher),
		search.WithLogger(c.Logger),
	}
	return search.NewOrchestrator(c.Client, c.Channel, c.Decoder, append(base, opts...)...)
}

// Close flushes pending events and releases transports.
func (c *Container) Close() {
	c.Publisher.Close()
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}
	c.Bus.Close()
	c.Logger.Sync()
}
