package api

import (
	"encoding/json"

	"github.com/Seklfreak/cool-chat/internal/board"
	"github.com/Seklfreak/cool-chat/internal/identity"
	"github.com/Seklfreak/cool-chat/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// State is the composed board state exported to the view layer. Rendering
// itself lives outside this process.
type State struct {
	Pending    bool                   `json:"pending"`
	UserID     string                 `json:"user_id,omitempty"`
	Name       string                 `json:"name"`
	Draft      string                 `json:"draft"`
	Committed  []board.Message        `json:"committed"`
	LiveDrafts []board.Message        `json:"live_drafts"`
	Members    []board.PresenceRecord `json:"members"`
}

// Server exposes the trackers' outputs over HTTP and websocket.
type Server struct {
	session  *identity.Session
	stream   *board.Stream
	presence *board.Presence
	composer *board.Composer
	hub      *hub
	log      *zap.Logger
}

func NewServer(session *identity.Session, stream *board.Stream, presence *board.Presence, composer *board.Composer, log *zap.Logger) (*fiber.App, *Server) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())

	s := &Server{
		session:  session,
		stream:   stream,
		presence: presence,
		composer: composer,
		hub:      newHub(),
		log:      log,
	}

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	v1.Get("/state", s.getState)

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(s.handleWS))

	return app, s
}

func (s *Server) getState(c *fiber.Ctx) error {
	return c.JSON(s.state())
}

func (s *Server) state() State {
	userID, ok := s.session.UserID()
	view := s.stream.View()
	return State{
		Pending:    !ok,
		UserID:     userID,
		Name:       s.session.Name(),
		Draft:      s.composer.Draft(),
		Committed:  view.Committed,
		LiveDrafts: view.LiveDrafts,
		Members:    s.presence.Members(),
	}
}

// NotifyUpdate pushes the current composed state to every websocket
// subscriber. Hook it to the trackers' update callbacks.
func (s *Server) NotifyUpdate() {
	payload, err := json.Marshal(s.state())
	if err != nil {
		s.log.Error("state marshal failed", zap.Error(err))
		return
	}
	s.hub.broadcast(payload)
}

func (s *Server) handleWS(c *websocket.Conn) {
	send := s.hub.add(c)
	defer s.hub.remove(c)

	// initial state so subscribers don't wait for the next change
	if payload, err := json.Marshal(s.state()); err == nil {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-send:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
