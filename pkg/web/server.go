// Package web serves the control API, the browser key and status sockets,
// and the engine host socket.
package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/bridge"
	"github.com/teslashibe/go-posedrive/pkg/control"
	"github.com/teslashibe/go-posedrive/pkg/hub"
	"github.com/teslashibe/go-posedrive/pkg/protocol"
)

// DefaultActionTimeout bounds how long an action request may wait, which
// covers a calibration waiting for a frame.
const DefaultActionTimeout = 10 * time.Second

// Controller is the part of *control.Controller the server drives.
type Controller interface {
	Key(ctx context.Context, code string, pressed bool) error
	Calibrate(ctx context.Context) error
	ToggleDetection(ctx context.Context) error
	SwitchMode(ctx context.Context, m control.Mode) error
	InitEngine(ctx context.Context) error
	SetTuning(ctx context.Context, t control.Tuning) error
	Status() control.Status
}

// Options configures a Server.
type Options struct {
	Addr          string
	StaticDir     string // Served at / when set
	ActionTimeout time.Duration
}

// Server is the HTTP and WebSocket front end.
type Server struct {
	app  *fiber.App
	opts Options
	ctrl Controller

	statusHub *hub.Hub
	inputHub  *hub.Hub
	inbound   chan hub.Inbound
}

// NewServer creates a server. b may be nil when the engine is reached
// another way.
func NewServer(opts Options, ctrl Controller, b *bridge.Bridge) *Server {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	s := &Server{
		opts:      opts,
		ctrl:      ctrl,
		statusHub: hub.New("status"),
		inputHub:  hub.New("input"),
		inbound:   make(chan hub.Inbound, 64),
	}
	s.inputHub.SetInbound(s.inbound)

	app := fiber.New(fiber.Config{
		AppName:               "posedrive",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	// CORS for local development
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/actions/:name", s.handleAction)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	if b != nil {
		b.RegisterAPIRoutes(api)
		b.RegisterRoutes(app)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/input", websocket.New(s.handleInputWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// PublishStatus broadcasts a controller snapshot to status clients. It
// never blocks.
func (s *Server) PublishStatus(st control.Status) {
	msg, err := protocol.NewStatusMessage(st)
	if err != nil {
		log.Warn("status encode failed", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		log.Warn("status encode failed", "error", err)
		return
	}
	s.statusHub.Broadcast(data)
}

// Run starts the hubs and the listener, and shuts down when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.inputHub.Run(ctx)
	go s.pumpInput(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Info("web server listening", "addr", s.opts.Addr)
		errc <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Warn("web server shutdown", "error", err)
		}
		return nil
	case err := <-errc:
		return err
	}
}

// pumpInput turns key messages from input clients into controller events.
func (s *Server) pumpInput(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.inbound:
			s.handleInput(ctx, in)
		}
	}
}

func (s *Server) handleInput(ctx context.Context, in hub.Inbound) {
	msg, err := protocol.ParseMessage(in.Data)
	if err != nil {
		log.Debug("bad input message", "client", in.ClientID, "error", err)
		return
	}
	if msg.Type != protocol.TypeKey {
		log.Debug("ignored input message", "client", in.ClientID, "type", msg.Type)
		return
	}
	key, err := msg.GetKeyData()
	if err != nil {
		log.Debug("bad key message", "client", in.ClientID, "error", err)
		return
	}
	if err := s.ctrl.Key(ctx, key.Code, key.Pressed); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("key rejected", "code", key.Code, "error", err)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
