// Package bridge connects to the page hosting the game engine over a
// WebSocket. It delivers engine commands to the page and forwards the
// engine's load notifications to the readiness gate.
package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/protocol"
)

// EngineEvents receives the engine host's notifications. *engine.Gate
// implements it.
type EngineEvents interface {
	MarkLoaded() bool
	ReportProgress(p float64)
	ReportError(msg string)
}

// writeWait bounds a write to a host. Sends run on the controller goroutine,
// so a stalled page must not block it for long.
const writeWait = 2 * time.Second

// Host represents a connected engine host page
type Host struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the host
func (h *Host) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.Conn.WriteMessage(websocket.TextMessage, data)
}

// Bridge manages WebSocket connections from engine hosts. Normally there is
// exactly one; commands go to every connected host.
type Bridge struct {
	mu     sync.RWMutex
	hosts  map[string]*Host
	events EngineEvents

	// Bootstrap requested before any host connected
	pendingBootstrap bool

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	commandsSent     atomic.Uint64
	sendErrors       atomic.Uint64
}

// New creates a bridge forwarding host notifications to events.
func New(events EngineEvents) *Bridge {
	return &Bridge{
		hosts:  make(map[string]*Host),
		events: events,
	}
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (b *Bridge) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws/engine", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/engine", websocket.New(b.handleHost))
	app.Get("/ws/engine/:id", websocket.New(b.handleHost))
}

// handleHost handles an engine host WebSocket connection
func (b *Bridge) handleHost(c *websocket.Conn) {
	hostID := c.Params("id")
	if hostID == "" {
		hostID = uuid.NewString()
	}

	host := &Host{
		ID:        hostID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	bootstrap, hostCount := b.register(host)

	log.Info("engine host connected", "host", hostID, "total", hostCount)

	if bootstrap {
		b.sendBootstrap(host)
	}

	defer func() {
		b.mu.Lock()
		delete(b.hosts, hostID)
		hostCount := len(b.hosts)
		b.mu.Unlock()

		log.Info("engine host disconnected", "host", hostID, "total", hostCount)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("engine host read error", "host", hostID, "error", err)
			return
		}

		host.mu.Lock()
		host.LastSeen = time.Now()
		host.mu.Unlock()

		b.messagesReceived.Add(1)
		b.handleMessage(host, data)
	}
}

// handleMessage processes an incoming message from a host
func (b *Bridge) handleMessage(host *Host, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Debug("engine host parse error", "host", host.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeLoaded:
		b.events.MarkLoaded()

	case protocol.TypeProgress:
		p, err := msg.GetProgressData()
		if err == nil {
			b.events.ReportProgress(p.Progress)
		}

	case protocol.TypeError:
		e, err := msg.GetErrorData()
		if err == nil {
			b.events.ReportError(e.Message)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		b.messagesSent.Add(1)
		host.Send(pong)

	default:
		log.Debug("engine host sent unexpected message", "host", host.ID, "type", msg.Type)
	}
}

// Send delivers an engine call to every connected host. It fails with
// engine.ErrNoEngine when no host is connected, or with the send error
// when no host accepted the command.
func (b *Bridge) Send(target, method, payload string) error {
	msg, err := protocol.NewCommandMessage(target, method, payload)
	if err != nil {
		return err
	}

	hosts := b.snapshot()
	if len(hosts) == 0 {
		b.sendErrors.Add(1)
		return engine.ErrNoEngine
	}

	var errs []error
	for _, h := range hosts {
		b.messagesSent.Add(1)
		if err := h.Send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(hosts) {
		b.sendErrors.Add(1)
		return errors.Join(errs...)
	}

	b.commandsSent.Add(1)
	return nil
}

// Bootstrap asks connected hosts to start loading the engine. If none is
// connected the request is held for the next host.
func (b *Bridge) Bootstrap() {
	hosts := b.bootstrapTargets()
	if len(hosts) == 0 {
		log.Info("engine bootstrap deferred until a host connects")
		return
	}

	for _, h := range hosts {
		b.sendBootstrap(h)
	}
}

// register adds a host and reports whether it takes over a deferred
// bootstrap.
func (b *Bridge) register(h *Host) (bootstrap bool, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hosts[h.ID] = h
	bootstrap = b.pendingBootstrap
	b.pendingBootstrap = false
	return bootstrap, len(b.hosts)
}

// bootstrapTargets returns the hosts to bootstrap now. With none connected
// it marks the bootstrap pending in the same critical section as register
// reads it, so exactly one side delivers it.
func (b *Bridge) bootstrapTargets() []*Host {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.hosts) == 0 {
		b.pendingBootstrap = true
		return nil
	}
	hosts := make([]*Host, 0, len(b.hosts))
	for _, h := range b.hosts {
		hosts = append(hosts, h)
	}
	return hosts
}

func (b *Bridge) sendBootstrap(h *Host) {
	msg, err := protocol.NewBootstrapMessage("first interaction")
	if err != nil {
		return
	}
	b.messagesSent.Add(1)
	if err := h.Send(msg); err != nil {
		log.Warn("engine bootstrap send failed", "host", h.ID, "error", err)
	}
}

func (b *Bridge) snapshot() []*Host {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hosts := make([]*Host, 0, len(b.hosts))
	for _, h := range b.hosts {
		hosts = append(hosts, h)
	}
	return hosts
}

// HostCount returns the number of connected hosts
func (b *Bridge) HostCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.hosts)
}

// Stats contains bridge statistics
type Stats struct {
	HostCount        int    `json:"host_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	CommandsSent     uint64 `json:"commands_sent"`
	SendErrors       uint64 `json:"send_errors"`
}

// GetStats returns bridge statistics
func (b *Bridge) GetStats() Stats {
	return Stats{
		HostCount:        b.HostCount(),
		MessagesReceived: b.messagesReceived.Load(),
		MessagesSent:     b.messagesSent.Load(),
		CommandsSent:     b.commandsSent.Load(),
		SendErrors:       b.sendErrors.Load(),
	}
}

// HostInfo contains info about a connected host
type HostInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetHostInfos returns info about all connected hosts
func (b *Bridge) GetHostInfos() []HostInfo {
	hosts := b.snapshot()
	infos := make([]HostInfo, 0, len(hosts))
	for _, h := range hosts {
		h.mu.Lock()
		infos = append(infos, HostInfo{
			ID:        h.ID,
			Connected: h.Connected,
			LastSeen:  h.LastSeen,
		})
		h.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for engine host inspection
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	eng := api.Group("/engine")

	eng.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"hosts": b.GetHostInfos(),
			"count": b.HostCount(),
		})
	})

	eng.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})
}
