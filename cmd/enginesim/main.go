// enginesim - stand-in for the engine host page. Connects to the posedrive
// engine socket, acts out a load on bootstrap and logs every command.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8090/ws/engine/sim", "posedrive engine socket")
	loadTime := flag.Duration("load", 2*time.Second, "Simulated load duration")
	steps := flag.Int("steps", 4, "Progress reports during the load")
	failAt := flag.Float64("fail-at", 0, "Report an error at this progress instead of loading (0 disables)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := &simulator{loadTime: *loadTime, steps: max(*steps, 1), failAt: *failAt}
	if err := sim.run(ctx, *url); err != nil {
		log.Error("enginesim stopped", "error", err)
		os.Exit(1)
	}
}

type simulator struct {
	loadTime time.Duration
	steps    int
	failAt   float64

	conn   *websocket.Conn
	out    chan *protocol.Message
	loaded bool
}

func (s *simulator) run(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.conn = conn
	s.out = make(chan *protocol.Message, 16)

	log.Info("connected", "url", url)

	go s.writeLoop(ctx)
	go s.pingLoop(ctx)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *simulator) handle(ctx context.Context, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeBootstrap:
		if s.loaded {
			log.Info("bootstrap ignored, already loaded")
			return
		}
		s.loaded = true
		go s.load(ctx)

	case protocol.TypeCommand:
		cmd, err := msg.GetCommandData()
		if err != nil {
			log.Warn("bad command", "error", err)
			return
		}
		log.Info("command", "target", cmd.Target, "method", cmd.Method, "payload", cmd.Payload)

	case protocol.TypePong:
		var pong protocol.PongData
		if err := msg.ParseData(&pong); err == nil {
			log.Debug("pong", "latency_ms", pong.LatencyMs)
		}

	default:
		log.Debug("ignored message", "type", msg.Type)
	}
}

// load reports progress in steps, then loaded (or an error at failAt).
func (s *simulator) load(ctx context.Context) {
	step := s.loadTime / time.Duration(s.steps)
	for i := 1; i <= s.steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
		}
		p := float64(i) / float64(s.steps)
		if s.failAt > 0 && p >= s.failAt {
			s.send(protocol.NewErrorMessage("simulated load failure"))
			return
		}
		s.send(protocol.NewProgressMessage(p))
	}
	s.send(protocol.NewLoadedMessage())
	log.Info("engine loaded")
}

func (s *simulator) send(msg *protocol.Message, err error) {
	if err != nil {
		log.Warn("encode failed", "error", err)
		return
	}
	s.out <- msg
}

// writeLoop is the only writer on the connection.
func (s *simulator) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.out:
			data, err := msg.Bytes()
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("write failed", "error", err)
				return
			}
		}
	}
}

func (s *simulator) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.send(protocol.NewPingMessage("sim", t.UnixMilli()))
		}
	}
}
