package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/control"
	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/hub"
	"github.com/teslashibe/go-posedrive/pkg/protocol"
)

// ActionRequest is the optional body of POST /api/actions/:name.
type ActionRequest struct {
	Mode string `json:"mode"` // For switch-mode
}

// handleStatus returns the latest controller snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleAction runs calibrate, toggle-detection, switch-mode or init-engine
func (s *Server) handleAction(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.ActionTimeout)
	defer cancel()

	name := c.Params("name")
	var err error
	switch name {
	case "calibrate":
		err = s.ctrl.Calibrate(ctx)
	case "toggle-detection":
		err = s.ctrl.ToggleDetection(ctx)
	case "init-engine":
		err = s.ctrl.InitEngine(ctx)
	case "switch-mode":
		var req ActionRequest
		if perr := c.BodyParser(&req); perr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		m, ok := control.ParseMode(req.Mode)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown mode "+req.Mode)
		}
		err = s.ctrl.SwitchMode(ctx, m)
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown action "+name)
	}

	if err != nil {
		log.Info("action failed", "action", name, "error", err)
		return fiber.NewError(actionStatus(err), err.Error())
	}
	return c.JSON(fiber.Map{
		"action": name,
		"status": s.ctrl.Status(),
	})
}

// actionStatus maps controller errors to HTTP codes.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, control.ErrNoCamera), errors.Is(err, engine.ErrNoEngine):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusConflict
	}
}

// handleGetTuning returns the current tuning
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status().Tuning)
}

// handleSetTuning applies the non-zero fields of the body
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var t control.Tuning
	if err := c.BodyParser(&t); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.ActionTimeout)
	defer cancel()
	if err := s.ctrl.SetTuning(ctx, t); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.ctrl.Status().Tuning)
}

// handleInputWS accepts key messages from a browser
func (s *Server) handleInputWS(c *websocket.Conn) {
	hub.NewClient(s.inputHub, c).Run(nil)
}

// handleStatusWS streams status snapshots, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var first []byte
	if msg, err := protocol.NewStatusMessage(s.ctrl.Status()); err == nil {
		first, _ = msg.Bytes()
	}
	hub.NewClient(s.statusHub, c).Run(first)
}
