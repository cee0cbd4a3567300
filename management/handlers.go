package management

import (
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/momentics/hioload-sfu/api"
)

type flagRequest struct {
	Enabled *bool `json:"enabled"`
}

type joinRequest struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type loadResponse struct {
	Stress float64 `json:"stress"`
	State  string  `json:"state"`
}

func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

func (s *Server) getPoolStats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Pool.Stats())
}

// setPoolFlag flips an instrumentation flag through the control plane and
// answers with the resulting statistics.
func (s *Server) setPoolFlag(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req flagRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if req.Enabled == nil {
			return fiber.NewError(fiber.StatusBadRequest, `field "enabled" is required`)
		}
		if err := s.deps.Control.SetConfig(map[string]any{key: *req.Enabled}); err != nil {
			return err
		}
		return c.JSON(s.deps.Pool.Stats())
	}
}

func (s *Server) getLoad(c *fiber.Ctx) error {
	if s.deps.Load == nil {
		return fmt.Errorf("load controller not configured: %w", api.ErrNotFound)
	}
	return c.JSON(loadResponse{
		Stress: s.deps.Load.CurrentStressLevel(),
		State:  s.deps.Load.State().String(),
	})
}

func (s *Server) getState(c *fiber.Ctx) error {
	return c.JSON(s.deps.Control.Stats())
}

func (s *Server) getConfig(c *fiber.Ctx) error {
	return c.JSON(s.deps.Control.GetConfig())
}

func (s *Server) patchConfig(c *fiber.Ctx) error {
	var req map[string]any
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.deps.Control.SetConfig(req); err != nil {
		return err
	}
	return c.JSON(s.deps.Control.GetConfig())
}

func (s *Server) listConferences(c *fiber.Ctx) error {
	if s.deps.Relay == nil {
		return fmt.Errorf("relay not configured: %w", api.ErrNotFound)
	}
	return c.JSON(fiber.Map{
		"conferences": s.deps.Relay.Conferences(),
	})
}

func (s *Server) joinEndpoint(c *fiber.Ctx) error {
	if s.deps.Relay == nil {
		return fmt.Errorf("relay not configured: %w", api.ErrNotFound)
	}
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	addr, err := net.ResolveUDPAddr("udp", req.Address)
	if err != nil || req.Address == "" {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid address %q", req.Address))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	conference := c.Params("conference")
	if err := s.deps.Relay.Join(conference, req.ID, addr); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conference": conference,
		"id":         req.ID,
		"address":    addr.String(),
	})
}

func (s *Server) leaveEndpoint(c *fiber.Ctx) error {
	if s.deps.Relay == nil {
		return fmt.Errorf("relay not configured: %w", api.ErrNotFound)
	}
	if err := s.deps.Relay.Leave(c.Params("conference"), c.Params("endpoint")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
