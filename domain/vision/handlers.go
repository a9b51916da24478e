package vision

import (
	"strconv"

	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/gofiber/fiber/v2"
)

// CommandRequest is the body accepted by SendCommandHandler.
type CommandRequest struct {
	Commands []protocol.Command `json:"commands"`
}

// GetSnapshotHandler returns the whole latest environment
func (s *VisionService) GetSnapshotHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "success",
		"environment": s.Snapshot(),
	})
}

// GetBallHandler returns the latest ball state
func (s *VisionService) GetBallHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"ball":   s.Ball(),
	})
}

// GetRobotsHandler returns every robot of the :team route parameter
func (s *VisionService) GetRobotsHandler(c *fiber.Ctx) error {
	team, ok := protocol.ParseTeam(c.Params("team"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "team must be blue or yellow",
		})
	}
	robots := s.Robots(team)
	if robots == nil {
		robots = []protocol.Robot{}
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"robots": robots,
	})
}

// GetRobotHandler returns one robot by :team and :id
func (s *VisionService) GetRobotHandler(c *fiber.Ctx) error {
	team, ok := protocol.ParseTeam(c.Params("team"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "team must be blue or yellow",
		})
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid robot id",
		})
	}

	robot, found := s.FindRobot(team, uint32(id))
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "robot not in latest frame",
		})
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"robot":  robot,
	})
}

// GetFieldHandler returns the field dimensions and score
func (s *VisionService) GetFieldHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"field":  s.Field(),
		"score":  s.Score(),
	})
}

// SendCommandHandler sends a robot command list to the simulator
func (s *VisionService) SendCommandHandler(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := s.SendCommand(req.Commands); err != nil {
		s.logger.Errorf("Failed to send commands: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status": "command sent",
		"count":  len(req.Commands),
	})
}
