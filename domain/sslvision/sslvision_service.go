package sslvision

import (
	"strconv"

	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/fbot-vsss/client/pkg/snapshot"
	"github.com/gofiber/fiber/v2"
)

// HasDetection reports whether a wrapper packet carries a detection frame.
// The listener uses it to ignore geometry-only packets so they never
// replace the last detection.
func HasDetection(w protocol.WrapperPacket) bool {
	return w.Detection != nil
}

// SSLVisionService is the read facade over the latest SSL-Vision detection.
type SSLVisionService struct {
	store *snapshot.Store[protocol.WrapperPacket]
}

// NewSSLVisionService creates a new secondary vision service over store
func NewSSLVisionService(store *snapshot.Store[protocol.WrapperPacket]) *SSLVisionService {
	return &SSLVisionService{store: store}
}

// Snapshot returns the latest wrapper packet.
func (s *SSLVisionService) Snapshot() protocol.WrapperPacket {
	return s.store.Read()
}

// Detection returns the latest detection frame, or an empty frame before
// the first one arrives.
func (s *SSLVisionService) Detection() protocol.DetectionFrame {
	w := s.store.Read()
	if w.Detection == nil {
		return protocol.DetectionFrame{}
	}
	return *w.Detection
}

// Balls returns every ball candidate of the latest detection.
func (s *SSLVisionService) Balls() []protocol.DetectionBall {
	return s.Detection().Balls
}

// Ball returns the ball candidate with the highest confidence.
func (s *SSLVisionService) Ball() (protocol.DetectionBall, bool) {
	balls := s.Balls()
	if len(balls) == 0 {
		return protocol.DetectionBall{}, false
	}
	best := balls[0]
	for _, b := range balls[1:] {
		if b.Confidence > best.Confidence {
			best = b
		}
	}
	return best, true
}

// Robots returns the detected robots of team.
func (s *SSLVisionService) Robots(team protocol.Color) []protocol.DetectionRobot {
	d := s.Detection()
	switch team {
	case protocol.ColorBlue:
		return d.RobotsBlue
	case protocol.ColorYellow:
		return d.RobotsYellow
	}
	return nil
}

// FindRobot returns the last detected robot of team with the given id.
// Robots detected without an id never match.
func (s *SSLVisionService) FindRobot(team protocol.Color, id uint32) (protocol.DetectionRobot, bool) {
	robots := s.Robots(team)
	for i := len(robots) - 1; i >= 0; i-- {
		if r := robots[i]; r.RobotID != nil && *r.RobotID == id {
			return r, true
		}
	}
	return protocol.DetectionRobot{}, false
}

func (s *SSLVisionService) BlueRobot(id uint32) (protocol.DetectionRobot, bool) {
	return s.FindRobot(protocol.ColorBlue, id)
}

func (s *SSLVisionService) YellowRobot(id uint32) (protocol.DetectionRobot, bool) {
	return s.FindRobot(protocol.ColorYellow, id)
}

// GetDetectionHandler returns the latest detection frame
func (s *SSLVisionService) GetDetectionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "success",
		"detection": s.Detection(),
	})
}

// GetBallHandler returns the most confident ball candidate
func (s *SSLVisionService) GetBallHandler(c *fiber.Ctx) error {
	ball, found := s.Ball()
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no ball in latest detection",
		})
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"ball":   ball,
	})
}

// GetRobotHandler returns one detected robot by :team and :id
func (s *SSLVisionService) GetRobotHandler(c *fiber.Ctx) error {
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
			"error": "robot not in latest detection",
		})
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"robot":  robot,
	})
}
