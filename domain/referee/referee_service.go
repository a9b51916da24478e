package referee

import (
	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/fbot-vsss/client/pkg/snapshot"
	"github.com/gofiber/fiber/v2"
)

// RefereeService is the read facade over the latest referee command.
type RefereeService struct {
	store *snapshot.Store[protocol.RefereeCommand]
}

// NewRefereeService creates a new referee service over store
func NewRefereeService(store *snapshot.Store[protocol.RefereeCommand]) *RefereeService {
	return &RefereeService{store: store}
}

// Snapshot returns the latest referee command.
func (s *RefereeService) Snapshot() protocol.RefereeCommand {
	return s.store.Read()
}

// Foul classifies the latest foul code; unknown codes read as FREE_KICK.
func (s *RefereeService) Foul() protocol.Foul {
	return protocol.FoulFromCode(s.store.Read().Foul)
}

func (s *RefereeService) TeamColor() protocol.Color {
	return s.store.Read().TeamColor
}

func (s *RefereeService) Quadrant() protocol.Quadrant {
	return s.store.Read().FoulQuadrant
}

func (s *RefereeService) GameHalf() protocol.Half {
	return s.store.Read().GameHalf
}

func (s *RefereeService) Timestamp() float64 {
	return s.store.Read().Timestamp
}

// GetStateHandler returns the latest referee command with the foul resolved
// by name
func (s *RefereeService) GetStateHandler(c *fiber.Ctx) error {
	cmd := s.Snapshot()
	return c.JSON(fiber.Map{
		"status":    "success",
		"foul":      protocol.FoulFromCode(cmd.Foul),
		"foul_code": cmd.Foul,
		"teamcolor": cmd.TeamColor,
		"quadrant":  cmd.FoulQuadrant,
		"half":      cmd.GameHalf,
		"timestamp": cmd.Timestamp,
	})
}
