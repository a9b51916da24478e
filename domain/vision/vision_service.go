package vision

import (
	"errors"
	"fmt"

	"github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/fbot-vsss/client/pkg/snapshot"
)

// ErrNoCommandPath is returned by SendCommand when the service was built
// without a sender.
var ErrNoCommandPath = errors.New("vision service has no command sender")

// Sender delivers one encoded command packet to the simulator.
type Sender interface {
	Send(payload []byte) error
}

// Score is the current goal count per team.
type Score struct {
	Blue   uint32 `json:"blue"`
	Yellow uint32 `json:"yellow"`
}

// VisionService is the read facade over the vision/simulation snapshot and
// the outbound command path. Every accessor reads a fresh copy of the
// store, so two calls may observe different frames.
type VisionService struct {
	store  *snapshot.Store[protocol.Environment]
	sender Sender
	logger log.Logger
}

// NewVisionService creates a new vision service over store. sender may be
// nil, in which case SendCommand fails with ErrNoCommandPath.
func NewVisionService(store *snapshot.Store[protocol.Environment], sender Sender, logger log.Logger) *VisionService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &VisionService{
		store:  store,
		sender: sender,
		logger: logger.WithField("feed", "vision"),
	}
}

// Snapshot returns the whole latest environment.
func (s *VisionService) Snapshot() protocol.Environment {
	return s.store.Read()
}

// Frame returns the latest frame.
func (s *VisionService) Frame() protocol.Frame {
	return s.store.Read().Frame
}

// Ball returns the latest ball state.
func (s *VisionService) Ball() protocol.Ball {
	return s.store.Read().Frame.Ball
}

// Robots returns the robots of team in the latest frame. Any color other
// than blue or yellow yields nil.
func (s *VisionService) Robots(team protocol.Color) []protocol.Robot {
	return robotsOf(s.Frame(), team)
}

// FindRobot returns the robot of team with the given id. When a frame lists
// the id twice the later entry wins.
func (s *VisionService) FindRobot(team protocol.Color, id uint32) (protocol.Robot, bool) {
	robots := s.Robots(team)
	for i := len(robots) - 1; i >= 0; i-- {
		if robots[i].RobotID == id {
			return robots[i], true
		}
	}
	return protocol.Robot{}, false
}

func (s *VisionService) BlueRobot(id uint32) (protocol.Robot, bool) {
	return s.FindRobot(protocol.ColorBlue, id)
}

func (s *VisionService) YellowRobot(id uint32) (protocol.Robot, bool) {
	return s.FindRobot(protocol.ColorYellow, id)
}

// Field returns the field dimensions of the latest environment.
func (s *VisionService) Field() protocol.Field {
	return s.store.Read().Field
}

// Score returns the goal count of the latest environment.
func (s *VisionService) Score() Score {
	env := s.store.Read()
	return Score{Blue: env.GoalsBlue, Yellow: env.GoalsYellow}
}

// SendCommand encodes cmds as a single command packet and sends it. An
// empty list is still sent; the simulator treats it as a no-op step.
func (s *VisionService) SendCommand(cmds []protocol.Command) error {
	if s.sender == nil {
		return ErrNoCommandPath
	}
	if err := s.sender.Send(protocol.MarshalPacket(cmds)); err != nil {
		return fmt.Errorf("sending %d robot commands: %w", len(cmds), err)
	}
	s.logger.Debugf("Sent %d robot commands", len(cmds))
	return nil
}

func robotsOf(f protocol.Frame, team protocol.Color) []protocol.Robot {
	switch team {
	case protocol.ColorBlue:
		return f.RobotsBlue
	case protocol.ColorYellow:
		return f.RobotsYellow
	}
	return nil
}
