package protocol

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Ball is the simulated ball state (fira_message.Ball).
type Ball struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// Robot is one simulated robot (fira_message.Robot).
type Robot struct {
	RobotID      uint32  `json:"robot_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Orientation  float64 `json:"orientation"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
	VOrientation float64 `json:"vorientation"`
}

// Field holds the field dimensions published with every environment.
type Field struct {
	Width     float64 `json:"width"`
	Length    float64 `json:"length"`
	GoalWidth float64 `json:"goal_width"`
	GoalDepth float64 `json:"goal_depth"`
}

// Frame is one vision frame: the ball and both teams.
type Frame struct {
	Ball         Ball    `json:"ball"`
	RobotsYellow []Robot `json:"robots_yellow"`
	RobotsBlue   []Robot `json:"robots_blue"`
}

// Environment is the datagram published by the simulator on the vision
// group (fira_message.sim_to_ref.Environment).
type Environment struct {
	Step        uint32 `json:"step"`
	Frame       Frame  `json:"frame"`
	Field       Field  `json:"field"`
	GoalsBlue   uint32 `json:"goals_blue"`
	GoalsYellow uint32 `json:"goals_yellow"`
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	f.RobotsYellow = slices.Clone(f.RobotsYellow)
	f.RobotsBlue = slices.Clone(f.RobotsBlue)
	return f
}

// Clone returns a deep copy of the environment.
func (e Environment) Clone() Environment {
	e.Frame = e.Frame.Clone()
	return e
}

// UnmarshalEnvironment decodes one vision datagram.
func UnmarshalEnvironment(b []byte) (Environment, error) {
	var env Environment
	if err := env.unmarshal(b); err != nil {
		return Environment{}, fmt.Errorf("decoding environment: %w", err)
	}
	return env, nil
}

var (
	environmentFields = fieldTypes{
		1: protowire.VarintType,
		2: protowire.BytesType,
		3: protowire.BytesType,
		4: protowire.VarintType,
		5: protowire.VarintType,
	}
	frameFields = fieldTypes{
		1: protowire.BytesType,
		2: protowire.BytesType,
		3: protowire.BytesType,
	}
	ballFields = fieldTypes{
		1: protowire.Fixed64Type,
		2: protowire.Fixed64Type,
		3: protowire.Fixed64Type,
		4: protowire.Fixed64Type,
		5: protowire.Fixed64Type,
		6: protowire.Fixed64Type,
	}
	robotFields = fieldTypes{
		1: protowire.VarintType,
		2: protowire.Fixed64Type,
		3: protowire.Fixed64Type,
		4: protowire.Fixed64Type,
		5: protowire.Fixed64Type,
		6: protowire.Fixed64Type,
		7: protowire.Fixed64Type,
	}
	fieldFields = fieldTypes{
		1: protowire.Fixed64Type,
		2: protowire.Fixed64Type,
		3: protowire.Fixed64Type,
		4: protowire.Fixed64Type,
	}
)

func (e *Environment) unmarshal(b []byte) error {
	return decodeFields(b, environmentFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(b, &e.Step), nil
		case 2:
			return consumeMessage(b, e.Frame.unmarshal)
		case 3:
			return consumeMessage(b, e.Field.unmarshal)
		case 4:
			return consumeUint32(b, &e.GoalsBlue), nil
		case 5:
			return consumeUint32(b, &e.GoalsYellow), nil
		}
		return 0, nil
	})
}

func (f *Frame) unmarshal(b []byte) error {
	return decodeFields(b, frameFields, func(num protowire.Number, b []byte) (int, error) {
		if num == 1 {
			return consumeMessage(b, f.Ball.unmarshal)
		}

		var r Robot
		n, err := consumeMessage(b, r.unmarshal)
		if err != nil || n < 0 {
			return n, err
		}
		if num == 2 {
			f.RobotsYellow = append(f.RobotsYellow, r)
		} else {
			f.RobotsBlue = append(f.RobotsBlue, r)
		}
		return n, nil
	})
}

func (ball *Ball) unmarshal(b []byte) error {
	return decodeFields(b, ballFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDouble(b, &ball.X), nil
		case 2:
			return consumeDouble(b, &ball.Y), nil
		case 3:
			return consumeDouble(b, &ball.Z), nil
		case 4:
			return consumeDouble(b, &ball.VX), nil
		case 5:
			return consumeDouble(b, &ball.VY), nil
		case 6:
			return consumeDouble(b, &ball.VZ), nil
		}
		return 0, nil
	})
}

func (r *Robot) unmarshal(b []byte) error {
	return decodeFields(b, robotFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(b, &r.RobotID), nil
		case 2:
			return consumeDouble(b, &r.X), nil
		case 3:
			return consumeDouble(b, &r.Y), nil
		case 4:
			return consumeDouble(b, &r.Orientation), nil
		case 5:
			return consumeDouble(b, &r.VX), nil
		case 6:
			return consumeDouble(b, &r.VY), nil
		case 7:
			return consumeDouble(b, &r.VOrientation), nil
		}
		return 0, nil
	})
}

func (f *Field) unmarshal(b []byte) error {
	return decodeFields(b, fieldFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDouble(b, &f.Width), nil
		case 2:
			return consumeDouble(b, &f.Length), nil
		case 3:
			return consumeDouble(b, &f.GoalWidth), nil
		case 4:
			return consumeDouble(b, &f.GoalDepth), nil
		}
		return 0, nil
	})
}

// Marshal encodes the environment. The client never publishes environments;
// the encoder exists for simulators and tests.
func (e Environment) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, e.Step)
	b = appendMessage(b, 2, e.Frame.Marshal())
	b = appendMessage(b, 3, e.Field.Marshal())
	b = appendUint32(b, 4, e.GoalsBlue)
	b = appendUint32(b, 5, e.GoalsYellow)
	return b
}

// Marshal encodes the frame.
func (f Frame) Marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, f.Ball.Marshal())
	for _, r := range f.RobotsYellow {
		b = appendMessage(b, 2, r.Marshal())
	}
	for _, r := range f.RobotsBlue {
		b = appendMessage(b, 3, r.Marshal())
	}
	return b
}

// Marshal encodes the ball.
func (ball Ball) Marshal() []byte {
	var b []byte
	b = appendDouble(b, 1, ball.X)
	b = appendDouble(b, 2, ball.Y)
	b = appendDouble(b, 3, ball.Z)
	b = appendDouble(b, 4, ball.VX)
	b = appendDouble(b, 5, ball.VY)
	b = appendDouble(b, 6, ball.VZ)
	return b
}

// Marshal encodes the robot.
func (r Robot) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, r.RobotID)
	b = appendDouble(b, 2, r.X)
	b = appendDouble(b, 3, r.Y)
	b = appendDouble(b, 4, r.Orientation)
	b = appendDouble(b, 5, r.VX)
	b = appendDouble(b, 6, r.VY)
	b = appendDouble(b, 7, r.VOrientation)
	return b
}

// Marshal encodes the field.
func (f Field) Marshal() []byte {
	var b []byte
	b = appendDouble(b, 1, f.Width)
	b = appendDouble(b, 2, f.Length)
	b = appendDouble(b, 3, f.GoalWidth)
	b = appendDouble(b, 4, f.GoalDepth)
	return b
}
