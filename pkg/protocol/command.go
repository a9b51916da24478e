package protocol

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Command sets the wheel speeds of one robot for the next simulation step.
type Command struct {
	ID         uint32  `json:"id"`
	YellowTeam bool    `json:"yellowteam"`
	WheelLeft  float64 `json:"wheel_left"`
	WheelRight float64 `json:"wheel_right"`
}

// Commands is the batch of robot commands carried by one packet.
type Commands struct {
	RobotCommands []Command `json:"robot_commands"`
}

// Packet is the datagram accepted by the simulator command port
// (fira_message.sim_to_ref.Packet). The replacement variant is never sent.
type Packet struct {
	Cmd *Commands `json:"cmd,omitempty"`
}

var (
	// Field 2 is the replacement variant; its type is checked, its content skipped.
	packetFields   = fieldTypes{1: protowire.BytesType, 2: protowire.BytesType}
	commandsFields = fieldTypes{1: protowire.BytesType}
	commandFields  = fieldTypes{
		1: protowire.VarintType,
		2: protowire.VarintType,
		3: protowire.Fixed64Type,
		4: protowire.Fixed64Type,
	}
)

// MarshalPacket wraps cmds in a Packet and encodes it.
func MarshalPacket(cmds []Command) []byte {
	return Packet{Cmd: &Commands{RobotCommands: cmds}}.Marshal()
}

// UnmarshalPacket decodes a command packet. Used by the simulator side and
// tests; a replacement sub-message is skipped.
func UnmarshalPacket(b []byte) (Packet, error) {
	var p Packet
	err := decodeFields(b, packetFields, func(num protowire.Number, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		if p.Cmd == nil {
			p.Cmd = &Commands{}
		}
		return consumeMessage(b, p.Cmd.unmarshal)
	})
	if err != nil {
		return Packet{}, fmt.Errorf("decoding packet: %w", err)
	}
	return p, nil
}

// Marshal encodes the packet.
func (p Packet) Marshal() []byte {
	if p.Cmd == nil {
		return nil
	}
	return appendMessage(nil, 1, p.Cmd.Marshal())
}

// Marshal encodes the command batch.
func (c Commands) Marshal() []byte {
	var b []byte
	for _, cmd := range c.RobotCommands {
		b = appendMessage(b, 1, cmd.Marshal())
	}
	return b
}

// Marshal encodes a single command.
func (c Command) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, c.ID)
	b = appendBool(b, 2, c.YellowTeam)
	b = appendDouble(b, 3, c.WheelLeft)
	b = appendDouble(b, 4, c.WheelRight)
	return b
}

// Clone returns a deep copy of the command batch.
func (c Commands) Clone() Commands {
	c.RobotCommands = slices.Clone(c.RobotCommands)
	return c
}

func (c *Commands) unmarshal(b []byte) error {
	return decodeFields(b, commandsFields, func(_ protowire.Number, b []byte) (int, error) {
		var cmd Command
		n, err := consumeMessage(b, cmd.unmarshal)
		if err != nil || n < 0 {
			return n, err
		}
		c.RobotCommands = append(c.RobotCommands, cmd)
		return n, nil
	})
}

func (c *Command) unmarshal(b []byte) error {
	return decodeFields(b, commandFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(b, &c.ID), nil
		case 2:
			return consumeBool(b, &c.YellowTeam), nil
		case 3:
			return consumeDouble(b, &c.WheelLeft), nil
		case 4:
			return consumeDouble(b, &c.WheelRight), nil
		}
		return 0, nil
	})
}
