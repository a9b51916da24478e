package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleEnvironment() Environment {
	return Environment{
		Step: 42,
		Frame: Frame{
			Ball: Ball{X: 1.5, Y: -2},
			RobotsYellow: []Robot{
				{RobotID: 1, X: 0.3, Y: 0.1, Orientation: 3.14},
			},
			RobotsBlue: []Robot{
				{RobotID: 0, X: -0.5, Y: 0.2, VX: 0.01},
				{RobotID: 2, X: -0.7},
			},
		},
		Field:       Field{Width: 1.3, Length: 1.5, GoalWidth: 0.4, GoalDepth: 0.1},
		GoalsBlue:   2,
		GoalsYellow: 1,
	}
}

func TestEnvironmentDecode(t *testing.T) {
	env, err := UnmarshalEnvironment(sampleEnvironment().Marshal())
	require.NoError(t, err)
	assert.Equal(t, sampleEnvironment(), env)
}

func TestEnvironmentDecodeEmptyPayload(t *testing.T) {
	env, err := UnmarshalEnvironment(nil)
	require.NoError(t, err)
	assert.Equal(t, Environment{}, env)
}

func TestEnvironmentDecodeMalformed(t *testing.T) {
	_, err := UnmarshalEnvironment([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEnvironmentDecodeTruncatedFrame(t *testing.T) {
	b := sampleEnvironment().Marshal()
	_, err := UnmarshalEnvironment(b[:len(b)/2])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEnvironmentDecodeSkipsUnknownFields(t *testing.T) {
	b := sampleEnvironment().Marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	env, err := UnmarshalEnvironment(b)
	require.NoError(t, err)
	assert.Equal(t, sampleEnvironment(), env)
}

func TestEnvironmentDecodeRejectsWrongWireType(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"frame sent as varint", []byte{0x10, 0x05}},
		{"referee command", RefereeCommand{Foul: 6, Timestamp: 3.5}.Marshal()},
		{"robot id sent as double", func() []byte {
			robot := protowire.AppendTag(nil, 1, protowire.Fixed64Type)
			robot = protowire.AppendFixed64(robot, 1)
			frame := protowire.AppendTag(nil, 3, protowire.BytesType)
			frame = protowire.AppendBytes(frame, robot)
			env := protowire.AppendTag(nil, 2, protowire.BytesType)
			return protowire.AppendBytes(env, frame)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := UnmarshalEnvironment(tt.payload)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, Environment{}, env)
		})
	}
}

func TestEnvironmentCloneIsIndependent(t *testing.T) {
	orig := sampleEnvironment()
	cp := orig.Clone()
	cp.Frame.RobotsBlue[0].X = 99
	cp.Frame.RobotsYellow = append(cp.Frame.RobotsYellow, Robot{RobotID: 9})

	assert.Equal(t, -0.5, orig.Frame.RobotsBlue[0].X)
	assert.Len(t, orig.Frame.RobotsYellow, 1)
}

func TestCommandPacketRoundTrip(t *testing.T) {
	cmds := []Command{
		{ID: 0, YellowTeam: false, WheelLeft: 10, WheelRight: -10},
		{ID: 1, YellowTeam: true, WheelLeft: 0, WheelRight: 5.5},
		{ID: 2, YellowTeam: false},
	}

	p, err := UnmarshalPacket(MarshalPacket(cmds))
	require.NoError(t, err)
	require.NotNil(t, p.Cmd)
	assert.Equal(t, cmds, p.Cmd.RobotCommands)
}

func TestEmptyCommandPacket(t *testing.T) {
	b := MarshalPacket(nil)
	// An empty cmd sub-message is still present on the wire.
	assert.NotEmpty(t, b)

	p, err := UnmarshalPacket(b)
	require.NoError(t, err)
	require.NotNil(t, p.Cmd)
	assert.Empty(t, p.Cmd.RobotCommands)
}

func TestRefereeCommandDecode(t *testing.T) {
	in := RefereeCommand{
		Foul:         int32(FoulPenaltyKick),
		TeamColor:    ColorYellow,
		FoulQuadrant: Quadrant3,
		Timestamp:    1234.5,
		GameHalf:     SecondHalf,
	}

	out, err := UnmarshalRefereeCommand(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, FoulPenaltyKick, FoulFromCode(out.Foul))
}

func TestRefereeDefaults(t *testing.T) {
	out, err := UnmarshalRefereeCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, FoulFreeKick, FoulFromCode(out.Foul))
	assert.Equal(t, ColorBlue, out.TeamColor)
	assert.Equal(t, NoQuadrant, out.FoulQuadrant)
	assert.Equal(t, NoHalf, out.GameHalf)
}

func TestFoulFromCode(t *testing.T) {
	tests := []struct {
		code int32
		want Foul
	}{
		{0, FoulFreeKick},
		{5, FoulStop},
		{6, FoulGameOn},
		{7, FoulHalt},
		{8, FoulFreeKick},
		{42, FoulFreeKick},
		{-1, FoulFreeKick},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoulFromCode(tt.code), "code %d", tt.code)
	}
	assert.Equal(t, "GAME_ON", FoulGameOn.String())
	assert.Equal(t, "QUADRANT_2", Quadrant2.String())
	assert.Equal(t, "YELLOW", ColorYellow.String())
	assert.Equal(t, "FIRST_HALF", FirstHalf.String())
}

func TestWrapperPacketDecode(t *testing.T) {
	id := uint32(3)
	z := float32(12)
	in := WrapperPacket{Detection: &DetectionFrame{
		FrameNumber: 7,
		TCapture:    10.25,
		TSent:       10.5,
		CameraID:    1,
		Balls: []DetectionBall{
			{Confidence: 0.9, X: 100, Y: -50, Z: &z, PixelX: 320, PixelY: 240},
		},
		RobotsBlue: []DetectionRobot{
			{Confidence: 0.8, RobotID: &id, X: 10, Y: 20, PixelX: 1, PixelY: 2},
		},
	}}

	out, err := UnmarshalWrapperPacket(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Nil(t, out.Detection.Balls[0].Area)
	assert.Nil(t, out.Detection.RobotsBlue[0].Orientation)
}

func TestWrapperPacketGeometryOnly(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x0a, 0x00})

	out, err := UnmarshalWrapperPacket(b)
	require.NoError(t, err)
	assert.Nil(t, out.Detection)
}

func TestWrongWireTypeIsRejectedByEveryDecoder(t *testing.T) {
	// Timestamp (field 4) sent as a varint.
	varint4 := protowire.AppendVarint(protowire.AppendTag(nil, 4, protowire.VarintType), 1)

	_, err := UnmarshalRefereeCommand(varint4)
	assert.ErrorIs(t, err, ErrMalformed)

	// Geometry (field 2) sent as a varint.
	_, err = UnmarshalWrapperPacket([]byte{0x10, 0x01})
	assert.ErrorIs(t, err, ErrMalformed)

	// Command wheel speed sent as a varint.
	cmd := protowire.AppendVarint(protowire.AppendTag(nil, 3, protowire.VarintType), 1)
	cmds := protowire.AppendBytes(protowire.AppendTag(nil, 1, protowire.BytesType), cmd)
	pkt := protowire.AppendBytes(protowire.AppendTag(nil, 1, protowire.BytesType), cmds)
	_, err = UnmarshalPacket(pkt)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWrapperPacketCloneIsIndependent(t *testing.T) {
	id := uint32(1)
	orig := WrapperPacket{Detection: &DetectionFrame{
		RobotsYellow: []DetectionRobot{{RobotID: &id}},
	}}
	cp := orig.Clone()
	*cp.Detection.RobotsYellow[0].RobotID = 5
	cp.Detection.FrameNumber = 9

	assert.Equal(t, uint32(1), *orig.Detection.RobotsYellow[0].RobotID)
	assert.Equal(t, uint32(0), orig.Detection.FrameNumber)
}
