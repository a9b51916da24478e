package protocol

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// DetectionBall is one ball candidate seen by a camera. Pointer fields are
// optional in the schema and nil when absent.
type DetectionBall struct {
	Confidence float32  `json:"confidence"`
	Area       *uint32  `json:"area,omitempty"`
	X          float32  `json:"x"`
	Y          float32  `json:"y"`
	Z          *float32 `json:"z,omitempty"`
	PixelX     float32  `json:"pixel_x"`
	PixelY     float32  `json:"pixel_y"`
}

// DetectionRobot is one robot seen by a camera.
type DetectionRobot struct {
	Confidence  float32  `json:"confidence"`
	RobotID     *uint32  `json:"robot_id,omitempty"`
	X           float32  `json:"x"`
	Y           float32  `json:"y"`
	Orientation *float32 `json:"orientation,omitempty"`
	PixelX      float32  `json:"pixel_x"`
	PixelY      float32  `json:"pixel_y"`
	Height      *float32 `json:"height,omitempty"`
}

// DetectionFrame is the per-camera detection result (SSL_DetectionFrame).
type DetectionFrame struct {
	FrameNumber  uint32           `json:"frame_number"`
	TCapture     float64          `json:"t_capture"`
	TSent        float64          `json:"t_sent"`
	CameraID     uint32           `json:"camera_id"`
	Balls        []DetectionBall  `json:"balls"`
	RobotsYellow []DetectionRobot `json:"robots_yellow"`
	RobotsBlue   []DetectionRobot `json:"robots_blue"`
}

// WrapperPacket is the SSL-Vision datagram. Only the detection part is kept;
// geometry is skipped on decode.
type WrapperPacket struct {
	Detection *DetectionFrame `json:"detection,omitempty"`
}

// Clone returns a deep copy of the ball.
func (d DetectionBall) Clone() DetectionBall {
	d.Area = clonePtr(d.Area)
	d.Z = clonePtr(d.Z)
	return d
}

// Clone returns a deep copy of the robot.
func (d DetectionRobot) Clone() DetectionRobot {
	d.RobotID = clonePtr(d.RobotID)
	d.Orientation = clonePtr(d.Orientation)
	d.Height = clonePtr(d.Height)
	return d
}

// Clone returns a deep copy of the frame.
func (f DetectionFrame) Clone() DetectionFrame {
	f.Balls = cloneEach(f.Balls, DetectionBall.Clone)
	f.RobotsYellow = cloneEach(f.RobotsYellow, DetectionRobot.Clone)
	f.RobotsBlue = cloneEach(f.RobotsBlue, DetectionRobot.Clone)
	return f
}

// Clone returns a deep copy of the packet.
func (w WrapperPacket) Clone() WrapperPacket {
	if w.Detection != nil {
		d := w.Detection.Clone()
		w.Detection = &d
	}
	return w
}

func cloneEach[T any](s []T, clone func(T) T) []T {
	if s == nil {
		return nil
	}
	out := slices.Clone(s)
	for i := range out {
		out[i] = clone(out[i])
	}
	return out
}

var (
	// Field 2 is the geometry packet; its type is checked, its content skipped.
	wrapperFields        = fieldTypes{1: protowire.BytesType, 2: protowire.BytesType}
	detectionFrameFields = fieldTypes{
		1: protowire.VarintType,
		2: protowire.Fixed64Type,
		3: protowire.Fixed64Type,
		4: protowire.VarintType,
		5: protowire.BytesType,
		6: protowire.BytesType,
		7: protowire.BytesType,
	}
	detectionBallFields = fieldTypes{
		1: protowire.Fixed32Type,
		2: protowire.VarintType,
		3: protowire.Fixed32Type,
		4: protowire.Fixed32Type,
		5: protowire.Fixed32Type,
		6: protowire.Fixed32Type,
		7: protowire.Fixed32Type,
	}
	detectionRobotFields = fieldTypes{
		1: protowire.Fixed32Type,
		2: protowire.VarintType,
		3: protowire.Fixed32Type,
		4: protowire.Fixed32Type,
		5: protowire.Fixed32Type,
		6: protowire.Fixed32Type,
		7: protowire.Fixed32Type,
		8: protowire.Fixed32Type,
	}
)

// UnmarshalWrapperPacket decodes one SSL-Vision datagram.
func UnmarshalWrapperPacket(b []byte) (WrapperPacket, error) {
	var w WrapperPacket
	err := decodeFields(b, wrapperFields, func(num protowire.Number, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		if w.Detection == nil {
			w.Detection = &DetectionFrame{}
		}
		return consumeMessage(b, w.Detection.unmarshal)
	})
	if err != nil {
		return WrapperPacket{}, fmt.Errorf("decoding wrapper packet: %w", err)
	}
	return w, nil
}

func (f *DetectionFrame) unmarshal(b []byte) error {
	return decodeFields(b, detectionFrameFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(b, &f.FrameNumber), nil
		case 2:
			return consumeDouble(b, &f.TCapture), nil
		case 3:
			return consumeDouble(b, &f.TSent), nil
		case 4:
			return consumeUint32(b, &f.CameraID), nil
		case 5:
			var ball DetectionBall
			n, err := consumeMessage(b, ball.unmarshal)
			if err == nil && n > 0 {
				f.Balls = append(f.Balls, ball)
			}
			return n, err
		case 6, 7:
			var r DetectionRobot
			n, err := consumeMessage(b, r.unmarshal)
			if err != nil || n < 0 {
				return n, err
			}
			if num == 6 {
				f.RobotsYellow = append(f.RobotsYellow, r)
			} else {
				f.RobotsBlue = append(f.RobotsBlue, r)
			}
			return n, nil
		}
		return 0, nil
	})
}

func (d *DetectionBall) unmarshal(b []byte) error {
	return decodeFields(b, detectionBallFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeFloat(b, &d.Confidence), nil
		case 2:
			d.Area = new(uint32)
			return consumeUint32(b, d.Area), nil
		case 3:
			return consumeFloat(b, &d.X), nil
		case 4:
			return consumeFloat(b, &d.Y), nil
		case 5:
			d.Z = new(float32)
			return consumeFloat(b, d.Z), nil
		case 6:
			return consumeFloat(b, &d.PixelX), nil
		case 7:
			return consumeFloat(b, &d.PixelY), nil
		}
		return 0, nil
	})
}

func (d *DetectionRobot) unmarshal(b []byte) error {
	return decodeFields(b, detectionRobotFields, func(num protowire.Number, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeFloat(b, &d.Confidence), nil
		case 2:
			d.RobotID = new(uint32)
			return consumeUint32(b, d.RobotID), nil
		case 3:
			return consumeFloat(b, &d.X), nil
		case 4:
			return consumeFloat(b, &d.Y), nil
		case 5:
			d.Orientation = new(float32)
			return consumeFloat(b, d.Orientation), nil
		case 6:
			return consumeFloat(b, &d.PixelX), nil
		case 7:
			return consumeFloat(b, &d.PixelY), nil
		case 8:
			d.Height = new(float32)
			return consumeFloat(b, d.Height), nil
		}
		return 0, nil
	})
}

// Marshal encodes the packet. SSL-Vision uses proto2, so required fields
// are always written and optional ones only when set.
func (w WrapperPacket) Marshal() []byte {
	if w.Detection == nil {
		return nil
	}
	return appendMessage(nil, 1, w.Detection.Marshal())
}

// Marshal encodes the detection frame.
func (f DetectionFrame) Marshal() []byte {
	var b []byte
	b = appendUint32Always(b, 1, f.FrameNumber)
	b = appendDoubleAlways(b, 2, f.TCapture)
	b = appendDoubleAlways(b, 3, f.TSent)
	b = appendUint32Always(b, 4, f.CameraID)
	for _, ball := range f.Balls {
		b = appendMessage(b, 5, ball.Marshal())
	}
	for _, r := range f.RobotsYellow {
		b = appendMessage(b, 6, r.Marshal())
	}
	for _, r := range f.RobotsBlue {
		b = appendMessage(b, 7, r.Marshal())
	}
	return b
}

// Marshal encodes the ball.
func (d DetectionBall) Marshal() []byte {
	var b []byte
	b = appendFloatAlways(b, 1, d.Confidence)
	if d.Area != nil {
		b = appendUint32Always(b, 2, *d.Area)
	}
	b = appendFloatAlways(b, 3, d.X)
	b = appendFloatAlways(b, 4, d.Y)
	if d.Z != nil {
		b = appendFloatAlways(b, 5, *d.Z)
	}
	b = appendFloatAlways(b, 6, d.PixelX)
	b = appendFloatAlways(b, 7, d.PixelY)
	return b
}

// Marshal encodes the robot.
func (d DetectionRobot) Marshal() []byte {
	var b []byte
	b = appendFloatAlways(b, 1, d.Confidence)
	if d.RobotID != nil {
		b = appendUint32Always(b, 2, *d.RobotID)
	}
	b = appendFloatAlways(b, 3, d.X)
	b = appendFloatAlways(b, 4, d.Y)
	if d.Orientation != nil {
		b = appendFloatAlways(b, 5, *d.Orientation)
	}
	b = appendFloatAlways(b, 6, d.PixelX)
	b = appendFloatAlways(b, 7, d.PixelY)
	if d.Height != nil {
		b = appendFloatAlways(b, 8, *d.Height)
	}
	return b
}
