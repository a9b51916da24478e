package protocol

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Foul is the referee game state / foul category.
type Foul int32

const (
	FoulFreeKick Foul = iota
	FoulPenaltyKick
	FoulGoalKick
	FoulFreeBall
	FoulKickoff
	FoulStop
	FoulGameOn
	FoulHalt
)

var foulNames = [...]string{
	"FREE_KICK",
	"PENALTY_KICK",
	"GOAL_KICK",
	"FREE_BALL",
	"KICKOFF",
	"STOP",
	"GAME_ON",
	"HALT",
}

// FoulFromCode maps a raw foul code to a Foul. Codes outside the known range
// map to FoulFreeKick.
func FoulFromCode(code int32) Foul {
	if code < 0 || int(code) >= len(foulNames) {
		return FoulFreeKick
	}
	return Foul(code)
}

func (f Foul) String() string {
	if f < 0 || int(f) >= len(foulNames) {
		return fmt.Sprintf("Foul(%d)", int32(f))
	}
	return foulNames[f]
}

// MarshalText renders the foul by name in JSON.
func (f Foul) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Color identifies a team.
type Color int32

const (
	ColorBlue Color = iota
	ColorYellow
	ColorNone
)

func (c Color) String() string {
	switch c {
	case ColorBlue:
		return "BLUE"
	case ColorYellow:
		return "YELLOW"
	case ColorNone:
		return "NONE"
	}
	return fmt.Sprintf("Color(%d)", int32(c))
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseTeam accepts "blue" or "yellow" in any case.
func ParseTeam(s string) (Color, bool) {
	switch strings.ToLower(s) {
	case "blue":
		return ColorBlue, true
	case "yellow":
		return ColorYellow, true
	}
	return ColorNone, false
}

// Quadrant is the field quadrant of a foul.
type Quadrant int32

const (
	NoQuadrant Quadrant = iota
	Quadrant1
	Quadrant2
	Quadrant3
	Quadrant4
)

func (q Quadrant) String() string {
	switch {
	case q == NoQuadrant:
		return "NO_QUADRANT"
	case q >= Quadrant1 && q <= Quadrant4:
		return fmt.Sprintf("QUADRANT_%d", int32(q))
	}
	return fmt.Sprintf("Quadrant(%d)", int32(q))
}

func (q Quadrant) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// Half is the game half.
type Half int32

const (
	NoHalf Half = iota
	FirstHalf
	SecondHalf
)

func (h Half) String() string {
	switch h {
	case NoHalf:
		return "NO_HALF"
	case FirstHalf:
		return "FIRST_HALF"
	case SecondHalf:
		return "SECOND_HALF"
	}
	return fmt.Sprintf("Half(%d)", int32(h))
}

func (h Half) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// RefereeCommand is the datagram published by VSSReferee
// (VSSRef.ref_to_team.VSSRef_Command). Foul keeps the raw code; use
// FoulFromCode to classify it.
type RefereeCommand struct {
	Foul         int32    `json:"foul"`
	TeamColor    Color    `json:"teamcolor"`
	FoulQuadrant Quadrant `json:"foulQuadrant"`
	Timestamp    float64  `json:"timestamp"`
	GameHalf     Half     `json:"gameHalf"`
}

// Clone returns a copy of the command; it holds no references.
func (r RefereeCommand) Clone() RefereeCommand { return r }

var refereeFields = fieldTypes{
	1: protowire.VarintType,
	2: protowire.VarintType,
	3: protowire.VarintType,
	4: protowire.Fixed64Type,
	5: protowire.VarintType,
}

// UnmarshalRefereeCommand decodes one referee datagram.
func UnmarshalRefereeCommand(b []byte) (RefereeCommand, error) {
	var r RefereeCommand
	err := decodeFields(b, refereeFields, func(num protowire.Number, b []byte) (int, error) {
		if num == 4 {
			return consumeDouble(b, &r.Timestamp), nil
		}

		var v int32
		n := consumeInt32(b, &v)
		switch num {
		case 1:
			r.Foul = v
		case 2:
			r.TeamColor = Color(v)
		case 3:
			r.FoulQuadrant = Quadrant(v)
		case 5:
			r.GameHalf = Half(v)
		}
		return n, nil
	})
	if err != nil {
		return RefereeCommand{}, fmt.Errorf("decoding referee command: %w", err)
	}
	return r, nil
}

// Marshal encodes the referee command.
func (r RefereeCommand) Marshal() []byte {
	var b []byte
	b = appendEnum(b, 1, r.Foul)
	b = appendEnum(b, 2, int32(r.TeamColor))
	b = appendEnum(b, 3, int32(r.FoulQuadrant))
	b = appendDouble(b, 4, r.Timestamp)
	b = appendEnum(b, 5, int32(r.GameHalf))
	return b
}
