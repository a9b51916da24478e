package api

import "github.com/fbot-vsss/client/pkg/protocol"

// --- Data Structures for WebSocket Messages ---

// ControlMessage is one text frame on the control websocket: the commands to
// send to the simulator in a single packet.
type ControlMessage struct {
	Commands []protocol.Command `json:"commands"`
}

// ControlReply acknowledges a control message.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Sent  int    `json:"sent"`
	Error string `json:"error,omitempty"`
}

// CommandSender forwards robot commands to the simulator.
type CommandSender interface {
	SendCommand(cmds []protocol.Command) error
}
