package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	customlog "github.com/fbot-vsss/client/pkg/log"
	"github.com/fbot-vsss/client/pkg/protocol"
	"github.com/gofiber/contrib/websocket"
)

// ControlWebSocketHandler handles incoming WebSocket messages for robot control.
// Text frames carry a JSON ControlMessage; binary frames carry an encoded
// command Packet. Every frame is answered with a ControlReply.
func ControlWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, sender CommandSender) {
	logger.Infof("Control WebSocket connected: %s", conn.RemoteAddr())
	var (
		mt  int
		msg []byte
		err error
	)
	for {
		if mt, msg, err = conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Control WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Control WS connection closed: %v", err)
			} else {
				logger.Infof("Control WS connection closed normally.")
			}
			break
		}

		reply := handleControlMessage(mt, msg, sender, logger)
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warnf("Control WS write error: %v", err)
			break
		}
	}
	logger.Infof("Control WebSocket disconnected: %s", conn.RemoteAddr())
}

func handleControlMessage(mt int, msg []byte, sender CommandSender, logger customlog.Logger) ControlReply {
	cmds, err := parseControlMessage(mt, msg)
	if err != nil {
		logger.Warnf("Rejecting control message: %v", err)
		return ControlReply{Error: err.Error()}
	}

	logger.Debugf("Received %d robot commands via WS", len(cmds))
	if err := sender.SendCommand(cmds); err != nil {
		logger.Errorf("Failed to send robot commands: %v", err)
		return ControlReply{Error: err.Error()}
	}
	return ControlReply{OK: true, Sent: len(cmds)}
}

func parseControlMessage(mt int, msg []byte) ([]protocol.Command, error) {
	switch mt {
	case websocket.TextMessage:
		var cm ControlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			return nil, fmt.Errorf("invalid command JSON: %w", err)
		}
		return cm.Commands, nil
	case websocket.BinaryMessage:
		pkt, err := protocol.UnmarshalPacket(msg)
		if err != nil {
			return nil, err
		}
		if pkt.Cmd == nil {
			return nil, nil
		}
		return pkt.Cmd.RobotCommands, nil
	}
	return nil, fmt.Errorf("unsupported message type %d", mt)
}
