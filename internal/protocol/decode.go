package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("unknown message type")

// DecodeClient decodes one client -> server message into its typed value.
// HELLO is handled by the transport handshake and is rejected here.
func DecodeClient(b []byte) (any, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	var v any
	switch base.Type {
	case TypeMovePlayer:
		v = &MovePlayerMsg{}
	case TypeMoveVehicle:
		v = &MoveVehicleMsg{}
	case TypeTeleportAck:
		v = &TeleportAckMsg{}
	case TypeChat:
		v = &ChatMsg{}
	case TypeCommand:
		v = &CommandMsg{}
	case TypeChatAck:
		v = &ChatAckMsg{}
	case TypeChatSession:
		v = &ChatSessionMsg{}
	case TypeBlockAction:
		v = &BlockActionMsg{}
	case TypeKeepAlive:
		v = &KeepAliveMsg{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("%s: %w", base.Type, err)
	}
	return v, nil
}
