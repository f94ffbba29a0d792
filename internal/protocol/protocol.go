package protocol

import "encoding/json"

const Version = "1.0"

// Message types (client -> server).
const (
	TypeHello       = "HELLO"
	TypeMovePlayer  = "MOVE_PLAYER"
	TypeMoveVehicle = "MOVE_VEHICLE"
	TypeTeleportAck = "TELEPORT_ACK"
	TypeChat        = "CHAT"
	TypeCommand     = "COMMAND"
	TypeChatAck     = "CHAT_ACK"
	TypeChatSession = "CHAT_SESSION"
	TypeBlockAction = "BLOCK_ACTION"
	TypeKeepAlive   = "KEEP_ALIVE"
)

// Message types (server -> client).
const (
	TypeWelcome         = "WELCOME"
	TypeTeleport        = "TELEPORT"
	TypeVehiclePose     = "VEHICLE_POSE"
	TypePlayerChat      = "PLAYER_CHAT"
	TypeSystemChat      = "SYSTEM_CHAT"
	TypePlayerInfo      = "PLAYER_INFO"
	TypeBlockChangedAck = "BLOCK_CHANGED_ACK"
	TypeChunkCenter     = "CHUNK_CENTER"
	TypeDisconnect      = "DISCONNECT"
)

// Block actions.
const (
	ActionBreak = "BREAK"
	ActionPlace = "PLACE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
