package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerID        string     `json:"player_id"`
	Spawn           [3]float64 `json:"spawn"`
	TickRateHz      int        `json:"tick_rate_hz"`
}

// MOVE_PLAYER (client -> server). Absent position or rotation fields keep
// the server-side value, like the position-only and rotation-only variants
// of the movement packet.
type MovePlayerMsg struct {
	Type     string   `json:"type"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Z        *float64 `json:"z,omitempty"`
	Yaw      *float64 `json:"yaw,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	OnGround bool     `json:"on_ground"`
}

// MOVE_VEHICLE (client -> server)
type MoveVehicleMsg struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

type TeleportAckMsg struct {
	Type       string `json:"type"`
	TeleportID int32  `json:"teleport_id"`
}

// LastSeenUpdate is the client's acknowledgement of previously displayed
// chat: Offset entries are dropped from the front of the tracked list, then
// Acknowledged marks which of the remaining window slots were seen.
type LastSeenUpdate struct {
	Offset       int    `json:"offset"`
	Acknowledged []bool `json:"acknowledged,omitempty"`
}

// CHAT (client -> server)
type ChatMsg struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"` // unix millis
	Salt      int64          `json:"salt"`
	Signature []byte         `json:"signature,omitempty"`
	LastSeen  LastSeenUpdate `json:"last_seen"`
}

// COMMAND (client -> server)
type CommandMsg struct {
	Type      string         `json:"type"`
	Command   string         `json:"command"`
	Timestamp int64          `json:"timestamp"`
	Salt      int64          `json:"salt"`
	LastSeen  LastSeenUpdate `json:"last_seen"`
}

type ChatAckMsg struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
}

// CHAT_SESSION (client -> server): the public key a client signs chat with,
// countersigned by the key authority.
type ChatSessionMsg struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	PublicKey    []byte `json:"public_key"`
	ExpiresAt    int64  `json:"expires_at"` // unix millis
	KeySignature []byte `json:"key_signature"`
}

// BLOCK_ACTION (client -> server): a sequenced world mutation request.
type BlockActionMsg struct {
	Type     string `json:"type"`
	Sequence int32  `json:"sequence"`
	Action   string `json:"action"` // "BREAK" | "PLACE"
	Pos      [3]int `json:"pos"`
}

// KEEP_ALIVE is used in both directions.
type KeepAliveMsg struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// TELEPORT (server -> client). Components listed in Relative are offsets
// from the client's current value.
type TeleportMsg struct {
	Type       string   `json:"type"`
	TeleportID int32    `json:"teleport_id"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Yaw        float64  `json:"yaw"`
	Pitch      float64  `json:"pitch"`
	Relative   []string `json:"relative,omitempty"`
}

// VEHICLE_POSE (server -> client): authoritative vehicle correction.
type VehiclePoseMsg struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// PackedSignature references a signature by its cache slot when the client
// is known to hold it, otherwise carries it in full. ID is -1 for full.
type PackedSignature struct {
	ID   int    `json:"id"`
	Full []byte `json:"full,omitempty"`
}

type PackedBody struct {
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Salt      int64             `json:"salt"`
	LastSeen  []PackedSignature `json:"last_seen"`
}

// PLAYER_CHAT (server -> client)
type PlayerChatMsg struct {
	Type      string     `json:"type"`
	Sender    string     `json:"sender"`
	Index     int32      `json:"index"`
	Signature []byte     `json:"signature,omitempty"`
	Body      PackedBody `json:"body"`
	Filtered  string     `json:"filtered,omitempty"`
}

type SystemChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PLAYER_INFO (server -> client): announces a player's chat session.
type PlayerInfoMsg struct {
	Type          string `json:"type"`
	PlayerID      string `json:"player_id"`
	Name          string `json:"name"`
	ChatSessionID string `json:"chat_session_id,omitempty"`
	PublicKey     []byte `json:"public_key,omitempty"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
}

type BlockChangedAckMsg struct {
	Type     string `json:"type"`
	Sequence int32  `json:"sequence"`
}

type ChunkCenterMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}

type DisconnectMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}
