package protocol

// Disconnect reasons. These are the user-visible keys carried by DISCONNECT.
const (
	// Malformed input.
	ReasonBadPacket              = "bad_packet"
	ReasonInvalidPlayerMovement  = "invalid_player_movement"
	ReasonInvalidVehicleMovement = "invalid_vehicle_movement"
	ReasonIllegalCharacters      = "illegal_characters"
	ReasonChatValidationFailed   = "chat_validation_failed"
	ReasonOutOfOrderChat         = "out_of_order_chat"
	ReasonInvalidSignature       = "invalid_signature"
	ReasonExpiredPublicKey       = "expired_public_key"
	ReasonInvalidPublicKey       = "invalid_public_key"

	// Anti-cheat.
	ReasonFlying = "flying"

	// Resource exhaustion.
	ReasonTooManyPendingChats = "too_many_pending_chats"
	ReasonSpam                = "spam"

	// Liveness.
	ReasonTimeout = "timeout"
	ReasonIdling  = "idling"

	// Lifecycle.
	ReasonQuit          = "quit"
	ReasonServerClosing = "server_closing"
	ReasonInternal      = "internal_error"
)

// Non-fatal chat notices (sent as SYSTEM_CHAT to the sender only).
const (
	NoticeMissingKey   = "chat_missing_profile_key"
	NoticeExpiredKey   = "chat_expired_profile_key"
	NoticeChainBroken  = "chat_chain_broken"
	NoticeChatDisabled = "chat_disabled"
)

var knownReasons = map[string]struct{}{
	ReasonBadPacket:              {},
	ReasonInvalidPlayerMovement:  {},
	ReasonInvalidVehicleMovement: {},
	ReasonIllegalCharacters:      {},
	ReasonChatValidationFailed:   {},
	ReasonOutOfOrderChat:         {},
	ReasonInvalidSignature:       {},
	ReasonExpiredPublicKey:       {},
	ReasonInvalidPublicKey:       {},
	ReasonFlying:                 {},
	ReasonTooManyPendingChats:    {},
	ReasonSpam:                   {},
	ReasonTimeout:                {},
	ReasonIdling:                 {},
	ReasonQuit:                   {},
	ReasonServerClosing:          {},
	ReasonInternal:               {},
}

func IsKnownReason(reason string) bool {
	_, ok := knownReasons[reason]
	return ok
}
