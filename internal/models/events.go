package models

import "encoding/json"

// Websocket event names. Inbound events are sent by the browser, outbound by the server.
const (
	EventJoin               = "join"
	EventSendGroupMessage   = "sendGroupMessage"
	EventJoinPrivateChat    = "joinPrivateChat"
	EventSendPrivateMessage = "sendPrivateMessage"
	EventBlockUser          = "blockUser"
	EventReportUser         = "reportUser"

	EventConnected         = "connected"
	EventGroupMessages     = "groupMessages"
	EventNewGroupMessage   = "newGroupMessage"
	EventPrivateMessages   = "privateMessages"
	EventNewPrivateMessage = "newPrivateMessage"
	EventChatBlocked       = "chatBlocked"
	EventMessageBlocked    = "messageBlocked"
	EventUserBlocked       = "userBlocked"
	EventUserReported      = "userReported"
	EventUserJoined        = "userJoined"
	EventServerShutdown    = "server_shutdown"
	EventAccountDisabled   = "accountDisabled"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent marshals payload into an Envelope of the given type.
func EncodeEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// UserJoinedPayload is broadcast to a faculty room when a member joins.
type UserJoinedPayload struct {
	UserID   uint   `json:"userId"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// ActionResult answers blockUser and reportUser.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Inbound payloads.
type (
	JoinPayload struct {
		UserID  uint   `json:"userId"`
		Faculty string `json:"faculty"`
	}
	GroupMessagePayload struct {
		UserID  uint   `json:"userId"`
		Faculty string `json:"faculty"`
		Message string `json:"message"`
	}
	JoinPrivatePayload struct {
		UserID      uint `json:"userId"`
		OtherUserID uint `json:"otherUserId"`
	}
	PrivateMessagePayload struct {
		SenderID   uint   `json:"senderId"`
		ReceiverID uint   `json:"receiverId"`
		Message    string `json:"message"`
	}
	BlockPayload struct {
		BlockerID uint `json:"blockerId"`
		BlockedID uint `json:"blockedId"`
	}
	ReportPayload struct {
		ReporterID uint `json:"reporterId"`
		ReportedID uint `json:"reportedId"`
	}
)
