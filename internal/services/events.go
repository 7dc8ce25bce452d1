package services

import "encoding/json"

// Event names of the live-chat subprotocol. The client and the server
// exchange JSON envelopes `{"event": "...", "data": {...}}` over the
// websocket connection.
const (
	// client -> server
	EventJoinRoom      = "join_room"
	EventRequestChat   = "request_chat"
	EventAcceptChat    = "accept_chat"
	EventDeclineChat   = "decline_chat"
	EventJoinChatRoom  = "join_chat_room"
	EventSendMessage   = "send_message"
	EventTerminateChat = "terminate_chat"

	// server -> client
	EventChatAccepted   = "chat_accepted"
	EventChatDeclined   = "chat_declined"
	EventChatBusy       = "chat_busy"
	EventChatTerminated = "chat_terminated"
	EventRateLimited    = "rate_limited"
	EventReceiveMessage = "receive_message"
	EventMessageBlocked = "message_blocked"
	EventMessageError   = "message_error"
	EventError          = "error"
)

// Envelope is the inbound wire frame. Data stays raw until the event name
// selects the payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outEnvelope is the outbound wire frame.
type outEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// --- inbound payloads ---

type JoinRoomData struct {
	Room string `json:"room"`
}

type RequestChatData struct {
	To   string `json:"to"`
	From string `json:"from"`
}

type AcceptChatData struct {
	To     string `json:"to"`
	From   string `json:"from"`
	RoomID string `json:"roomId"`
}

type DeclineChatData struct {
	To string `json:"to"`
}

type JoinChatRoomData struct {
	RoomID string `json:"roomId"`
}

type SendMessageData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
	From    string `json:"from"`
}

type TerminateChatData struct {
	RoomID string `json:"roomId"`
}

// --- outbound payloads ---

// IncomingRequestData is delivered to the owner's username room. SocketID
// carries the requester's connection id so the owner can address the
// accept/decline back to it.
type IncomingRequestData struct {
	From     string `json:"from"`
	SocketID string `json:"socketId"`
}

type ChatAcceptedData struct {
	From   string `json:"from"`
	RoomID string `json:"roomId"`
}

type ReceiveMessageData struct {
	Message string `json:"message"`
	From    string `json:"from"`
}

// NoticeData carries human readable failure/status notifications.
type NoticeData struct {
	Message string `json:"message"`
}
