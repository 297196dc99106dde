package models

import (
	"encoding/json"
	"time"
)

// Push event names sent to a presence binding.
const (
	EventReceiveMessage  = "receive_message"
	EventDisplayTyping   = "display_typing"
	EventHideTyping      = "hide_typing"
	EventFriendRequest   = "friend_request"
	EventFriendAccepted  = "friend_accepted"
	EventSessionReplaced = "session_replaced"
	EventError           = "error"
)

// Frame names a client may send over its websocket.
const (
	FrameSendMessage = "send_message"
	FrameTyping      = "typing"
)

// Event is an outbound push.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Frame is any envelope read off the wire, payload left undecoded.
type Frame struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type SendMessagePayload struct {
	Receiver string `json:"receiver" binding:"required"`
	Text     string `json:"text"`
}

type TypingPayload struct {
	Receiver string `json:"receiver" binding:"required"`
	Typing   bool   `json:"typing"`
}

// TypingState is the payload of display_typing / hide_typing. Clients drop a
// displayed indicator at ExpiresAt even if hide_typing never arrives.
type TypingState struct {
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FriendNotice is the payload of friend_request / friend_accepted.
type FriendNotice struct {
	From string `json:"from"`
}

// ErrorNotice reports a failed inbound frame back to its sender.
type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
